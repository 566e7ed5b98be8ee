package pipeline

import (
	"time"

	"github.com/Sumitbhoyar/customer-support-copilot/llm"
	"github.com/Sumitbhoyar/customer-support-copilot/pkg/metrics"
)

// Config groups the tunable knobs of the three pipeline stages so callers
// can construct reproducible pipelines from a single struct.
type Config struct {
	CacheMaxSize int           // Bound for each stage cache
	CacheTTL     time.Duration // Entry lifetime for each stage cache

	ClassifyMaxTokens   int64   // Token budget for the classification call
	ClassifyTemperature float64 // Low by default: triage wants determinism
	GenerateMaxTokens   int64   // Token budget for the drafting call
	GenerateTemperature float64

	KBMaxResults int // How many knowledge-base hits feed retrieval

	PromptTokenBudget int // Upper bound for a rendered prompt; 0 disables

	Tokens  *llm.TokenCounter // Optional, enforces PromptTokenBudget
	Metrics *metrics.Metrics  // Optional, nil disables instrumentation
}

// Option customises the pipeline configuration.
type Option func(*Config)

// WithCache overrides the per-stage cache bounds.
func WithCache(maxSize int, ttl time.Duration) Option {
	return func(cfg *Config) {
		if maxSize > 0 {
			cfg.CacheMaxSize = maxSize
		}
		if ttl > 0 {
			cfg.CacheTTL = ttl
		}
	}
}

// WithKBMaxResults caps knowledge-base hits pulled per ticket.
func WithKBMaxResults(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.KBMaxResults = n
		}
	}
}

// WithPromptTokenBudget bounds rendered prompt size using the counter.
func WithPromptTokenBudget(budget int, tokens *llm.TokenCounter) Option {
	return func(cfg *Config) {
		if budget > 0 {
			cfg.PromptTokenBudget = budget
		}
		if tokens != nil {
			cfg.Tokens = tokens
		}
	}
}

// WithMetrics attaches Prometheus collectors to every stage.
func WithMetrics(m *metrics.Metrics) Option {
	return func(cfg *Config) {
		cfg.Metrics = m
	}
}

func defaultConfig() *Config {
	return &Config{
		CacheMaxSize:        128,
		CacheTTL:            300 * time.Second,
		ClassifyMaxTokens:   300,
		ClassifyTemperature: 0.2,
		GenerateMaxTokens:   600,
		GenerateTemperature: 0.4,
		KBMaxResults:        3,
		PromptTokenBudget:   2048,
	}
}

func applyOptions(opts []Option) *Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
