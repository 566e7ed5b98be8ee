// Package config loads the service configuration from environment
// variables. Every knob has a default suitable for local development, so an
// empty environment yields a runnable in-process deployment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Provider names for the model client.
const (
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
)

// Config is the full runtime configuration of the service.
type Config struct {
	Port int

	Provider            string
	AnthropicAPIKey     string
	AnthropicModel      string
	AnthropicEnhanced   string
	OpenAIAPIKey        string
	OpenAIModel         string
	OpenAIEnhancedModel string

	CacheMaxSize int
	CacheTTL     time.Duration

	// Optional shared cache for customer context; empty RedisAddr keeps
	// the in-process LRU.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	// Optional customer store; empty PostgresHost enables placeholder
	// customer context.
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Optional interaction history; empty MongoURI disables it.
	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	// Remote orchestration; empty WorkflowURL keeps the local strategy.
	WorkflowURL      string
	WorkflowName     string
	WorkflowUsername string
	WorkflowPassword string

	// Outcome events; no brokers disables publication.
	KafkaBrokers []string
	KafkaTopic   string

	// Remote retrieval service; empty KBURL keeps the in-memory index.
	KBURL    string
	KBAPIKey string

	// Optional directory of HTML articles ingested into the in-memory
	// index at startup.
	KBDir             string
	KBMaxResults      int
	KBMinScore        float64
	PromptTokenBudget int

	TelemetryDisable bool
	Environment      string
}

// Load reads the configuration from COPILOT_* environment variables and
// validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Port: getEnvInt("COPILOT_PORT", 8080),

		Provider:            getEnv("COPILOT_PROVIDER", ProviderClaude),
		AnthropicAPIKey:     getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:      getEnv("COPILOT_ANTHROPIC_MODEL", ""),
		AnthropicEnhanced:   getEnv("COPILOT_ANTHROPIC_ENHANCED_MODEL", ""),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:         getEnv("COPILOT_OPENAI_MODEL", ""),
		OpenAIEnhancedModel: getEnv("COPILOT_OPENAI_ENHANCED_MODEL", ""),

		CacheMaxSize: getEnvInt("COPILOT_CACHE_MAX_SIZE", 128),
		CacheTTL:     time.Duration(getEnvInt("COPILOT_CACHE_TTL_SECONDS", 300)) * time.Second,

		RedisAddr:     getEnv("COPILOT_REDIS_ADDR", ""),
		RedisPassword: getEnv("COPILOT_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("COPILOT_REDIS_DB", 0),
		RedisPrefix:   getEnv("COPILOT_REDIS_PREFIX", "copilot:"),

		PostgresHost:     getEnv("COPILOT_POSTGRES_HOST", ""),
		PostgresPort:     getEnvInt("COPILOT_POSTGRES_PORT", 5432),
		PostgresUser:     getEnv("COPILOT_POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("COPILOT_POSTGRES_PASSWORD", ""),
		PostgresDB:       getEnv("COPILOT_POSTGRES_DB", "support"),
		PostgresSSLMode:  getEnv("COPILOT_POSTGRES_SSLMODE", "disable"),

		MongoURI:        getEnv("COPILOT_MONGO_URI", ""),
		MongoDatabase:   getEnv("COPILOT_MONGO_DATABASE", "copilot"),
		MongoCollection: getEnv("COPILOT_MONGO_COLLECTION", "interactions"),

		WorkflowURL:      getEnv("COPILOT_WORKFLOW_URL", ""),
		WorkflowName:     getEnv("COPILOT_WORKFLOW_NAME", "ticket-orchestration"),
		WorkflowUsername: getEnv("COPILOT_WORKFLOW_USERNAME", ""),
		WorkflowPassword: getEnv("COPILOT_WORKFLOW_PASSWORD", ""),

		KafkaBrokers: getEnvList("COPILOT_KAFKA_BROKERS"),
		KafkaTopic:   getEnv("COPILOT_KAFKA_TOPIC", "support.ticket.outcomes"),

		KBURL:             getEnv("COPILOT_KB_URL", ""),
		KBAPIKey:          getEnv("COPILOT_KB_API_KEY", ""),
		KBDir:             getEnv("COPILOT_KB_DIR", ""),
		KBMaxResults:      getEnvInt("COPILOT_KB_MAX_RESULTS", 3),
		KBMinScore:        getEnvFloat("COPILOT_KB_MIN_SCORE", 0.1),
		PromptTokenBudget: getEnvInt("COPILOT_PROMPT_TOKEN_BUDGET", 2048),

		TelemetryDisable: getEnvBool("COPILOT_TELEMETRY_DISABLE", false),
		Environment:      getEnv("COPILOT_ENVIRONMENT", "development"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded configuration, accumulating all problems.
func (c *Config) Validate() error {
	v := NewValidator()
	v.ValidatePort("COPILOT_PORT", c.Port)
	v.ValidateOneOf("COPILOT_PROVIDER", c.Provider, ProviderClaude, ProviderOpenAI)
	v.RequirePositive("COPILOT_CACHE_MAX_SIZE", c.CacheMaxSize)
	v.RequirePositive("COPILOT_CACHE_TTL_SECONDS", int(c.CacheTTL/time.Second))
	v.RequirePositive("COPILOT_KB_MAX_RESULTS", c.KBMaxResults)
	v.ValidateFloatRange("COPILOT_KB_MIN_SCORE", c.KBMinScore, 0, 1)
	v.RequirePositive("COPILOT_PROMPT_TOKEN_BUDGET", c.PromptTokenBudget)
	if c.RedisAddr != "" {
		v.ValidateRange("COPILOT_REDIS_DB", c.RedisDB, 0, 15)
		v.RequireNonEmpty("COPILOT_REDIS_PREFIX", c.RedisPrefix)
	}
	if c.WorkflowURL != "" {
		v.RequireNonEmpty("COPILOT_WORKFLOW_NAME", c.WorkflowName)
	}
	if len(c.KafkaBrokers) > 0 {
		v.RequireNonEmpty("COPILOT_KAFKA_TOPIC", c.KafkaTopic)
	}
	if c.PostgresHost != "" {
		v.ValidatePort("COPILOT_POSTGRES_PORT", c.PostgresPort)
		v.RequireNonEmpty("COPILOT_POSTGRES_USER", c.PostgresUser)
		v.RequireNonEmpty("COPILOT_POSTGRES_DB", c.PostgresDB)
		v.ValidateOneOf("COPILOT_POSTGRES_SSLMODE", c.PostgresSSLMode, "disable", "require", "verify-ca", "verify-full")
	}
	if c.MongoURI != "" {
		v.RequireNonEmpty("COPILOT_MONGO_DATABASE", c.MongoDatabase)
		v.RequireNonEmpty("COPILOT_MONGO_COLLECTION", c.MongoCollection)
	}
	return v.Error()
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
