package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Sumitbhoyar/customer-support-copilot/cache"
	"github.com/Sumitbhoyar/customer-support-copilot/llm"
	"github.com/Sumitbhoyar/customer-support-copilot/pkg/logging"
)

// Classifier maps a validated ticket to a structured triage judgment via the
// model service, with a per-ticket cache and a deterministic keyword
// heuristic when the model call fails or returns garbage. It never fails
// past its boundary: total model loss degrades to the heuristic, not to an
// error.
type Classifier struct {
	client llm.Client
	cache  *cache.Cache[ClassificationResult]
	cfg    *Config
	logger *slog.Logger
}

// NewClassifier builds a classification stage around the model client.
func NewClassifier(client llm.Client, opts ...Option) *Classifier {
	cfg := applyOptions(opts)
	return &Classifier{
		client: client,
		cache:  cache.New[ClassificationResult](cfg.CacheMaxSize, cfg.CacheTTL),
		cfg:    cfg,
		logger: logging.WithComponent("classifier"),
	}
}

// Classify runs classification with cache and heuristic fallback. The
// returned Outcome reports whether the result came from the cache, the
// model, or the fallback path.
func (c *Classifier) Classify(ctx context.Context, ticket TicketInput, useEnhanced bool) (ClassificationResult, Outcome) {
	cacheKey := ticket.Title + ":" + ticket.Description
	if cached, ok := c.cache.Get(cacheKey); ok {
		c.cfg.Metrics.CacheHit("classification")
		return cached, Outcome{Source: SourceCache}
	}
	c.cfg.Metrics.CacheMiss("classification")

	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		c.cfg.Metrics.ObserveStage("classification", elapsed.Seconds())
		c.logger.Info("classification latency captured", "duration_ms", elapsed.Milliseconds())
	}()

	result, err := c.invokeModel(ctx, ticket, useEnhanced)
	if err != nil {
		c.logger.Warn("model classification failed, falling back to heuristic", "error", err)
		c.cfg.Metrics.Fallback("classification", "model_error")
		fallback := heuristicClassification(ticket)
		c.cache.Set(cacheKey, fallback)
		return fallback, Outcome{Source: SourceFallback, Reason: err.Error()}
	}

	c.cache.Set(cacheKey, result)
	return result, Outcome{Source: SourceModel}
}

// CacheStats exposes cache occupancy for the health endpoint.
func (c *Classifier) CacheStats() cache.Stats {
	return c.cache.Stats()
}

func (c *Classifier) invokeModel(ctx context.Context, ticket TicketInput, useEnhanced bool) (ClassificationResult, error) {
	prompt := c.buildPrompt(ticket)
	text, err := c.client.Generate(ctx, &llm.Request{
		Prompt:      prompt,
		MaxTokens:   c.cfg.ClassifyMaxTokens,
		Temperature: c.cfg.ClassifyTemperature,
		UseEnhanced: useEnhanced,
	})
	if err != nil {
		return ClassificationResult{}, err
	}
	return parseClassification(text)
}

// buildPrompt keeps the prompt small to minimise tokens while extracting the
// needed fields.
func (c *Classifier) buildPrompt(ticket TicketInput) string {
	hints := ticket.PriorityHints
	if hints == "" {
		hints = "none"
	}
	prompt := fmt.Sprintf(
		"You are a support triage assistant. "+
			"Return JSON with fields: category (billing|technical|account|shipping|other), "+
			"priority (critical|high|medium|low), department, sentiment (positive|neutral|negative), "+
			"confidence (0-1), reasoning_snippet. "+
			"Title: %s\nDescription: %s\nChannel: %s\nPriority hints: %s",
		ticket.Title, ticket.Description, ticket.Channel, hints,
	)
	return c.boundPrompt(prompt)
}

func (c *Classifier) boundPrompt(prompt string) string {
	if c.cfg.Tokens == nil || c.cfg.PromptTokenBudget <= 0 {
		return prompt
	}
	return c.cfg.Tokens.Truncate(prompt, c.cfg.PromptTokenBudget)
}

// parseClassification extracts the first JSON object from the model output
// and validates it into a ClassificationResult.
func parseClassification(text string) (ClassificationResult, error) {
	begin := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if begin < 0 || end <= begin {
		return ClassificationResult{}, fmt.Errorf("model returned unparseable response")
	}

	var result ClassificationResult
	if err := json.Unmarshal([]byte(text[begin:end+1]), &result); err != nil {
		return ClassificationResult{}, fmt.Errorf("model returned invalid JSON: %w", err)
	}
	if err := validateClassification(&result); err != nil {
		return ClassificationResult{}, err
	}
	return result, nil
}

func validateClassification(result *ClassificationResult) error {
	switch result.Category {
	case CategoryBilling, CategoryTechnical, CategoryAccount, CategoryShipping, CategoryOther:
	default:
		return fmt.Errorf("unknown category %q", result.Category)
	}
	switch result.Priority {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
	default:
		return fmt.Errorf("unknown priority %q", result.Priority)
	}
	switch result.Sentiment {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
	default:
		return fmt.Errorf("unknown sentiment %q", result.Sentiment)
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		return fmt.Errorf("confidence %f out of range", result.Confidence)
	}
	return nil
}

// heuristicClassification is the deterministic keyword fallback used when
// the model is unavailable. Confidence is pinned at 0.55 to signal degraded
// quality to downstream stages.
func heuristicClassification(ticket TicketInput) ClassificationResult {
	lower := strings.ToLower(ticket.Title + " " + ticket.Description)

	var (
		category   Category
		department string
	)
	switch {
	case strings.Contains(lower, "billing") || strings.Contains(lower, "invoice"):
		category, department = CategoryBilling, "Billing"
	case strings.Contains(lower, "password") || strings.Contains(lower, "login"):
		category, department = CategoryAccount, "Account"
	case strings.Contains(lower, "shipping") || strings.Contains(lower, "delivery"):
		category, department = CategoryShipping, "Logistics"
	case strings.Contains(lower, "error") || strings.Contains(lower, "fail"):
		category, department = CategoryTechnical, "Support"
	default:
		category, department = CategoryOther, "Support"
	}

	priority := PriorityMedium
	if strings.Contains(lower, "outage") || strings.Contains(lower, "down") {
		priority = PriorityCritical
	} else if strings.Contains(lower, "urgent") || strings.Contains(lower, "asap") {
		priority = PriorityHigh
	}

	sentiment := SentimentNeutral
	if strings.Contains(lower, "angry") || strings.Contains(lower, "frustrated") {
		sentiment = SentimentNegative
	}

	return ClassificationResult{
		Category:         category,
		Priority:         priority,
		Department:       department,
		Sentiment:        sentiment,
		Confidence:       0.55,
		ReasoningSnippet: "Heuristic fallback based on keywords.",
	}
}
