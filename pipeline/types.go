package pipeline

import (
	"strings"
	"time"

	"github.com/Sumitbhoyar/customer-support-copilot/errors"
)

// TicketInput is the normalized ticket payload used across classification,
// retrieval and generation. Field names and enum string values are part of
// the HTTP contract and round-trip exactly.
type TicketInput struct {
	Title              string         `json:"title"`
	Description        string         `json:"description"`
	CustomerExternalID string         `json:"customer_external_id"`
	Channel            string         `json:"channel,omitempty"`
	PriorityHints      string         `json:"priority_hints,omitempty"`
	Locale             string         `json:"locale,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

// Validate trims and checks the required fields, applying defaults for
// channel and locale. Validation runs before any external call so malformed
// tickets never cost a model invocation.
func (t *TicketInput) Validate() error {
	t.Title = strings.TrimSpace(t.Title)
	t.Description = strings.TrimSpace(t.Description)
	if t.Title == "" {
		return errors.NewValidation("title", "must not be blank")
	}
	if t.Description == "" {
		return errors.NewValidation("description", "must not be blank")
	}
	if t.Channel == "" {
		t.Channel = "email"
	}
	if t.Locale == "" {
		t.Locale = "en-US"
	}
	return nil
}

// Category buckets a ticket into a support taxonomy.
type Category string

const (
	CategoryBilling   Category = "billing"
	CategoryTechnical Category = "technical"
	CategoryAccount   Category = "account"
	CategoryShipping  Category = "shipping"
	CategoryOther     Category = "other"
)

// Priority levels for triage.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Sentiment buckets for the customer's tone.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// SafetyFlag marks guardrail findings surfaced to clients for transparency.
type SafetyFlag string

const (
	FlagPIIDetected          SafetyFlag = "pii_detected"
	FlagOffBrand             SafetyFlag = "off_brand"
	FlagUnsafeContent        SafetyFlag = "unsafe_content"
	FlagLowContextConfidence SafetyFlag = "low_context_confidence"
)

// ClassificationResult is the structured triage judgment produced by the
// model or by the heuristic fallback. Immutable once produced.
type ClassificationResult struct {
	Category         Category  `json:"category"`
	Priority         Priority  `json:"priority"`
	Department       string    `json:"department"`
	Sentiment        Sentiment `json:"sentiment"`
	Confidence       float64   `json:"confidence"`
	ReasoningSnippet string    `json:"reasoning_snippet"`
}

// RetrievalContextItem is one evidence unit used for generation and
// citations. Type is one of kb|order|ticket|rule.
type RetrievalContextItem struct {
	SourceID    string  `json:"source_id"`
	Excerpt     string  `json:"excerpt"`
	CitationURI string  `json:"citation_uri"`
	Score       float64 `json:"score"`
	Type        string  `json:"type"`
}

// RetrievalResult is the ordered context package plus an aggregate
// confidence in [0,1].
type RetrievalResult struct {
	ContextPackage      []RetrievalContextItem `json:"context_package"`
	AggregateConfidence float64                `json:"aggregate_confidence"`
}

// ResponseDraft is one generated reply candidate.
type ResponseDraft struct {
	Text        string       `json:"text"`
	Citations   []string     `json:"citations"`
	Confidence  float64      `json:"confidence"`
	SafetyFlags []SafetyFlag `json:"safety_flags"`
}

// GenerationResult is the complete generation output with an optional
// alternative draft. GuardrailTriggered is true iff any safety flag was
// raised on either draft path.
type GenerationResult struct {
	PrimaryDraft       ResponseDraft  `json:"primary_draft"`
	AlternativeDraft   *ResponseDraft `json:"alternative_draft,omitempty"`
	SuggestedNextSteps []string       `json:"suggested_next_steps"`
	GuardrailTriggered bool           `json:"guardrail_triggered"`
}

// OrchestrationTrace records per-stage latency and the terminal state of one
// pipeline run.
type OrchestrationTrace struct {
	ClassificationLatencyMS int64     `json:"classification_latency_ms"`
	RetrievalLatencyMS      int64     `json:"retrieval_latency_ms"`
	GenerationLatencyMS     int64     `json:"generation_latency_ms"`
	TotalLatencyMS          int64     `json:"total_latency_ms"`
	State                   string    `json:"state"`
	StartedAt               time.Time `json:"started_at"`
	CorrelationID           string    `json:"correlation_id"`
}

// Trace terminal states.
const (
	StateCompleted          = "completed"
	StateCompletedWithFlags = "completed_with_flags"
)

// OrchestrationResult bundles all stage outputs for the auto-orchestrate
// endpoint. Created fresh per run and never persisted by the pipeline.
type OrchestrationResult struct {
	Classification ClassificationResult `json:"classification"`
	Context        RetrievalResult      `json:"context"`
	Generation     GenerationResult     `json:"generation"`
	NextActions    []string             `json:"next_actions"`
	Trace          OrchestrationTrace   `json:"trace"`
}

// Outcome tags how a stage produced its result, so callers can distinguish a
// model answer from a cache hit or a degraded fallback without inspecting
// the result payload.
type Outcome struct {
	Source string // "model", "cache", "fallback", "short_circuit"
	Reason string // set when Source is "fallback"
}

// Outcome sources.
const (
	SourceModel        = "model"
	SourceCache        = "cache"
	SourceFallback     = "fallback"
	SourceShortCircuit = "short_circuit"
)

// Degraded reports whether the stage fell back to its deterministic path.
func (o Outcome) Degraded() bool {
	return o.Source == SourceFallback
}
