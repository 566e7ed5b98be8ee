package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Sumitbhoyar/customer-support-copilot/llm"
	"github.com/Sumitbhoyar/customer-support-copilot/pkg/logging"
)

// maxPromptContextItems caps how many evidence items are rendered into the
// drafting prompt, keeping the prompt bounded no matter how much retrieval
// returned.
const maxPromptContextItems = 5

// draftDelimiter separates the two drafts in a single model completion.
const draftDelimiter = "---"

// fallbackDraftText is the deterministic holding reply used when the model
// is unavailable. Safe to send verbatim.
const fallbackDraftText = "We have received your request and are reviewing it. A specialist will follow up shortly."

// Generator turns a ticket, its triage judgment and its context package
// into cited response drafts. A failed model call degrades to a flagged
// holding reply rather than an error, and a lightweight guardrail scan runs
// over the primary draft on both paths before it leaves the stage.
type Generator struct {
	client llm.Client
	cfg    *Config
	logger *slog.Logger
}

// NewGenerator builds the drafting stage around the model client.
func NewGenerator(client llm.Client, opts ...Option) *Generator {
	return &Generator{
		client: client,
		cfg:    applyOptions(opts),
		logger: logging.WithComponent("generator"),
	}
}

// Generate produces the primary and alternative drafts. useEnhanced routes
// the drafting call to the provider's enhanced model. The returned Outcome
// reports whether the drafts came from the model or the fallback path.
func (g *Generator) Generate(ctx context.Context, ticket TicketInput, classification ClassificationResult, retrieval RetrievalResult, useEnhanced bool) (GenerationResult, Outcome) {
	start := time.Now()
	defer func() {
		g.cfg.Metrics.ObserveStage("generation", time.Since(start).Seconds())
	}()

	prompt := g.buildPrompt(ticket, classification, retrieval)
	citations := collectCitations(retrieval.ContextPackage)

	text, err := g.client.Generate(ctx, &llm.Request{
		Prompt:      prompt,
		MaxTokens:   g.cfg.GenerateMaxTokens,
		Temperature: g.cfg.GenerateTemperature,
		UseEnhanced: useEnhanced,
	})

	var result GenerationResult
	if err != nil {
		g.logger.Warn("model generation failed, returning holding reply", "error", err)
		g.cfg.Metrics.Fallback("generation", "model_error")
		result = fallbackGeneration()
	} else {
		result = splitDrafts(text, citations)
	}
	applyGuardrails(&result)

	if err != nil {
		return result, Outcome{Source: SourceFallback, Reason: err.Error()}
	}
	g.logger.Info("drafts generated",
		"guardrail_triggered", result.GuardrailTriggered,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, Outcome{Source: SourceModel}
}

// buildPrompt renders the ticket, the classification summary and the scored
// context items into the drafting instruction, bounded by the configured
// token budget.
func (g *Generator) buildPrompt(ticket TicketInput, classification ClassificationResult, retrieval RetrievalResult) string {
	var contextBlock strings.Builder
	items := retrieval.ContextPackage
	if len(items) > maxPromptContextItems {
		items = items[:maxPromptContextItems]
	}
	for _, item := range items {
		fmt.Fprintf(&contextBlock, "- [%s] (%.2f) %s (cite: %s)\n",
			item.Type, item.Score, item.Excerpt, item.CitationURI)
	}
	if contextBlock.Len() == 0 {
		contextBlock.WriteString("No context available.")
	}

	summary, err := json.Marshal(classification)
	if err != nil {
		summary = []byte("{}")
	}

	prompt := fmt.Sprintf(
		"You are a concise, empathetic support assistant. "+
			"Write 2 drafts separated by '\n---\n'. "+
			"Cite the provided sources inline where relevant and never promise outcomes you cannot verify.\n\n"+
			"Ticket title: %s\nTicket description: %s\nLocale: %s\n\nClassification: %s\n\nContext:\n%s",
		ticket.Title, ticket.Description, ticket.Locale, summary, contextBlock.String(),
	)
	if g.cfg.Tokens != nil && g.cfg.PromptTokenBudget > 0 {
		prompt = g.cfg.Tokens.Truncate(prompt, g.cfg.PromptTokenBudget)
	}
	return prompt
}

func collectCitations(items []RetrievalContextItem) []string {
	citations := make([]string, 0, len(items))
	for i, item := range items {
		if i == maxPromptContextItems {
			break
		}
		if item.CitationURI != "" {
			citations = append(citations, item.CitationURI)
		}
	}
	return citations
}

// splitDrafts parses the dual-draft completion. Empty segments are dropped,
// so a completion starting with the delimiter still yields a usable primary
// draft; with fewer than two non-empty segments there is no alternative.
func splitDrafts(text string, citations []string) GenerationResult {
	segments := make([]string, 0, 2)
	for _, part := range strings.Split(text, draftDelimiter) {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		segments = append(segments, trimmed)
		if len(segments) == 2 {
			break
		}
	}

	var primary string
	if len(segments) > 0 {
		primary = segments[0]
	}
	result := GenerationResult{
		PrimaryDraft: ResponseDraft{
			Text:        primary,
			Citations:   citations,
			Confidence:  0.65,
			SafetyFlags: []SafetyFlag{},
		},
		SuggestedNextSteps: defaultNextSteps(),
	}
	if len(segments) == 2 {
		result.AlternativeDraft = &ResponseDraft{
			Text:        segments[1],
			Citations:   citations,
			Confidence:  0.55,
			SafetyFlags: []SafetyFlag{},
		}
	}
	return result
}

// applyGuardrails scans the primary draft for brand-unsafe language. The
// scan is intentionally cheap; anything it flags goes to a human anyway.
func applyGuardrails(result *GenerationResult) {
	if strings.Contains(strings.ToLower(result.PrimaryDraft.Text), "guarantee") {
		result.PrimaryDraft.SafetyFlags = append(result.PrimaryDraft.SafetyFlags, FlagOffBrand)
		result.GuardrailTriggered = true
	}
}

func fallbackGeneration() GenerationResult {
	return GenerationResult{
		PrimaryDraft: ResponseDraft{
			Text:        fallbackDraftText,
			Citations:   []string{},
			Confidence:  0.4,
			SafetyFlags: []SafetyFlag{FlagLowContextConfidence},
		},
		SuggestedNextSteps: defaultNextSteps(),
		GuardrailTriggered: true,
	}
}

func defaultNextSteps() []string {
	return []string{
		"Verify if context coverage is sufficient.",
		"Escalate to L2 if customer is high-value and sentiment negative.",
	}
}
