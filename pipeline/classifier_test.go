package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/Sumitbhoyar/customer-support-copilot/llm"
)

type fakeLLM struct {
	response string
	err      error
	calls    int
	lastReq  *llm.Request
}

func (f *fakeLLM) Generate(ctx context.Context, req *llm.Request) (string, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestClassifyHeuristicFallback(t *testing.T) {
	client := &fakeLLM{err: fmt.Errorf("model timeout")}
	classifier := NewClassifier(client)

	ticket := TicketInput{Title: "Invoice problem", Description: "I was billed twice for my subscription"}
	got, outcome := classifier.Classify(t.Context(), ticket, false)

	if outcome.Source != SourceFallback {
		t.Fatalf("expected fallback outcome, got %s", outcome.Source)
	}
	if got.Category != CategoryBilling || got.Department != "Billing" {
		t.Errorf("expected billing classification, got %+v", got)
	}
	if got.Confidence != 0.55 {
		t.Errorf("expected degraded confidence 0.55, got %f", got.Confidence)
	}
	if got.Priority != PriorityMedium || got.Sentiment != SentimentNeutral {
		t.Errorf("unexpected heuristic defaults: %+v", got)
	}
}

func TestClassifyParsesModelResponse(t *testing.T) {
	client := &fakeLLM{
		response: `Here is the triage result:
{"category": "technical", "priority": "high", "department": "Support",
 "sentiment": "negative", "confidence": 0.91, "reasoning_snippet": "API errors reported"}`,
	}
	classifier := NewClassifier(client)

	ticket := TicketInput{Title: "API failing", Description: "Requests return 500s since this morning"}
	got, outcome := classifier.Classify(t.Context(), ticket, false)

	if outcome.Source != SourceModel {
		t.Fatalf("expected model outcome, got %s", outcome.Source)
	}
	if got.Category != CategoryTechnical || got.Priority != PriorityHigh {
		t.Errorf("unexpected classification: %+v", got)
	}
	if got.Confidence != 0.91 {
		t.Errorf("expected confidence 0.91, got %f", got.Confidence)
	}
}

func TestClassifyCachesIdenticalTickets(t *testing.T) {
	client := &fakeLLM{
		response: `{"category": "billing", "priority": "medium", "department": "Billing",
 "sentiment": "neutral", "confidence": 0.8, "reasoning_snippet": "duplicate charge"}`,
	}
	classifier := NewClassifier(client)
	ticket := TicketInput{Title: "Double charge", Description: "Charged twice on the same day"}

	first, _ := classifier.Classify(t.Context(), ticket, false)
	second, outcome := classifier.Classify(t.Context(), ticket, false)

	if client.calls != 1 {
		t.Errorf("expected a single model call, got %d", client.calls)
	}
	if outcome.Source != SourceCache {
		t.Errorf("expected cache outcome, got %s", outcome.Source)
	}
	if first != second {
		t.Errorf("cached result differs: %+v vs %+v", first, second)
	}
	if stats := classifier.CacheStats(); stats.Size != 1 {
		t.Errorf("expected one cached entry, got %d", stats.Size)
	}
}

func TestClassifyRejectsInvalidModelJSON(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"no json object", "I cannot classify this ticket."},
		{"unknown category", `{"category": "spam", "priority": "low", "department": "Support", "sentiment": "neutral", "confidence": 0.7}`},
		{"confidence out of range", `{"category": "other", "priority": "low", "department": "Support", "sentiment": "neutral", "confidence": 1.7}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classifier := NewClassifier(&fakeLLM{response: tt.response})
			ticket := TicketInput{Title: "Weird " + tt.name, Description: "Description for " + tt.name}

			got, outcome := classifier.Classify(t.Context(), ticket, false)
			if outcome.Source != SourceFallback {
				t.Fatalf("expected heuristic fallback, got %s", outcome.Source)
			}
			if got.ReasoningSnippet != "Heuristic fallback based on keywords." {
				t.Errorf("expected heuristic result, got %+v", got)
			}
		})
	}
}

func TestClassifyForwardsEnhancedFlag(t *testing.T) {
	client := &fakeLLM{
		response: `{"category": "other", "priority": "low", "department": "Support", "sentiment": "neutral", "confidence": 0.6, "reasoning_snippet": "ok"}`,
	}
	classifier := NewClassifier(client)

	ticket := TicketInput{Title: "Question", Description: "How do I export my data?"}
	classifier.Classify(t.Context(), ticket, true)

	if client.lastReq == nil || !client.lastReq.UseEnhanced {
		t.Errorf("expected enhanced-model flag to reach the client")
	}
}
