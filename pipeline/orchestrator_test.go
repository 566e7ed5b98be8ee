package pipeline

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/Sumitbhoyar/customer-support-copilot/errors"
)

func newLocalForTest(client *fakeLLM) *Local {
	classifier := NewClassifier(client)
	retriever := NewRetriever(&fakeKB{}, nil)
	generator := NewGenerator(client)
	return NewLocal(classifier, retriever, generator)
}

func TestLocalRunHappyPath(t *testing.T) {
	client := &fakeLLM{
		response: `{"category": "billing", "priority": "medium", "department": "Billing",
 "sentiment": "neutral", "confidence": 0.85, "reasoning_snippet": "duplicate invoice"}`,
	}
	local := newLocalForTest(client)

	ticket := TicketInput{Title: "Invoice problem", Description: "Billed twice this month"}
	got, err := local.Run(t.Context(), ticket, "corr-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Classification.Category != CategoryBilling {
		t.Errorf("unexpected classification: %+v", got.Classification)
	}
	if got.Trace.CorrelationID != "corr-1" {
		t.Errorf("correlation id not propagated: %+v", got.Trace)
	}
	if got.Trace.State != StateCompleted {
		t.Errorf("expected completed state, got %s", got.Trace.State)
	}
	want := got.Trace.ClassificationLatencyMS + got.Trace.RetrievalLatencyMS + got.Trace.GenerationLatencyMS
	if got.Trace.TotalLatencyMS != want {
		t.Errorf("total latency %d does not equal stage sum %d", got.Trace.TotalLatencyMS, want)
	}
	if len(got.NextActions) == 0 || got.NextActions[0] != "Send draft to agent queue for review" {
		t.Errorf("unexpected next actions: %v", got.NextActions)
	}
}

func TestLocalRunFlagsStateOnGuardrail(t *testing.T) {
	// The same completion feeds both stages: the JSON object satisfies the
	// classifier and the guarantee wording trips the generation guardrail.
	client := &fakeLLM{
		response: `{"category": "other", "priority": "low", "department": "Support",
 "sentiment": "neutral", "confidence": 0.7, "reasoning_snippet": "ok"} We guarantee a refund.`,
	}
	local := newLocalForTest(client)

	got, err := local.Run(t.Context(), TicketInput{Title: "Refund", Description: "Want my money back"}, "corr-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Trace.State != StateCompletedWithFlags {
		t.Errorf("expected completed_with_flags, got %s", got.Trace.State)
	}
	if !got.Generation.GuardrailTriggered {
		t.Errorf("expected guardrail marker on generation")
	}
}

func TestLocalRunDegradesEndToEnd(t *testing.T) {
	local := newLocalForTest(&fakeLLM{err: fmt.Errorf("provider outage")})

	got, err := local.Run(t.Context(), TicketInput{Title: "Site down", Description: "Complete outage right now"}, "corr-3")
	if err != nil {
		t.Fatalf("degraded run must not error: %v", err)
	}
	if got.Classification.Priority != PriorityCritical {
		t.Errorf("heuristic should mark outage critical, got %s", got.Classification.Priority)
	}
	if got.Generation.PrimaryDraft.Text != fallbackDraftText {
		t.Errorf("expected holding reply, got %s", got.Generation.PrimaryDraft.Text)
	}
	if got.Trace.State != StateCompletedWithFlags {
		t.Errorf("expected flagged state for degraded run, got %s", got.Trace.State)
	}
}

func TestLocalRunValidatesBeforeModelCalls(t *testing.T) {
	client := &fakeLLM{}
	local := newLocalForTest(client)

	_, err := local.Run(t.Context(), TicketInput{Title: "   ", Description: "something"}, "corr-4")
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !stderrors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if client.calls != 0 {
		t.Errorf("model must not be called for invalid input, got %d calls", client.calls)
	}
}

type fakeExecutor struct {
	output []byte
	err    error
	calls  int
	input  []byte
}

func (f *fakeExecutor) StartSyncExecution(ctx context.Context, name string, input []byte) ([]byte, error) {
	f.calls++
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	return f.output, nil
}

func TestRemoteRunDecodesEngineOutput(t *testing.T) {
	want := OrchestrationResult{
		Classification: ClassificationResult{Category: CategoryBilling, Priority: PriorityMedium, Department: "Billing", Sentiment: SentimentNeutral, Confidence: 0.8},
		Context:        RetrievalResult{ContextPackage: []RetrievalContextItem{}, AggregateConfidence: 0.7},
		Trace:          OrchestrationTrace{State: StateCompleted},
	}
	output, _ := json.Marshal(want)
	executor := &fakeExecutor{output: output}
	remote := NewRemote(executor, "ticket-orchestration", nil)

	got, err := remote.Run(t.Context(), TicketInput{Title: "a", Description: "b"}, "corr-5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Classification.Category != CategoryBilling {
		t.Errorf("unexpected decode: %+v", got.Classification)
	}
	if got.Trace.CorrelationID != "corr-5" {
		t.Errorf("correlation id not backfilled: %+v", got.Trace)
	}

	var sent remoteInput
	if err := json.Unmarshal(executor.input, &sent); err != nil {
		t.Fatalf("engine input is not valid JSON: %v", err)
	}
	if sent.CorrelationID != "corr-5" || sent.Ticket.Title != "a" {
		t.Errorf("unexpected engine input: %+v", sent)
	}
}

func TestRemoteRunFallsBackToLocal(t *testing.T) {
	client := &fakeLLM{err: fmt.Errorf("provider outage")}
	local := newLocalForTest(client)
	executor := &fakeExecutor{err: fmt.Errorf("%w: engine unreachable", errors.ErrUnavailable)}
	remote := NewRemote(executor, "ticket-orchestration", local)

	got, err := remote.Run(t.Context(), TicketInput{Title: "Invoice problem", Description: "Billed twice"}, "corr-6")
	if err != nil {
		t.Fatalf("fallback run must not error: %v", err)
	}
	if executor.calls != 1 {
		t.Errorf("expected one engine attempt, got %d", executor.calls)
	}
	if got.Classification.Category != CategoryBilling {
		t.Errorf("expected local heuristic result, got %+v", got.Classification)
	}
}

func TestRemoteRunWithoutFallbackPropagates(t *testing.T) {
	executor := &fakeExecutor{err: fmt.Errorf("%w: engine unreachable", errors.ErrUnavailable)}
	remote := NewRemote(executor, "ticket-orchestration", nil)

	_, err := remote.Run(t.Context(), TicketInput{Title: "a", Description: "b"}, "corr-7")
	if !stderrors.Is(err, errors.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

// localExecutor loops a synchronous execution back into an in-process run,
// standing in for a workflow engine whose steps call the same stages.
type localExecutor struct {
	local *Local
}

func (e *localExecutor) StartSyncExecution(ctx context.Context, name string, input []byte) ([]byte, error) {
	var in remoteInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, err
	}
	result, err := e.local.Run(ctx, in.Ticket, in.CorrelationID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

// Contract shared by both strategies: a low-confidence classification
// short-circuits retrieval and the run reports identical post-conditions
// regardless of where it executed.
func TestRunnersSharePostConditions(t *testing.T) {
	const lowConfidence = `{"category": "other", "priority": "low", "department": "Support",
 "sentiment": "neutral", "confidence": 0.35, "reasoning_snippet": "unclear ticket"}`

	runners := map[string]func() Runner{
		"local": func() Runner {
			return newLocalForTest(&fakeLLM{response: lowConfidence})
		},
		"remote": func() Runner {
			backing := newLocalForTest(&fakeLLM{response: lowConfidence})
			return NewRemote(&localExecutor{local: backing}, "ticket-orchestration", nil)
		},
	}

	for name, build := range runners {
		t.Run(name, func(t *testing.T) {
			got, err := build().Run(t.Context(),
				TicketInput{Title: "Something odd", Description: "Hard to say what this is about"}, "corr-contract")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got.Context.ContextPackage) != 0 || got.Context.AggregateConfidence != 0.2 {
				t.Errorf("expected short-circuited retrieval, got %+v", got.Context)
			}
			if got.Trace.State != StateCompleted {
				t.Errorf("state = %s, want %s", got.Trace.State, StateCompleted)
			}
			if got.Trace.CorrelationID != "corr-contract" {
				t.Errorf("correlation id not propagated: %+v", got.Trace)
			}
			want := got.Trace.ClassificationLatencyMS + got.Trace.RetrievalLatencyMS + got.Trace.GenerationLatencyMS
			if got.Trace.TotalLatencyMS != want {
				t.Errorf("total latency %d does not equal stage sum %d", got.Trace.TotalLatencyMS, want)
			}
			if len(got.NextActions) != 2 ||
				got.NextActions[0] != "Send draft to agent queue for review" ||
				got.NextActions[1] != "Escalate to L2 due to low retrieval confidence" {
				t.Errorf("unexpected next actions: %v", got.NextActions)
			}
		})
	}
}

// Contract shared by both strategies: invalid tickets are rejected up front.
func TestRunnersValidateInput(t *testing.T) {
	runners := map[string]Runner{
		"local":  newLocalForTest(&fakeLLM{}),
		"remote": NewRemote(&fakeExecutor{}, "ticket-orchestration", nil),
	}
	for name, runner := range runners {
		t.Run(name, func(t *testing.T) {
			_, err := runner.Run(t.Context(), TicketInput{Title: "t"}, "corr")
			if !stderrors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}
