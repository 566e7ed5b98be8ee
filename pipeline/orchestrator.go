package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Sumitbhoyar/customer-support-copilot/pkg/logging"
	"github.com/Sumitbhoyar/customer-support-copilot/pkg/telemetry"
	"github.com/Sumitbhoyar/customer-support-copilot/workflow"
)

// escalationConfidenceThreshold: below it the run recommends an L2 review.
const escalationConfidenceThreshold = 0.6

// Runner executes the full classify, retrieve, generate sequence for one
// ticket. Implementations must be safe for concurrent use.
type Runner interface {
	Run(ctx context.Context, ticket TicketInput, correlationID string) (*OrchestrationResult, error)
}

// Local runs the three stages in-process, sequentially, recording wall-clock
// latency per stage. It is the degradation target when the remote workflow
// engine is unreachable and also the default deployment mode.
type Local struct {
	classifier *Classifier
	retriever  *Retriever
	generator  *Generator
	cfg        *Config
	logger     *slog.Logger
}

// NewLocal wires the in-process orchestration strategy.
func NewLocal(classifier *Classifier, retriever *Retriever, generator *Generator, opts ...Option) *Local {
	return &Local{
		classifier: classifier,
		retriever:  retriever,
		generator:  generator,
		cfg:        applyOptions(opts),
		logger:     logging.WithComponent("orchestrator"),
	}
}

// Run executes the pipeline and assembles the trace. Stage degradations do
// not fail the run; they surface through safety flags and the trace state.
func (l *Local) Run(ctx context.Context, ticket TicketInput, correlationID string) (*OrchestrationResult, error) {
	if err := ticket.Validate(); err != nil {
		return nil, err
	}

	tracer := otel.Tracer("pipeline")
	ctx, span := tracer.Start(ctx, "orchestration.run")
	span.SetAttributes(attribute.String("correlation_id", correlationID))
	defer telemetry.End(span, nil)

	startedAt := time.Now().UTC()

	_, classifySpan := tracer.Start(ctx, "orchestration.classify")
	classifyStart := time.Now()
	classification, classifyOutcome := l.classifier.Classify(ctx, ticket, false)
	classifyMS := time.Since(classifyStart).Milliseconds()
	telemetry.End(classifySpan, nil)

	_, retrieveSpan := tracer.Start(ctx, "orchestration.retrieve")
	retrieveStart := time.Now()
	retrieval, retrieveOutcome := l.retriever.BuildContext(ctx, ticket, classification)
	retrieveMS := time.Since(retrieveStart).Milliseconds()
	telemetry.End(retrieveSpan, nil)

	_, generateSpan := tracer.Start(ctx, "orchestration.generate")
	generateStart := time.Now()
	generation, generateOutcome := l.generator.Generate(ctx, ticket, classification, retrieval, false)
	generateMS := time.Since(generateStart).Milliseconds()
	telemetry.End(generateSpan, nil)

	state := StateCompleted
	if generation.GuardrailTriggered {
		state = StateCompletedWithFlags
	}
	l.cfg.Metrics.OrchestrationCompleted(state)

	result := &OrchestrationResult{
		Classification: classification,
		Context:        retrieval,
		Generation:     generation,
		NextActions:    nextActions(retrieval),
		Trace: OrchestrationTrace{
			ClassificationLatencyMS: classifyMS,
			RetrievalLatencyMS:      retrieveMS,
			GenerationLatencyMS:     generateMS,
			TotalLatencyMS:          classifyMS + retrieveMS + generateMS,
			State:                   state,
			StartedAt:               startedAt,
			CorrelationID:           correlationID,
		},
	}

	l.logger.Info("orchestration finished",
		"correlation_id", correlationID,
		"state", state,
		"classification_source", classifyOutcome.Source,
		"retrieval_source", retrieveOutcome.Source,
		"generation_source", generateOutcome.Source,
		"total_ms", result.Trace.TotalLatencyMS,
	)
	return result, nil
}

func nextActions(retrieval RetrievalResult) []string {
	actions := []string{"Send draft to agent queue for review"}
	if retrieval.AggregateConfidence < escalationConfidenceThreshold {
		actions = append(actions, "Escalate to L2 due to low retrieval confidence")
	}
	return actions
}

// Remote delegates the full run to a workflow engine, falling back to the
// local strategy when the engine is unreachable.
type Remote struct {
	executor workflow.Executor
	workflow string
	fallback Runner
	logger   *slog.Logger
}

// NewRemote wires the workflow-engine strategy. fallback may be nil, in
// which case engine failures propagate to the caller.
func NewRemote(executor workflow.Executor, workflowName string, fallback Runner) *Remote {
	return &Remote{
		executor: executor,
		workflow: workflowName,
		fallback: fallback,
		logger:   logging.WithComponent("orchestrator"),
	}
}

type remoteInput struct {
	Ticket        TicketInput `json:"ticket"`
	CorrelationID string      `json:"correlation_id"`
}

// Run serializes the ticket, starts a synchronous execution and decodes the
// engine's output into an OrchestrationResult.
func (r *Remote) Run(ctx context.Context, ticket TicketInput, correlationID string) (*OrchestrationResult, error) {
	if err := ticket.Validate(); err != nil {
		return nil, err
	}

	input, err := json.Marshal(remoteInput{Ticket: ticket, CorrelationID: correlationID})
	if err != nil {
		return nil, fmt.Errorf("encode workflow input: %w", err)
	}

	output, err := r.executor.StartSyncExecution(ctx, r.workflow, input)
	if err != nil {
		if r.fallback == nil {
			return nil, err
		}
		r.logger.Warn("workflow engine unavailable, running locally",
			"correlation_id", correlationID,
			"error", err,
		)
		return r.fallback.Run(ctx, ticket, correlationID)
	}

	var result OrchestrationResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("decode workflow output: %w", err)
	}
	if result.Trace.CorrelationID == "" {
		result.Trace.CorrelationID = correlationID
	}
	return &result, nil
}
