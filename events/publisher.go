// Package events publishes orchestration outcomes to Kafka so downstream
// consumers (analytics, agent queueing) can react without polling the API.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Sumitbhoyar/customer-support-copilot/pipeline"
	"github.com/Sumitbhoyar/customer-support-copilot/pkg/logging"
	"github.com/Sumitbhoyar/customer-support-copilot/pkg/metrics"
)

// OutcomeEvent is the wire form of a finished orchestration run.
type OutcomeEvent struct {
	CorrelationID       string    `json:"correlation_id"`
	CustomerExternalID  string    `json:"customer_external_id"`
	Category            string    `json:"category"`
	Priority            string    `json:"priority"`
	State               string    `json:"state"`
	GuardrailTriggered  bool      `json:"guardrail_triggered"`
	AggregateConfidence float64   `json:"aggregate_confidence"`
	TotalLatencyMS      int64     `json:"total_latency_ms"`
	PublishedAt         time.Time `json:"published_at"`
}

// Publisher writes outcome events to a single topic, keyed by correlation
// id so per-run events stay ordered within a partition.
type Publisher struct {
	writer  *kafka.Writer
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewPublisher builds a Kafka publisher for the given brokers and topic.
func NewPublisher(brokers []string, topic string, m *metrics.Metrics) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Publisher{
		writer:  writer,
		metrics: m,
		logger:  logging.WithComponent("events"),
	}
}

// PublishOutcome emits one event for a finished run. Failures are returned
// so the caller can decide whether to treat publication as best effort.
func (p *Publisher) PublishOutcome(ctx context.Context, ticket pipeline.TicketInput, result *pipeline.OrchestrationResult) error {
	event := OutcomeEvent{
		CorrelationID:       result.Trace.CorrelationID,
		CustomerExternalID:  ticket.CustomerExternalID,
		Category:            string(result.Classification.Category),
		Priority:            string(result.Classification.Priority),
		State:               result.Trace.State,
		GuardrailTriggered:  result.Generation.GuardrailTriggered,
		AggregateConfidence: result.Context.AggregateConfidence,
		TotalLatencyMS:      result.Trace.TotalLatencyMS,
		PublishedAt:         time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode outcome event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.CorrelationID),
		Value: payload,
	})
	if err != nil {
		p.metrics.EventPublished("error")
		p.logger.Error("outcome event publish failed",
			"correlation_id", event.CorrelationID,
			"error", err,
		)
		return fmt.Errorf("publish outcome event: %w", err)
	}

	p.metrics.EventPublished("ok")
	p.logger.Debug("outcome event published", "correlation_id", event.CorrelationID)
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
