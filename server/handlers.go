package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Sumitbhoyar/customer-support-copilot/pipeline"
	"github.com/Sumitbhoyar/customer-support-copilot/store"
)

// ticketRequest is the accepted request shape. Three envelopes are
// normalized: a raw ticket object, a gateway envelope with a JSON string
// body, and a wrapper with a nested ticket object. Classification and
// context are caller-supplied stage inputs; when absent the handler computes
// them from the earlier stages.
type ticketRequest struct {
	Ticket         pipeline.TicketInput
	Classification *pipeline.ClassificationResult
	Context        *pipeline.RetrievalResult
	UseSonnet      bool
}

type errorResponse struct {
	Message       string `json:"message"`
	Error         string `json:"error"`
	CorrelationID string `json:"correlation_id"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	correlationID := newCorrelationID(r)
	req, err := decodeTicketRequest(r)
	if err != nil {
		s.writeError(w, correlationID, err)
		return
	}
	if err := req.Ticket.Validate(); err != nil {
		s.writeError(w, correlationID, err)
		return
	}

	result, _ := s.classifier.Classify(r.Context(), req.Ticket, req.UseSonnet)
	writeEntity(w, correlationID, result)
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	correlationID := newCorrelationID(r)
	req, err := decodeTicketRequest(r)
	if err != nil {
		s.writeError(w, correlationID, err)
		return
	}
	if err := req.Ticket.Validate(); err != nil {
		s.writeError(w, correlationID, err)
		return
	}

	classification := s.resolveClassification(r, req)
	retrieval, _ := s.retriever.BuildContext(r.Context(), req.Ticket, classification)
	writeEntity(w, correlationID, retrieval)
}

func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	correlationID := newCorrelationID(r)
	req, err := decodeTicketRequest(r)
	if err != nil {
		s.writeError(w, correlationID, err)
		return
	}
	if err := req.Ticket.Validate(); err != nil {
		s.writeError(w, correlationID, err)
		return
	}

	classification := s.resolveClassification(r, req)
	var retrieval pipeline.RetrievalResult
	if req.Context != nil {
		retrieval = *req.Context
	} else {
		retrieval, _ = s.retriever.BuildContext(r.Context(), req.Ticket, classification)
	}
	generation, _ := s.generator.Generate(r.Context(), req.Ticket, classification, retrieval, req.UseSonnet)
	writeEntity(w, correlationID, generation)
}

// resolveClassification prefers the caller-supplied classification so the
// retrieval and generation stages can be exercised independently.
func (s *Server) resolveClassification(r *http.Request, req ticketRequest) pipeline.ClassificationResult {
	if req.Classification != nil {
		return *req.Classification
	}
	classification, _ := s.classifier.Classify(r.Context(), req.Ticket, false)
	return classification
}

func (s *Server) handleOrchestrate(w http.ResponseWriter, r *http.Request) {
	correlationID := newCorrelationID(r)
	req, err := decodeTicketRequest(r)
	if err != nil {
		s.writeError(w, correlationID, err)
		return
	}

	result, err := s.runner.Run(r.Context(), req.Ticket, correlationID)
	if err != nil {
		s.writeError(w, correlationID, err)
		return
	}

	s.recordRun(r, req.Ticket, result)
	writeEntity(w, correlationID, result)
}

// recordRun publishes the outcome event and appends the interaction, both
// best effort. Neither failure changes the HTTP response.
func (s *Server) recordRun(r *http.Request, ticket pipeline.TicketInput, result *pipeline.OrchestrationResult) {
	if s.publisher != nil {
		if err := s.publisher.PublishOutcome(r.Context(), ticket, result); err != nil {
			s.logger.Warn("outcome publication failed",
				"correlation_id", result.Trace.CorrelationID,
				"error", err,
			)
		}
	}
	if s.interactions != nil && ticket.CustomerExternalID != "" {
		interaction := store.Interaction{
			CustomerID: ticket.CustomerExternalID,
			Timestamp:  time.Now().UTC(),
			Channel:    ticket.Channel,
			Summary:    ticket.Title,
			Sentiment:  sentimentScore(result.Classification.Sentiment),
		}
		if err := s.interactions.Append(r.Context(), interaction); err != nil {
			s.logger.Warn("interaction append failed",
				"correlation_id", result.Trace.CorrelationID,
				"error", err,
			)
		}
	}
}

func sentimentScore(s pipeline.Sentiment) float64 {
	switch s {
	case pipeline.SentimentPositive:
		return 0.5
	case pipeline.SentimentNegative:
		return -0.5
	default:
		return 0
	}
}

// decodeTicketRequest normalizes the three accepted envelopes into one
// request shape.
func decodeTicketRequest(r *http.Request) (ticketRequest, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return ticketRequest{}, fmt.Errorf("read request body: %w", err)
	}
	return decodePayload(data)
}

func decodePayload(data []byte) (ticketRequest, error) {
	var envelope struct {
		Body           string                         `json:"body"`
		Ticket         *pipeline.TicketInput          `json:"ticket"`
		Classification *pipeline.ClassificationResult `json:"classification"`
		Context        *pipeline.RetrievalResult      `json:"context"`
		UseSonnet      bool                           `json:"use_sonnet"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return ticketRequest{}, fmt.Errorf("invalid JSON payload: %w", err)
	}

	// Gateway envelope: the real payload is a JSON string under "body".
	if envelope.Body != "" {
		return decodePayload([]byte(envelope.Body))
	}
	if envelope.Ticket != nil {
		return ticketRequest{
			Ticket:         *envelope.Ticket,
			Classification: envelope.Classification,
			Context:        envelope.Context,
			UseSonnet:      envelope.UseSonnet,
		}, nil
	}

	var ticket pipeline.TicketInput
	if err := json.Unmarshal(data, &ticket); err != nil {
		return ticketRequest{}, fmt.Errorf("invalid ticket payload: %w", err)
	}
	return ticketRequest{Ticket: ticket, UseSonnet: envelope.UseSonnet}, nil
}

func newCorrelationID(r *http.Request) string {
	if id := r.Header.Get("X-Correlation-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

func (s *Server) writeError(w http.ResponseWriter, correlationID string, err error) {
	s.logger.Warn("request rejected", "correlation_id", correlationID, "error", err)
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Message:       "Invalid input.",
		Error:         err.Error(),
		CorrelationID: correlationID,
	})
}

// writeEntity serializes the entity directly as the response body; the
// correlation id travels in a header so the body round-trips the entity
// exactly.
func writeEntity(w http.ResponseWriter, correlationID string, body any) {
	w.Header().Set("X-Correlation-ID", correlationID)
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
