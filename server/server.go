// Package server exposes the ticket pipeline over HTTP. Routes are
// versionless on purpose: the service sits behind an internal gateway that
// owns versioning.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Sumitbhoyar/customer-support-copilot/cache"
	"github.com/Sumitbhoyar/customer-support-copilot/pipeline"
	"github.com/Sumitbhoyar/customer-support-copilot/pkg/logging"
	"github.com/Sumitbhoyar/customer-support-copilot/store"
)

// OutcomePublisher emits events for finished orchestration runs.
type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, ticket pipeline.TicketInput, result *pipeline.OrchestrationResult) error
}

// InteractionAppender records a finished run in the interaction history.
type InteractionAppender interface {
	Append(ctx context.Context, interaction store.Interaction) error
}

// Pinger reports reachability of a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires the pipeline stages and their supporting services behind an
// HTTP mux.
type Server struct {
	classifier *pipeline.Classifier
	retriever  *pipeline.Retriever
	generator  *pipeline.Generator
	runner     pipeline.Runner

	publisher    OutcomePublisher
	interactions InteractionAppender
	dependencies map[string]Pinger

	logger *slog.Logger
}

// Option configures optional server collaborators.
type Option func(*Server)

// WithPublisher attaches the outcome event publisher.
func WithPublisher(p OutcomePublisher) Option {
	return func(s *Server) { s.publisher = p }
}

// WithInteractions attaches the interaction history writer.
func WithInteractions(a InteractionAppender) Option {
	return func(s *Server) { s.interactions = a }
}

// WithDependency registers a named backing store for the health report.
func WithDependency(name string, p Pinger) Option {
	return func(s *Server) { s.dependencies[name] = p }
}

// New builds the server around the pipeline stages and an orchestration
// strategy.
func New(classifier *pipeline.Classifier, retriever *pipeline.Retriever, generator *pipeline.Generator, runner pipeline.Runner, opts ...Option) *Server {
	s := &Server{
		classifier:   classifier,
		retriever:    retriever,
		generator:    generator,
		runner:       runner,
		dependencies: make(map[string]Pinger),
		logger:       logging.WithComponent("server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router assembles the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)

	r.HandleFunc("/tickets/classify", s.handleClassify).Methods(http.MethodPost)
	r.HandleFunc("/tickets/context", s.handleContext).Methods(http.MethodPost)
	r.HandleFunc("/tickets/respond", s.handleRespond).Methods(http.MethodPost)
	r.HandleFunc("/tickets/auto-orchestrate", s.handleOrchestrate).Methods(http.MethodPost)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

// ListenAndServe runs the HTTP server until ctx is cancelled, then drains
// in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	type health struct {
		Status       string            `json:"status"`
		Cache        cache.Stats       `json:"classification_cache"`
		Dependencies map[string]string `json:"dependencies,omitempty"`
	}

	report := health{Status: "ok", Cache: s.classifier.CacheStats()}
	if len(s.dependencies) > 0 {
		report.Dependencies = make(map[string]string, len(s.dependencies))
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for name, dep := range s.dependencies {
			if err := dep.Ping(ctx); err != nil {
				report.Dependencies[name] = err.Error()
				report.Status = "degraded"
			} else {
				report.Dependencies[name] = "ok"
			}
		}
	}

	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}
