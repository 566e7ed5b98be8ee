package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the Prometheus collectors for the ticket pipeline. A nil
// *Metrics is valid everywhere and turns instrumentation into a no-op, so
// tests can construct pipeline components without touching the default
// registry.
type Metrics struct {
	StageDuration    *prometheus.HistogramVec
	StageFallbacks   *prometheus.CounterVec
	CacheHits        *prometheus.CounterVec
	CacheMisses      *prometheus.CounterVec
	OrchestrationRun *prometheus.CounterVec
	EventsPublished  *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Wall-clock duration of each pipeline stage",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		StageFallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_stage_fallbacks_total",
			Help: "Degraded stage executions by stage and reason",
		}, []string{"stage", "reason"}),
		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_cache_hits_total",
			Help: "Cache hits by cache name",
		}, []string{"cache"}),
		CacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_cache_misses_total",
			Help: "Cache misses by cache name",
		}, []string{"cache"}),
		OrchestrationRun: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_orchestration_runs_total",
			Help: "Completed orchestration runs by terminal state",
		}, []string{"state"}),
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_events_published_total",
			Help: "Outcome events published to the broker by status",
		}, []string{"status"}),
	}
}

// ObserveStage records one stage execution. Safe on a nil receiver.
func (m *Metrics) ObserveStage(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(seconds)
}

// Fallback counts one degraded stage execution. Safe on a nil receiver.
func (m *Metrics) Fallback(stage, reason string) {
	if m == nil {
		return
	}
	m.StageFallbacks.WithLabelValues(stage, reason).Inc()
}

// CacheHit counts a hit for the named cache. Safe on a nil receiver.
func (m *Metrics) CacheHit(cache string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(cache).Inc()
}

// CacheMiss counts a miss for the named cache. Safe on a nil receiver.
func (m *Metrics) CacheMiss(cache string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(cache).Inc()
}

// OrchestrationCompleted counts one finished run. Safe on a nil receiver.
func (m *Metrics) OrchestrationCompleted(state string) {
	if m == nil {
		return
	}
	m.OrchestrationRun.WithLabelValues(state).Inc()
}

// EventPublished counts one outcome event publication attempt. Safe on a nil
// receiver.
func (m *Metrics) EventPublished(status string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(status).Inc()
}
