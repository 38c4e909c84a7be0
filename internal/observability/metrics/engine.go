package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EngineMetrics aggregates the classification engine counters on a private
// registry. The serving layer mounts Handler() wherever it exposes metrics.
type EngineMetrics struct {
	registry *prometheus.Registry

	classificationsTotal *prometheus.CounterVec
	feedbackTotal        prometheus.Counter
	retrainsTotal        *prometheus.CounterVec
	cacheEvictionsTotal  prometheus.Counter
}

// NewEngineMetrics creates and registers the engine metric set.
func NewEngineMetrics() *EngineMetrics {
	registry := prometheus.NewRegistry()

	classificationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mailcat",
			Subsystem: "engine",
			Name:      "classifications_total",
			Help:      "Total classifications served, by predicted category and source.",
		},
		[]string{"category", "source"},
	)
	feedbackTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mailcat",
			Subsystem: "engine",
			Name:      "feedback_total",
			Help:      "Total accepted feedback samples.",
		},
	)
	retrainsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mailcat",
			Subsystem: "engine",
			Name:      "retrains_total",
			Help:      "Total retraining runs, by terminal status.",
		},
		[]string{"status"},
	)
	cacheEvictionsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mailcat",
			Subsystem: "engine",
			Name:      "cache_evictions_total",
			Help:      "Total prediction cache evictions (capacity and staleness).",
		},
	)

	registry.MustRegister(classificationsTotal, feedbackTotal, retrainsTotal, cacheEvictionsTotal)

	return &EngineMetrics{
		registry:             registry,
		classificationsTotal: classificationsTotal,
		feedbackTotal:        feedbackTotal,
		retrainsTotal:        retrainsTotal,
		cacheEvictionsTotal:  cacheEvictionsTotal,
	}
}

// Handler returns the promhttp handler for the private registry.
func (m *EngineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveClassification records one served classification.
func (m *EngineMetrics) ObserveClassification(category string, fromCache bool) {
	source := "model"
	if fromCache {
		source = "cache"
	}
	m.classificationsTotal.WithLabelValues(category, source).Inc()
}

// ObserveFeedback records one accepted feedback sample.
func (m *EngineMetrics) ObserveFeedback() {
	m.feedbackTotal.Inc()
}

// ObserveRetrain records a terminal retraining outcome.
func (m *EngineMetrics) ObserveRetrain(status string) {
	m.retrainsTotal.WithLabelValues(status).Inc()
}

// ObserveCacheEviction records one evicted cache entry.
func (m *EngineMetrics) ObserveCacheEviction() {
	m.cacheEvictionsTotal.Inc()
}
