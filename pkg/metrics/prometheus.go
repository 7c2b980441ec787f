package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Evaluation outcomes used as the "outcome" label.
const (
	OutcomeValid           = "valid"
	OutcomeInvalidGeometry = "invalid_geometry"
	OutcomeRejected        = "rejected"
)

// PrometheusMetrics holds all Prometheus metrics
type PrometheusMetrics struct {
	// Evaluation metrics
	EvaluationsTotal *prometheus.CounterVec
	FitnessHistogram *prometheus.HistogramVec

	// Batch metrics
	BatchesTotal     *prometheus.CounterVec
	BatchLatency     *prometheus.HistogramVec
	BatchSizeSummary *prometheus.SummaryVec

	// Physics metrics
	ReliabilityPenaltyTotal *prometheus.CounterVec
	LifetimeGauge           *prometheus.GaugeVec

	// Service metrics
	ThrottledTotal prometheus.Counter
	CacheHitsTotal prometheus.Counter
	CacheMissTotal prometheus.Counter
}

// NewPrometheusMetrics registers the metrics with reg. Tests should pass a
// fresh prometheus.NewRegistry().
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		EvaluationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wban_evaluations_total",
				Help: "Total number of fitness evaluations",
			},
			[]string{"scenario", "outcome"},
		),

		FitnessHistogram: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wban_fitness",
				Help:    "Fitness of geometrically valid placements",
				Buckets: prometheus.ExponentialBuckets(0.1, 4, 10),
			},
			[]string{"scenario"},
		),

		BatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wban_batches_total",
				Help: "Total number of population batches",
			},
			[]string{"scenario", "status"},
		),

		BatchLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wban_batch_latency_seconds",
				Help:    "Population batch evaluation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"scenario"},
		),

		BatchSizeSummary: factory.NewSummaryVec(
			prometheus.SummaryOpts{
				Name:       "wban_batch_size",
				Help:       "Number of solution vectors per batch",
				Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01},
			},
			[]string{"scenario"},
		),

		ReliabilityPenaltyTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wban_reliability_penalty_total",
				Help: "Accumulated reliability penalty reported by metrics decompositions",
			},
			[]string{"scenario"},
		),

		LifetimeGauge: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "wban_last_network_lifetime_rounds",
				Help: "Network lifetime of the most recent metrics decomposition",
			},
			[]string{"scenario"},
		),

		ThrottledTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "wban_requests_throttled_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
		),

		CacheHitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "wban_evaluator_cache_hits_total",
				Help: "Total number of evaluator cache hits",
			},
		),

		CacheMissTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "wban_evaluator_cache_misses_total",
				Help: "Total number of evaluator cache misses",
			},
		),
	}
}

// RecordEvaluation records one scored vector
func (m *PrometheusMetrics) RecordEvaluation(scenario, outcome string, fitness float64) {
	m.EvaluationsTotal.WithLabelValues(scenario, outcome).Inc()
	if outcome == OutcomeValid {
		m.FitnessHistogram.WithLabelValues(scenario).Observe(fitness)
	}
}

// RecordBatch records a completed or failed batch
func (m *PrometheusMetrics) RecordBatch(scenario, status string, size int, duration time.Duration) {
	m.BatchesTotal.WithLabelValues(scenario, status).Inc()
	m.BatchLatency.WithLabelValues(scenario).Observe(duration.Seconds())
	m.BatchSizeSummary.WithLabelValues(scenario).Observe(float64(size))
}

// RecordMetrics records a metrics decomposition
func (m *PrometheusMetrics) RecordMetrics(scenario string, reliabilityPenalty, lifetime float64) {
	if reliabilityPenalty > 0 {
		m.ReliabilityPenaltyTotal.WithLabelValues(scenario).Add(reliabilityPenalty)
	}
	m.LifetimeGauge.WithLabelValues(scenario).Set(lifetime)
}

// RecordThrottled records a rate-limited request
func (m *PrometheusMetrics) RecordThrottled() {
	m.ThrottledTotal.Inc()
}

// RecordCacheHit records an evaluator cache hit
func (m *PrometheusMetrics) RecordCacheHit() {
	m.CacheHitsTotal.Inc()
}

// RecordCacheMiss records an evaluator cache miss
func (m *PrometheusMetrics) RecordCacheMiss() {
	m.CacheMissTotal.Inc()
}
