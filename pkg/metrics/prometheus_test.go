package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// value returns the first sample of a counter or gauge family
func value(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		m := f.GetMetric()[0]
		if c := m.GetCounter(); c != nil {
			return c.GetValue()
		}
		return m.GetGauge().GetValue()
	}
	t.Fatalf("metric %s not gathered", name)
	return 0
}

func TestPrometheusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusMetrics(reg)

	m.RecordEvaluation("S1", OutcomeValid, 3.2)
	m.RecordEvaluation("S1", OutcomeValid, 4.1)
	m.RecordBatch("S1", "success", 2, 5*time.Millisecond)
	m.RecordMetrics("S1", 120, 4000)
	m.RecordMetrics("S1", 0, 5000)
	m.RecordThrottled()
	m.RecordCacheHit()
	m.RecordCacheMiss()
	m.RecordCacheMiss()

	assert.Equal(t, 2.0, value(t, reg, "wban_evaluations_total"))
	assert.Equal(t, 1.0, value(t, reg, "wban_batches_total"))
	assert.Equal(t, 120.0, value(t, reg, "wban_reliability_penalty_total"))
	assert.Equal(t, 5000.0, value(t, reg, "wban_last_network_lifetime_rounds"))
	assert.Equal(t, 1.0, value(t, reg, "wban_requests_throttled_total"))
	assert.Equal(t, 2.0, value(t, reg, "wban_evaluator_cache_misses_total"))
}

func TestInvalidPlacementsSkipFitnessHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusMetrics(reg)

	m.RecordEvaluation("S2", OutcomeInvalidGeometry, 1e6+1000)

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		assert.NotEqual(t, "wban_fitness", f.GetName())
	}
}

func TestNewPrometheusMetricsPerRegistry(t *testing.T) {
	assert.NotPanics(t, func() {
		NewPrometheusMetrics(prometheus.NewRegistry())
		NewPrometheusMetrics(prometheus.NewRegistry())
	})
}
