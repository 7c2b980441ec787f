package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/snow-ghost/wban/pkg/logging"
	"github.com/snow-ghost/wban/pkg/metrics"
	"github.com/snow-ghost/wban/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Manager manages all observability components
type Manager struct {
	metrics *metrics.PrometheusMetrics
	tracer  *tracing.Tracer
	logger  *logging.Logger
}

// Config holds observability configuration
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	JaegerEndpoint string
	LogLevel       string
	LogFormat      string
	LogFile        string
}

// NewManager creates a new observability manager. Metrics are registered
// with reg.
func NewManager(config Config, reg prometheus.Registerer) (*Manager, error) {
	tracer, err := tracing.NewTracer(tracing.Config{
		ServiceName:    config.ServiceName,
		ServiceVersion: config.ServiceVersion,
		JaegerEndpoint: config.JaegerEndpoint,
		Environment:    config.Environment,
	})
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:      config.LogLevel,
		Format:     config.LogFormat,
		Output:     "stdout",
		AddCaller:  true,
		File:       config.LogFile,
		MaxSizeMB:  100,
		MaxBackups: 3,
	})
	if err != nil {
		return nil, err
	}

	return &Manager{
		metrics: metrics.NewPrometheusMetrics(reg),
		tracer:  tracer,
		logger:  logger,
	}, nil
}

// NewLocalManager wires logger with a no-op tracer and a private metrics
// registry, for one-shot processes that export nothing.
func NewLocalManager(logger *logging.Logger) *Manager {
	return &Manager{
		metrics: metrics.NewPrometheusMetrics(prometheus.NewRegistry()),
		tracer:  tracing.NewNoopTracer(),
		logger:  logger,
	}
}

// NewTestManager is NewLocalManager with a discarding logger
func NewTestManager() *Manager {
	return NewLocalManager(logging.NewNop())
}

// GetMetrics returns the metrics instance
func (m *Manager) GetMetrics() *metrics.PrometheusMetrics {
	return m.metrics
}

// GetTracer returns the tracer instance
func (m *Manager) GetTracer() *tracing.Tracer {
	return m.tracer
}

// GetLogger returns the logger instance
func (m *Manager) GetLogger() *logging.Logger {
	return m.logger
}

// StartBatchSpan starts a span for a population batch with logging
func (m *Manager) StartBatchSpan(ctx context.Context, operation, scenario string, size int) (context.Context, trace.Span) {
	ctx, span := m.tracer.StartBatchSpan(ctx, operation, scenario, size)

	requestID := GetRequestIDFromContext(ctx)
	if requestID != "" {
		span.SetAttributes(attribute.String("request_id", requestID))
	}

	m.logger.WithRequestID(ctx, requestID).WithFields(map[string]interface{}{
		"operation": operation,
		"scenario":  scenario,
		"size":      size,
	}).Debug("Batch started")

	return ctx, span
}

// RecordBatchMetrics records the per-vector outcomes and the batch itself
func (m *Manager) RecordBatchMetrics(scenario, status string, fitness []float64, outcomes []string, duration time.Duration) {
	for i, outcome := range outcomes {
		if outcome == "" {
			continue
		}
		m.metrics.RecordEvaluation(scenario, outcome, fitness[i])
	}
	m.metrics.RecordBatch(scenario, status, len(outcomes), duration)
}

// RecordCacheMetrics records cache metrics
func (m *Manager) RecordCacheMetrics(hit bool) {
	if hit {
		m.metrics.RecordCacheHit()
	} else {
		m.metrics.RecordCacheMiss()
	}
}

// LogRequestCompletion logs an HTTP request completion
func (m *Manager) LogRequestCompletion(ctx context.Context, method, path string, statusCode int, duration time.Duration, requestID string) {
	m.logger.LogRequest(ctx, method, path, statusCode, duration, requestID)
}

// Shutdown shuts down all observability components
func (m *Manager) Shutdown(ctx context.Context) error {
	if err := m.tracer.Shutdown(ctx); err != nil {
		return err
	}
	// Sync on stdout returns EINVAL on some platforms; nothing to recover.
	_ = m.logger.Sync()
	return nil
}

type contextKey string

const requestIDKey contextKey = "request_id"

// GetRequestIDFromContext extracts request ID from context
func GetRequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithRequestID adds request ID to context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}
