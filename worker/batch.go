package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/snow-ghost/wban/core"
	"github.com/snow-ghost/wban/pkg/metrics"
	"github.com/snow-ghost/wban/pkg/observability"
	"github.com/snow-ghost/wban/pkg/tracing"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// ErrEmptyBatch is returned for a batch without vectors
var ErrEmptyBatch = errors.New("empty batch")

// BatchEvaluator scores whole populations against one evaluator. Results
// keep the order of the input vectors.
type BatchEvaluator struct {
	eval        core.FitnessEvaluator
	scenario    string
	concurrency int
	obs         *observability.Manager
}

// NewBatchEvaluator creates a batch evaluator. concurrency <= 0 selects
// GOMAXPROCS; obs may be nil.
func NewBatchEvaluator(eval core.FitnessEvaluator, scenario string, concurrency int, obs *observability.Manager) *BatchEvaluator {
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	if obs == nil {
		obs = observability.NewTestManager()
	}
	return &BatchEvaluator{eval: eval, scenario: scenario, concurrency: concurrency, obs: obs}
}

// EvaluateBatch returns the fitness of every vector. The first failing vector
// or a cancelled context aborts the batch.
func (b *BatchEvaluator) EvaluateBatch(ctx context.Context, vectors [][]float64) ([]float64, error) {
	start := time.Now()
	ctx, span := b.obs.StartBatchSpan(ctx, "evaluate", b.scenario, len(vectors))
	defer span.End()

	fitness := make([]float64, len(vectors))
	outcomes := make([]string, len(vectors))
	err := b.run(ctx, len(vectors), func(i int) error {
		f, err := b.eval.Evaluate(vectors[i])
		if err != nil {
			outcomes[i] = metrics.OutcomeRejected
			return fmt.Errorf("vector %d: %w", i, err)
		}
		fitness[i] = f
		outcomes[i] = outcomeOf(f)
		return nil
	})

	b.finish(ctx, span, start, fitness, outcomes, err)
	if err != nil {
		return nil, err
	}
	return fitness, nil
}

// MetricsBatch returns the metrics decomposition of every vector
func (b *BatchEvaluator) MetricsBatch(ctx context.Context, vectors [][]float64) ([]core.Metrics, error) {
	start := time.Now()
	ctx, span := b.obs.StartBatchSpan(ctx, "metrics", b.scenario, len(vectors))
	defer span.End()

	results := make([]core.Metrics, len(vectors))
	err := b.run(ctx, len(vectors), func(i int) error {
		m, err := b.eval.Metrics(vectors[i])
		if err != nil {
			return fmt.Errorf("vector %d: %w", i, err)
		}
		results[i] = m
		return nil
	})

	duration := time.Since(start)
	tracing.RecordSpanDuration(span, duration)
	if err != nil {
		tracing.RecordSpanError(span, err)
		b.obs.GetMetrics().RecordBatch(b.scenario, "error", len(vectors), duration)
		return nil, err
	}

	for _, m := range results {
		b.obs.GetMetrics().RecordMetrics(b.scenario, m.ReliabilityPenalty, m.NetworkLifetime)
	}
	b.obs.GetMetrics().RecordBatch(b.scenario, "success", len(vectors), duration)
	tracing.RecordSpanSuccess(span)
	return results, nil
}

// run calls fn for every index with bounded parallelism
func (b *BatchEvaluator) run(ctx context.Context, n int, fn func(i int) error) error {
	if n == 0 {
		return ErrEmptyBatch
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	scheduled := 0
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(i)
		})
		scheduled++
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if scheduled < n {
		return ctx.Err()
	}
	return nil
}

func (b *BatchEvaluator) finish(ctx context.Context, span trace.Span, start time.Time, fitness []float64, outcomes []string, err error) {
	duration := time.Since(start)
	tracing.RecordSpanDuration(span, duration)

	if err != nil {
		tracing.RecordSpanError(span, err)
		b.obs.RecordBatchMetrics(b.scenario, "error", fitness, outcomes, duration)
		b.obs.GetLogger().Warn("Batch failed",
			"scenario", b.scenario,
			"size", len(fitness),
			"error", err.Error(),
			"request_id", observability.GetRequestIDFromContext(ctx),
		)
		return
	}

	best := math.Inf(1)
	invalid := 0
	for i, f := range fitness {
		if outcomes[i] == metrics.OutcomeInvalidGeometry {
			invalid++
		}
		best = math.Min(best, f)
	}

	tracing.RecordBatchOutcome(span, best, invalid)
	tracing.RecordSpanSuccess(span)
	b.obs.RecordBatchMetrics(b.scenario, "success", fitness, outcomes, duration)
	b.obs.GetLogger().LogBatch(ctx, b.scenario, len(fitness), invalid, best, duration, observability.GetRequestIDFromContext(ctx))
}

func outcomeOf(fitness float64) string {
	if fitness >= core.InvalidGeometryBase {
		return metrics.OutcomeInvalidGeometry
	}
	return metrics.OutcomeValid
}
