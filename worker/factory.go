package worker

import (
	"fmt"

	"github.com/snow-ghost/wban/core"
	"github.com/snow-ghost/wban/pkg/cache"
	"github.com/snow-ghost/wban/pkg/observability"
	"github.com/snow-ghost/wban/pkg/registry"
	"github.com/snow-ghost/wban/propagation"
)

// Factory hands out evaluators for the scenarios of one loaded document.
// Evaluators are shared: they are read-only after construction.
type Factory struct {
	doc       *registry.Document
	shadowing core.Shadowing
	cache     *cache.EvaluatorCache
	obs       *observability.Manager
}

// NewFactory creates a factory over a validated document. A nil shadowing
// source draws from runtime entropy; obs may be nil.
func NewFactory(doc *registry.Document, shadowing core.Shadowing, cacheSize int, obs *observability.Manager) (*Factory, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", registry.ErrInvalidConfig)
	}
	if shadowing == nil {
		shadowing = propagation.NewEntropyShadowing()
	}

	if obs == nil {
		obs = observability.NewTestManager()
	}

	f := &Factory{doc: doc, shadowing: shadowing, obs: obs}
	c, err := cache.NewEvaluatorCache(cacheSize, f.build)
	if err != nil {
		return nil, err
	}
	f.cache = c
	return f, nil
}

// NewFactoryFromConfig loads the parameter document and builds the factory
// the worker process runs with.
func NewFactoryFromConfig(config *Config, obs *observability.Manager) (*Factory, *registry.Document, error) {
	doc, err := registry.NewLoader(config.ConfigPath).Load()
	if err != nil {
		return nil, nil, err
	}

	var shadowing core.Shadowing
	if config.SeededShadowing {
		shadowing = propagation.NewGaussianShadowing(config.ShadowingSeed)
	}

	f, err := NewFactory(doc, shadowing, config.EvaluatorCacheSize, obs)
	if err != nil {
		return nil, nil, err
	}
	return f, doc, nil
}

// Evaluator returns the evaluator for a scenario and weight pair. Unknown
// scenarios fail with registry.ErrUnknownScenario.
func (f *Factory) Evaluator(scenarioID string, w core.Weights) (*core.Evaluator, error) {
	ev, hit, err := f.cache.Get(scenarioID, w)
	if err != nil {
		return nil, err
	}
	f.obs.RecordCacheMetrics(hit)
	return ev, nil
}

// Scenarios lists the scenario ids of the document
func (f *Factory) Scenarios() []string {
	return f.doc.ScenarioIDs()
}

// CacheStats exposes evaluator cache statistics
func (f *Factory) CacheStats() cache.CacheStats {
	return f.cache.Stats()
}

func (f *Factory) build(scenarioID string, w core.Weights) (*core.Evaluator, error) {
	return f.doc.NewEvaluator(scenarioID, w, f.shadowing)
}
