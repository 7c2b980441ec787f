package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/snow-ghost/wban/pkg/limiter"
	"github.com/snow-ghost/wban/pkg/observability"
	"github.com/snow-ghost/wban/pkg/registry"
	"github.com/snow-ghost/wban/pkg/reports"
)

// Worker is the evaluation service: the HTTP API over one loaded parameter
// document plus its report store.
type Worker struct {
	config   *Config
	obs      *observability.Manager
	doc      *registry.Document
	factory  *Factory
	store    reports.Store
	ingestor *Ingestor
	server   *http.Server
}

// New wires a worker. Metrics exposed on /metrics are read from gatherer.
func New(config *Config, obs *observability.Manager, gatherer prometheus.Gatherer) (*Worker, error) {
	factory, doc, err := NewFactoryFromConfig(config, obs)
	if err != nil {
		return nil, fmt.Errorf("failed to load parameters: %w", err)
	}
	obs.GetLogger().LogConfigLoaded(registry.NewLoader(config.ConfigPath).Path(), doc.ScenarioIDs())

	var store reports.Store
	if config.ReportDB != "" {
		sqlite, err := reports.NewSQLiteStore(config.ReportDB)
		if err != nil {
			return nil, fmt.Errorf("failed to open report store: %w", err)
		}
		store = sqlite
	} else {
		store = reports.NewMemoryStore()
	}

	rl := limiter.NewRateLimiter(limiter.Config{
		RequestsPerSecond: config.RateLimitRPS,
		Burst:             config.RateLimitBurst,
	})
	ingestor := NewIngestor(factory, store, rl, obs, config.EvalConcurrency)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/", ingestor)

	return &Worker{
		config:   config,
		obs:      obs,
		doc:      doc,
		factory:  factory,
		store:    store,
		ingestor: ingestor,
		server: &http.Server{
			Addr:              ":" + config.WorkerPort,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Handler returns the root HTTP handler
func (w *Worker) Handler() http.Handler {
	return w.server.Handler
}

// Factory returns the evaluator factory
func (w *Worker) Factory() *Factory {
	return w.factory
}

// Start serves until Shutdown is called
func (w *Worker) Start() error {
	w.obs.GetLogger().Info("worker starting", "port", w.config.WorkerPort)
	if err := w.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the report store
func (w *Worker) Shutdown(ctx context.Context) error {
	err := w.server.Shutdown(ctx)
	if cerr := w.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
