package worker

import (
	"context"

	"github.com/snow-ghost/wban/pkg/limiter"
	"github.com/snow-ghost/wban/pkg/reports"
)

// guardedStore routes report store calls through a circuit breaker so a
// failing database is answered with 503 instead of piling up requests.
type guardedStore struct {
	reports.Store
	breaker *limiter.CircuitBreaker
}

func newGuardedStore(store reports.Store, breaker *limiter.CircuitBreaker) *guardedStore {
	return &guardedStore{Store: store, breaker: breaker}
}

func (g *guardedStore) Record(ctx context.Context, r reports.Report) (id int64, err error) {
	err = g.breaker.Do(func() error {
		id, err = g.Store.Record(ctx, r)
		return err
	})
	return id, err
}

func (g *guardedStore) List(ctx context.Context, f reports.Filter) (list []reports.Report, err error) {
	err = g.breaker.Do(func() error {
		list, err = g.Store.List(ctx, f)
		return err
	})
	return list, err
}

func (g *guardedStore) Summaries(ctx context.Context) (s []reports.Summary, err error) {
	err = g.breaker.Do(func() error {
		s, err = g.Store.Summaries(ctx)
		return err
	})
	return s, err
}
