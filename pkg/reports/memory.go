package reports

import (
	"context"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MemoryStore implements Store in memory
type MemoryStore struct {
	reports []Report
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports: make([]Report, 0),
	}
}

// Record stores a report and returns its id
func (m *MemoryStore) Record(_ context.Context, r Report) (int64, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	r.ID = int64(len(m.reports) + 1)
	r.Vector = append([]float64(nil), r.Vector...)
	if r.Convergence != nil {
		r.Convergence = append([]float64(nil), r.Convergence...)
	}
	if r.ExecutionTime != nil {
		t := *r.ExecutionTime
		r.ExecutionTime = &t
	}

	m.reports = append(m.reports, r)
	return r.ID, nil
}

// List retrieves reports with filters, newest first
func (m *MemoryStore) List(_ context.Context, f Filter) ([]Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var filtered []Report
	for _, r := range m.reports {
		if matchesFilter(r, f) {
			filtered = append(filtered, r)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Timestamp.Equal(filtered[j].Timestamp) {
			return filtered[i].ID > filtered[j].ID
		}
		return filtered[i].Timestamp.After(filtered[j].Timestamp)
	})

	if f.Limit > 0 && len(filtered) > f.Limit {
		filtered = filtered[:f.Limit]
	}
	return filtered, nil
}

// Summaries aggregates reports per scenario, weights label and algorithm
func (m *MemoryStore) Summaries(_ context.Context) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type groupKey struct{ scenario, weights, algorithm string }
	groups := make(map[groupKey][]Report)
	var keys []groupKey
	for _, r := range m.reports {
		k := groupKey{r.Scenario, r.WeightsLabel, r.Algorithm}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], r)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].scenario != keys[j].scenario {
			return keys[i].scenario < keys[j].scenario
		}
		if keys[i].weights != keys[j].weights {
			return keys[i].weights < keys[j].weights
		}
		return keys[i].algorithm < keys[j].algorithm
	})

	summaries := make([]Summary, 0, len(keys))
	for _, k := range keys {
		group := groups[k]
		fitness := make([]float64, len(group))
		energy := make([]float64, len(group))
		lifetime := make([]float64, len(group))
		var times []float64
		for i, r := range group {
			fitness[i] = r.Fitness
			energy[i] = r.Metrics.TotalEnergyJ
			lifetime[i] = r.Metrics.NetworkLifetime
			if r.ExecutionTime != nil {
				times = append(times, *r.ExecutionTime)
			}
		}

		sum := Summary{
			Scenario:     k.scenario,
			WeightsLabel: k.weights,
			Algorithm:    k.algorithm,
			Count:        int64(len(group)),
			FitnessMin:   floats.Min(fitness),
		}
		sum.FitnessMean, sum.FitnessStd = sampleMeanStd(fitness)
		sum.EnergyMeanJ, sum.EnergyStdJ = sampleMeanStd(energy)
		sum.LifetimeMean, sum.LifetimeStd = sampleMeanStd(lifetime)
		if len(times) > 0 {
			mean := stat.Mean(times, nil)
			sum.ExecutionTimeMean = &mean
		}
		summaries = append(summaries, sum)
	}
	return summaries, nil
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}

// sampleMeanStd returns 0 deviation for single samples, where stat yields NaN
func sampleMeanStd(x []float64) (float64, float64) {
	if len(x) < 2 {
		return stat.Mean(x, nil), 0
	}
	return stat.MeanStdDev(x, nil)
}

func matchesFilter(r Report, f Filter) bool {
	if f.Scenario != "" && r.Scenario != f.Scenario {
		return false
	}
	if f.WeightsLabel != "" && r.WeightsLabel != f.WeightsLabel {
		return false
	}
	if f.Algorithm != "" && r.Algorithm != f.Algorithm {
		return false
	}
	return true
}
