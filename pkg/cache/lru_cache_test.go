package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/snow-ghost/wban/core"
	"github.com/snow-ghost/wban/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingBuilder(builds *atomic.Int64) Builder {
	doc := registry.DefaultDocument()
	return func(scenarioID string, w core.Weights) (*core.Evaluator, error) {
		builds.Add(1)
		return doc.NewEvaluator(scenarioID, w, nil)
	}
}

func TestNewCacheKey(t *testing.T) {
	a := NewCacheKey("S1", core.Weights{Energy: 0.5, Reliability: 0.5})
	b := NewCacheKey("S1", core.Weights{Energy: 0.5, Reliability: 0.5})
	c := NewCacheKey("S1", core.Weights{Energy: 0.8, Reliability: 0.2})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, CacheKey("S1|w_E=0.5|w_R=0.5"), a)
}

func TestEvaluatorCacheGet(t *testing.T) {
	var builds atomic.Int64
	c, err := NewEvaluatorCache(2, countingBuilder(&builds))
	require.NoError(t, err)

	w := core.Weights{Energy: 0.5, Reliability: 0.5}
	first, hit, err := c.Get("S1", w)
	require.NoError(t, err)
	assert.False(t, hit)

	second, hit, err := c.Get("S1", w)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Same(t, first, second)
	assert.Equal(t, int64(1), builds.Load())

	_, _, err = c.Get("S2", w)
	require.NoError(t, err)
	_, _, err = c.Get("S1", core.Weights{Energy: 1})
	require.NoError(t, err)

	want := CacheStats{Hits: 1, Misses: 3, Evictions: 1, Size: 2, MaxSize: 2, HitRate: 0.25}
	got := c.Stats()
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}

	c.Purge()
	assert.Zero(t, c.Len())
}

func TestEvaluatorCacheErrorsAreNotCached(t *testing.T) {
	var builds atomic.Int64
	c, err := NewEvaluatorCache(0, countingBuilder(&builds))
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxSize, c.Stats().MaxSize)

	for i := 0; i < 2; i++ {
		_, _, err := c.Get("S9", core.Weights{Energy: 1})
		assert.True(t, errors.Is(err, registry.ErrUnknownScenario))
	}
	assert.Equal(t, int64(2), builds.Load())
	assert.Zero(t, c.Len())
}

func TestEvaluatorCacheSingleflight(t *testing.T) {
	var builds atomic.Int64
	doc := registry.DefaultDocument()
	release := make(chan struct{})
	c, err := NewEvaluatorCache(4, func(id string, w core.Weights) (*core.Evaluator, error) {
		builds.Add(1)
		<-release
		return doc.NewEvaluator(id, w, nil)
	})
	require.NoError(t, err)

	const n = 8
	w := core.Weights{Energy: 0.5, Reliability: 0.5}
	results := make([]*core.Evaluator, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ev, _, err := c.Get("S2", w)
			assert.NoError(t, err)
			results[i] = ev
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), builds.Load())
	for _, ev := range results {
		assert.Same(t, results[0], ev)
	}
}
