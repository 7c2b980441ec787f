package cache

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/snow-ghost/wban/core"
	"golang.org/x/sync/singleflight"
)

// Builder constructs an evaluator for a scenario/weights pair
type Builder func(scenarioID string, w core.Weights) (*core.Evaluator, error)

// EvaluatorCache keeps recently used evaluators. Concurrent misses for the
// same key share one build.
type EvaluatorCache struct {
	cache *lru.Cache[CacheKey, *core.Evaluator]
	group singleflight.Group
	build Builder

	mu    sync.Mutex
	stats CacheStats
}

// NewEvaluatorCache creates a new evaluator cache; maxSize <= 0 selects DefaultMaxSize
func NewEvaluatorCache(maxSize int, build Builder) (*EvaluatorCache, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	c := &EvaluatorCache{build: build, stats: CacheStats{MaxSize: maxSize}}
	cache, err := lru.NewWithEvict[CacheKey, *core.Evaluator](maxSize, func(CacheKey, *core.Evaluator) {
		c.mu.Lock()
		c.stats.Evictions++
		c.mu.Unlock()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	c.cache = cache
	return c, nil
}

// Get returns the cached evaluator or builds one. hit reports whether the
// evaluator came from the cache. Build errors are not cached.
func (c *EvaluatorCache) Get(scenarioID string, w core.Weights) (ev *core.Evaluator, hit bool, err error) {
	key := NewCacheKey(scenarioID, w)
	if ev, ok := c.cache.Get(key); ok {
		c.count(func(s *CacheStats) { s.Hits++ })
		return ev, true, nil
	}

	v, err, shared := c.group.Do(string(key), func() (interface{}, error) {
		if ev, ok := c.cache.Get(key); ok {
			return ev, nil
		}
		ev, err := c.build(scenarioID, w)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, ev)
		return ev, nil
	})
	c.count(func(s *CacheStats) {
		s.Misses++
		if shared {
			s.Shared++
		}
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*core.Evaluator), false, nil
}

// Stats returns cache statistics
func (c *EvaluatorCache) Stats() CacheStats {
	// The eviction callback takes c.mu under the LRU's lock, so read the
	// length first.
	size := c.cache.Len()

	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Size = size
	stats.CalculateHitRate()
	return stats
}

// Len returns the number of cached evaluators
func (c *EvaluatorCache) Len() int {
	return c.cache.Len()
}

// Purge drops every cached evaluator
func (c *EvaluatorCache) Purge() {
	c.cache.Purge()
}

func (c *EvaluatorCache) count(update func(*CacheStats)) {
	c.mu.Lock()
	update(&c.stats)
	c.mu.Unlock()
}
