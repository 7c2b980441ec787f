package cache

import (
	"fmt"

	"github.com/snow-ghost/wban/core"
)

// CacheKey identifies an evaluator by scenario and weights
type CacheKey string

// NewCacheKey builds the key for a scenario/weights pair
func NewCacheKey(scenarioID string, w core.Weights) CacheKey {
	return CacheKey(fmt.Sprintf("%s|w_E=%g|w_R=%g", scenarioID, w.Energy, w.Reliability))
}

// CacheStats represents cache statistics
type CacheStats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Shared    int64   `json:"shared"` // builds joined by a concurrent caller
	Size      int     `json:"size"`
	MaxSize   int     `json:"max_size"`
	HitRate   float64 `json:"hit_rate"`
}

// CalculateHitRate calculates the hit rate
func (s *CacheStats) CalculateHitRate() {
	total := s.Hits + s.Misses
	if total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	} else {
		s.HitRate = 0
	}
}

// DefaultMaxSize bounds the number of cached evaluators
const DefaultMaxSize = 64
