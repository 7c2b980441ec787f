package limiter

import (
	"sync"

	"golang.org/x/time/rate"
)

// Config sets the token bucket applied to each client
type Config struct {
	RequestsPerSecond float64 // <= 0 disables limiting
	Burst             int
}

// RateLimiter manages per-client rate limiting of evaluation requests
type RateLimiter struct {
	config   Config
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config Config) *RateLimiter {
	if config.Burst <= 0 {
		config.Burst = 1
	}
	return &RateLimiter{
		config:   config,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Enabled reports whether requests are limited at all
func (rl *RateLimiter) Enabled() bool {
	return rl.config.RequestsPerSecond > 0
}

// GetLimiter returns or creates the limiter for a client
func (rl *RateLimiter) GetLimiter(clientID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, exists := rl.limiters[clientID]; exists {
		return limiter
	}

	limit := rate.Inf
	if rl.Enabled() {
		limit = rate.Limit(rl.config.RequestsPerSecond)
	}
	limiter := rate.NewLimiter(limit, rl.config.Burst)
	rl.limiters[clientID] = limiter
	return limiter
}

// Allow checks if the request is allowed without waiting
func (rl *RateLimiter) Allow(clientID string) bool {
	return rl.GetLimiter(clientID).Allow()
}

// GetStats returns rate limiter statistics for a client
func (rl *RateLimiter) GetStats(clientID string) map[string]interface{} {
	limiter := rl.GetLimiter(clientID)

	return map[string]interface{}{
		"client_id": clientID,
		"limit":     float64(limiter.Limit()),
		"burst":     limiter.Burst(),
		"tokens":    limiter.Tokens(),
	}
}

// Clients returns the number of tracked clients
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return len(rl.limiters)
}
