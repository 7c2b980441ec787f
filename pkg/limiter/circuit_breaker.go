package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/snow-ghost/wban/pkg/logging"
	"github.com/sony/gobreaker"
)

// BreakerConfig holds circuit breaker configuration
type BreakerConfig struct {
	Name         string
	MaxRequests  uint32 // trial calls allowed while half-open
	Interval     time.Duration
	Timeout      time.Duration // open -> half-open
	MinRequests  uint32
	FailureRatio float64
}

// DefaultBreakerConfig returns a default circuit breaker configuration
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:         name,
		MaxRequests:  3,
		Interval:     10 * time.Second,
		Timeout:      30 * time.Second,
		MinRequests:  5,
		FailureRatio: 0.5,
	}
}

// CircuitBreaker fails fast once a dependency keeps erroring
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewCircuitBreaker creates a breaker that logs its state changes
func NewCircuitBreaker(config BreakerConfig, logger *logging.Logger) *CircuitBreaker {
	if logger == nil {
		logger = logging.NewNop()
	}
	minRequests, ratio := config.MinRequests, config.FailureRatio
	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= minRequests &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		},
		// cancelled callers say nothing about the dependency
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})}
}

// Do runs fn through the breaker
func (b *CircuitBreaker) Do(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

// State returns closed, half-open or open
func (b *CircuitBreaker) State() string {
	return b.cb.State().String()
}

// GetStats returns circuit breaker statistics
func (b *CircuitBreaker) GetStats() map[string]interface{} {
	counts := b.cb.Counts()
	return map[string]interface{}{
		"name":                 b.cb.Name(),
		"state":                b.cb.State().String(),
		"requests":             counts.Requests,
		"total_success":        counts.TotalSuccesses,
		"total_failures":       counts.TotalFailures,
		"consecutive_success":  counts.ConsecutiveSuccesses,
		"consecutive_failures": counts.ConsecutiveFailures,
	}
}

// IsRejected reports whether err came from the breaker refusing the call
func IsRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
