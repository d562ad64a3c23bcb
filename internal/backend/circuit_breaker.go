package backend

import (
	"context"
	"fmt"

	"resumeflow/internal/config"
	"resumeflow/internal/errors"

	"github.com/sony/gobreaker/v2"
)

// StateObserver is notified when a breaker changes state.
type StateObserver interface {
	RecordBreakerStateChange(ctx context.Context, name, from, to string)
}

// Breaker wraps backend calls with the circuit breaker pattern
type Breaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

// NewBreaker creates a circuit breaker for one kind of backend call.
// It returns nil when the breaker is disabled; a nil Breaker runs calls directly.
func NewBreaker[T any](operation string, cfg config.CircuitBreakerConfig, logger *errors.Logger, observer StateObserver) *Breaker[T] {
	if !cfg.Enabled {
		return nil
	}

	settings := gobreaker.Settings{
		Name:        fmt.Sprintf("backend-%s", operation),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests &&
				failureRatio >= cfg.FailureThreshold
		},
		// The backend rejecting a file is an answer, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.TypeOf(err) == errors.ErrorTypeBackend
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if logger != nil {
				logger.Info("Circuit breaker state changed",
					"name", name,
					"operation", operation,
					"from", from.String(),
					"to", to.String(),
					"max_requests", cfg.MaxRequests,
					"failure_threshold", cfg.FailureThreshold)
			}
			if observer != nil {
				observer.RecordBreakerStateChange(context.Background(), name, from.String(), to.String())
			}
		},
	}

	return &Breaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings)}
}

// Execute runs fn with circuit breaker protection
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	if b == nil || b.cb == nil {
		return fn()
	}
	result, err := b.cb.Execute(fn)
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return result, errors.NewNetworkError(errors.ErrCodeCircuitOpen,
			"The résumé service is temporarily unavailable, please try again shortly", err)
	}
	return result, err
}

// GetStats returns circuit breaker statistics
func (b *Breaker[T]) GetStats() map[string]any {
	if b == nil || b.cb == nil {
		return map[string]any{
			"enabled": false,
		}
	}

	return map[string]any{
		"name":    b.cb.Name(),
		"state":   b.cb.State().String(),
		"counts":  b.cb.Counts(),
		"enabled": true,
	}
}

// IsHealthy returns true if the circuit breaker is in closed state
func (b *Breaker[T]) IsHealthy() bool {
	if b == nil || b.cb == nil {
		return true
	}
	return b.cb.State() == gobreaker.StateClosed
}
