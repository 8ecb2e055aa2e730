package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/crimson-sun/tonal/internal/metrics"
)

// CircuitBreakerHook is a goredis.Hook that stops sending commands to Redis
// after sustained failures, so an unavailable cache degrades to fast misses.
type CircuitBreakerHook struct {
	cb *gobreaker.CircuitBreaker
}

var _ goredis.Hook = (*CircuitBreakerHook)(nil)

// NewCircuitBreakerHook trips after at least 5 requests with a 60% failure
// rate inside a 10s window and probes again after 30s.
func NewCircuitBreakerHook() *CircuitBreakerHook {
	return newCircuitBreakerHook(gobreaker.Settings{
		Name:        "redis",
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
	})
}

func newCircuitBreakerHook(settings gobreaker.Settings) *CircuitBreakerHook {
	settings.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, goredis.Nil)
	}
	settings.OnStateChange = func(name string, from, to gobreaker.State) {
		slog.Warn("circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
		metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
	}
	return &CircuitBreakerHook{cb: gobreaker.NewCircuitBreaker(settings)}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func (h *CircuitBreakerHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := h.cb.Execute(func() (any, error) {
			return next(ctx, network, addr)
		})
		if err != nil {
			return nil, fmt.Errorf("circuit breaker dial: %w", err)
		}
		c, _ := conn.(net.Conn)
		return c, nil
	}
}

func (h *CircuitBreakerHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		_, err := h.cb.Execute(func() (any, error) {
			return nil, next(ctx, cmd)
		})
		return wrapBreakerErr(err)
	}
}

func (h *CircuitBreakerHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		_, err := h.cb.Execute(func() (any, error) {
			return nil, next(ctx, cmds)
		})
		return wrapBreakerErr(err)
	}
}

// wrapBreakerErr leaves redis.Nil untouched so callers can still detect misses.
func wrapBreakerErr(err error) error {
	switch {
	case err == nil, errors.Is(err, goredis.Nil):
		return err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("redis circuit breaker open: %w", err)
	default:
		return err
	}
}

// State returns the current breaker state.
func (h *CircuitBreakerHook) State() gobreaker.State {
	return h.cb.State()
}

// Counts returns the breaker's counters for the current window.
func (h *CircuitBreakerHook) Counts() gobreaker.Counts {
	return h.cb.Counts()
}
