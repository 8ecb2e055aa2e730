// Package cache stores computed sentiment scores in Redis, keyed by model
// version and normalized text.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/crimson-sun/tonal/internal/metrics"
)

const keyPrefix = "tonal:score:"

// Key is the Redis key of one cached score.
func Key(version, normalized string) string {
	sum := sha1.Sum([]byte(normalized))
	return keyPrefix + version + ":" + hex.EncodeToString(sum[:])
}

// Scores is a Redis-backed score cache.
type Scores struct {
	rdb  *goredis.Client
	ttl  time.Duration
	hook *CircuitBreakerHook
}

// New connects to redisURL (e.g. "redis://localhost:6379/0").
func New(redisURL string, ttl time.Duration) (*Scores, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return NewWithClient(goredis.NewClient(opts), ttl), nil
}

// NewWithClient wraps an existing client and installs the circuit breaker hook.
func NewWithClient(rdb *goredis.Client, ttl time.Duration) *Scores {
	hook := NewCircuitBreakerHook()
	rdb.AddHook(hook)
	return &Scores{rdb: rdb, ttl: ttl, hook: hook}
}

// Ping verifies the Redis connection.
func (s *Scores) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *Scores) Close() error {
	return s.rdb.Close()
}

// Breaker exposes the circuit breaker hook for monitoring.
func (s *Scores) Breaker() *CircuitBreakerHook { return s.hook }

// GetScores looks up every normalized text. found[i] reports whether scores[i]
// came from the cache.
func (s *Scores) GetScores(ctx context.Context, version string, normalized []string) ([]float64, []bool, error) {
	scores := make([]float64, len(normalized))
	found := make([]bool, len(normalized))
	if len(normalized) == 0 {
		return scores, found, nil
	}
	keys := make([]string, len(normalized))
	for i, text := range normalized {
		keys[i] = Key(version, text)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		metrics.CacheOpsTotal.WithLabelValues("error").Inc()
		return scores, found, fmt.Errorf("cache get: %w", err)
	}
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			metrics.CacheOpsTotal.WithLabelValues("miss").Inc()
			continue
		}
		f, err := strconv.ParseFloat(str, 64)
		if err != nil {
			metrics.CacheOpsTotal.WithLabelValues("miss").Inc()
			continue
		}
		scores[i], found[i] = f, true
		metrics.CacheOpsTotal.WithLabelValues("hit").Inc()
	}
	return scores, found, nil
}

// SetScores stores scores for the given normalized texts with the configured TTL.
func (s *Scores) SetScores(ctx context.Context, version string, normalized []string, scores []float64) error {
	if len(normalized) != len(scores) {
		return fmt.Errorf("cache set: %d texts but %d scores", len(normalized), len(scores))
	}
	if len(normalized) == 0 {
		return nil
	}
	_, err := s.rdb.Pipelined(ctx, func(p goredis.Pipeliner) error {
		for i, text := range normalized {
			p.Set(ctx, Key(version, text), strconv.FormatFloat(scores[i], 'g', -1, 64), s.ttl)
		}
		return nil
	})
	if err != nil {
		metrics.CacheOpsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}
