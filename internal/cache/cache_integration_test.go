//go:build integration

package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

var testRedisURL string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start redis container: %v\n", err)
		os.Exit(1)
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get redis endpoint: %v\n", err)
		os.Exit(1)
	}
	testRedisURL = "redis://" + endpoint

	code := m.Run()

	_ = container.Terminate(ctx)
	os.Exit(code)
}

func setupScores(t *testing.T, ttl time.Duration) *Scores {
	t.Helper()
	s, err := New(testRedisURL, ttl)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.rdb.FlushAll(context.Background()).Err())
	return s
}

func TestScores_RoundTrip(t *testing.T) {
	s := setupScores(t, time.Hour)
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))

	require.NoError(t, s.SetScores(ctx, "v1", []string{"i love this", "awful"}, []float64{0.82, -0.5}))

	scores, found, err := s.GetScores(ctx, "v1", []string{"awful", "unseen", "i love this"})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true}, found)
	assert.Equal(t, -0.5, scores[0])
	assert.Zero(t, scores[1])
	assert.Equal(t, 0.82, scores[2])

	_, found, err = s.GetScores(ctx, "v2", []string{"awful"})
	require.NoError(t, err)
	assert.Equal(t, []bool{false}, found)
}

func TestScores_TTL(t *testing.T) {
	s := setupScores(t, time.Minute)
	ctx := context.Background()
	require.NoError(t, s.SetScores(ctx, "v1", []string{"x"}, []float64{0.1}))

	ttl, err := s.rdb.TTL(ctx, Key("v1", "x")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}
