package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T) (Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return Limiter{Client: client, Prefix: "ratelimit:"}, mr
}

func TestLimiterExhaustsBudget(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()
	window := 2 * time.Second

	for i := 0; i < 3; i++ {
		allowed, remaining, _, err := limiter.Allow(ctx, "login:10.0.0.1", window, 3)
		require.NoError(t, err)
		require.True(t, allowed, "attempt %d should pass", i)
		require.Equal(t, 3-(i+1), remaining)
	}

	allowed, remaining, _, err := limiter.Allow(ctx, "login:10.0.0.1", window, 3)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)
}

func TestLimiterWindowSlides(t *testing.T) {
	limiter, mr := newTestLimiter(t)
	ctx := context.Background()
	window := 2 * time.Second

	for i := 0; i < 2; i++ {
		_, _, _, err := limiter.Allow(ctx, "login:10.0.0.2", window, 1)
		require.NoError(t, err)
	}
	mr.FastForward(window)

	allowed, _, _, err := limiter.Allow(ctx, "login:10.0.0.2", window, 1)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	allowed, _, _, err := limiter.Allow(ctx, "login:10.0.0.3", time.Second, 1)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, _, err = limiter.Allow(ctx, "login:10.0.0.4", time.Second, 1)
	require.NoError(t, err)
	require.True(t, allowed)
}
