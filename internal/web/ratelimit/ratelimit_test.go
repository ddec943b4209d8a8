package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newBucket(capacity int, window time.Duration) (*TokenBucket, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	tb := NewTokenBucketWithConfig(TokenBucketConfig{Capacity: capacity, RefillRate: window})
	tb.now = clock.Now
	return tb, clock
}

func TestTokenBucket_ExhaustsAndRefills(t *testing.T) {
	tb, clock := newBucket(3, 3*time.Second)
	defer tb.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		info, err := tb.Allow(ctx, "k")
		require.NoError(t, err)
		assert.True(t, info.Allowed, "request %d", i)
		assert.Equal(t, 2-i, info.Remaining)
	}

	info, err := tb.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, info.Allowed)
	assert.Equal(t, 0, info.Remaining)
	assert.Equal(t, 1, info.RetryAfter(clock.Now()))

	clock.Advance(time.Second)
	info, err = tb.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, info.Allowed)
}

func TestTokenBucket_KeysAreIndependent(t *testing.T) {
	tb, _ := newBucket(1, time.Minute)
	defer tb.Close()
	ctx := context.Background()

	a, _ := tb.Allow(ctx, "a")
	b, _ := tb.Allow(ctx, "b")
	again, _ := tb.Allow(ctx, "a")

	assert.True(t, a.Allowed)
	assert.True(t, b.Allowed)
	assert.False(t, again.Allowed)
}

func TestTokenBucket_CleanupDropsIdleBuckets(t *testing.T) {
	tb, clock := newBucket(2, time.Second)
	defer tb.Close()

	_, _ = tb.Allow(context.Background(), "idle")
	clock.Advance(2 * time.Second)
	tb.cleanupOldBuckets()

	tb.mu.Lock()
	defer tb.mu.Unlock()
	assert.Empty(t, tb.buckets)
}

func TestTokenBucket_CloseIsIdempotent(t *testing.T) {
	tb := NewTokenBucketWithConfig(TokenBucketConfig{Capacity: 1, RefillRate: time.Second, CleanupInterval: time.Millisecond})
	require.NoError(t, tb.Close())
	require.NoError(t, tb.Close())
}

func setupTestRedis(t *testing.T) *redis.Client {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestNewRedisRateLimiter_InvalidConfig(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	tests := []struct {
		name    string
		config  RedisRateLimiterConfig
		wantErr string
	}{
		{"nil client", RedisRateLimiterConfig{Limit: 1, Window: time.Second}, "redis client is required"},
		{"zero limit", RedisRateLimiterConfig{Client: client, Window: time.Second}, "limit must be greater than 0"},
		{"zero window", RedisRateLimiterConfig{Client: client, Limit: 1}, "window must be greater than 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRedisRateLimiter(tt.config)
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestRedisRateLimiter_Allow(t *testing.T) {
	client := setupTestRedis(t)
	limiter, err := NewRedisRateLimiter(RedisRateLimiterConfig{Client: client, Limit: 2, Window: time.Minute, Prefix: "rl:"})
	require.NoError(t, err)
	ctx := context.Background()

	first, err := limiter.Allow(ctx, "203.0.113.9")
	require.NoError(t, err)
	assert.True(t, first.Allowed)
	assert.Equal(t, 1, first.Remaining)

	second, err := limiter.Allow(ctx, "203.0.113.9")
	require.NoError(t, err)
	assert.True(t, second.Allowed)
	assert.Equal(t, 0, second.Remaining)

	third, err := limiter.Allow(ctx, "203.0.113.9")
	require.NoError(t, err)
	assert.False(t, third.Allowed)
	assert.WithinDuration(t, time.Now().Add(time.Minute), third.ResetAt, 5*time.Second)

	other, err := limiter.Allow(ctx, "198.51.100.1")
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	require.NoError(t, limiter.Reset(ctx, "203.0.113.9"))
	afterReset, err := limiter.Allow(ctx, "203.0.113.9")
	require.NoError(t, err)
	assert.True(t, afterReset.Allowed)
}

func TestNew_SelectsBackend(t *testing.T) {
	mem, err := New(Config{Requests: 10, Window: time.Minute}, nil)
	require.NoError(t, err)
	tb, ok := mem.(*TokenBucket)
	require.True(t, ok)
	tb.Close()

	client := setupTestRedis(t)
	shared, err := New(Config{Requests: 10, Window: time.Minute}, client)
	require.NoError(t, err)
	assert.IsType(t, &RedisRateLimiter{}, shared)
}
