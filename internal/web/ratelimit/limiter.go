// Package ratelimit throttles API callers by key, in memory or in redis.
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter decides whether the next request for a key may proceed
type RateLimiter interface {
	Allow(ctx context.Context, key string) (*RateLimitInfo, error)
}

// RateLimitInfo contains information about the current rate limit state
type RateLimitInfo struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
	Allowed   bool
}

// RetryAfter returns the whole seconds a rejected caller should wait
func (i *RateLimitInfo) RetryAfter(now time.Time) int {
	secs := int(i.ResetAt.Sub(now).Seconds() + 0.999)
	if secs < 1 {
		return 1
	}
	return secs
}

// Config selects the backend and the per-key allowance
type Config struct {
	Requests int
	Window   time.Duration
}

// New returns a redis-backed limiter when client is non-nil and an in-memory
// token bucket otherwise
func New(cfg Config, client redis.UniversalClient) (RateLimiter, error) {
	if client != nil {
		return NewRedisRateLimiter(RedisRateLimiterConfig{
			Client: client,
			Limit:  cfg.Requests,
			Window: cfg.Window,
			Prefix: "citymind:ratelimit:",
		})
	}
	return NewTokenBucketWithConfig(TokenBucketConfig{
		Capacity:        cfg.Requests,
		RefillRate:      cfg.Window,
		CleanupInterval: 5 * time.Minute,
	}), nil
}
