// Package cache stores computed read models, such as marketplace category
// counts and benchmark results, in redis or process memory.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrMiss is returned when a key is absent or expired
var ErrMiss = errors.New("cache miss")

// Cache defines the interface for all cache backends
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value; a zero ttl uses the backend default
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every key starting with prefix
	DeletePrefix(ctx context.Context, prefix string) error
}

// CacheConfig holds common configuration for cache backends
type CacheConfig struct {
	DefaultTTL time.Duration
	Prefix     string
}

// DefaultCacheConfig returns a default cache configuration
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		DefaultTTL: 5 * time.Minute,
		Prefix:     "citymind:",
	}
}

// IsMiss reports whether err is a cache miss
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss)
}

// Remember returns the cached value for key, or calls load, caches its
// result for ttl and returns it. Cache failures are logged and fall through
// to load so a broken cache never fails a read.
func Remember[T any](ctx context.Context, c Cache, logger *zap.Logger, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var out T

	raw, err := c.Get(ctx, key)
	switch {
	case err == nil:
		if uerr := json.Unmarshal(raw, &out); uerr == nil {
			return out, nil
		}
		logger.Warn("discarding undecodable cache entry", zap.String("key", key))
	case !IsMiss(err):
		logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}

	out, err = load(ctx)
	if err != nil {
		return out, err
	}

	data, err := json.Marshal(out)
	if err != nil {
		return out, fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	if err := c.Set(ctx, key, data, ttl); err != nil {
		logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return out, nil
}
