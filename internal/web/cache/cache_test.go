package cache

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func backends(t *testing.T) map[string]Cache {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return map[string]Cache{
		"memory": NewMemoryCache(DefaultCacheConfig()),
		"redis":  NewRedisCache(client, DefaultCacheConfig()),
	}
}

func TestCache_SetGetDelete(t *testing.T) {
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := c.Get(ctx, "missing")
			assert.True(t, IsMiss(err))

			require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
			got, err := c.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("v"), got)

			require.NoError(t, c.Delete(ctx, "k"))
			_, err = c.Get(ctx, "k")
			assert.True(t, IsMiss(err))
		})
	}
}

func TestCache_DeletePrefix(t *testing.T) {
	for name, c := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, c.Set(ctx, "benchmark:a:all", []byte("1"), time.Minute))
			require.NoError(t, c.Set(ctx, "benchmark:b:small", []byte("2"), time.Minute))
			require.NoError(t, c.Set(ctx, "solutions:category_counts", []byte("3"), time.Minute))

			require.NoError(t, c.DeletePrefix(ctx, BenchmarkPrefix))

			_, err := c.Get(ctx, "benchmark:a:all")
			assert.True(t, IsMiss(err))
			_, err = c.Get(ctx, "benchmark:b:small")
			assert.True(t, IsMiss(err))
			_, err = c.Get(ctx, "solutions:category_counts")
			assert.NoError(t, err)
		})
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache(CacheConfig{DefaultTTL: time.Minute})
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Hour))
	require.NoError(t, c.Set(ctx, "forever", []byte("3"), -1))

	now = now.Add(2 * time.Minute)
	_, err := c.Get(ctx, "a")
	assert.True(t, IsMiss(err))

	now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, c.Sweep())

	_, err = c.Get(ctx, "forever")
	assert.NoError(t, err)
}

func TestMemoryCache_CancelledContext(t *testing.T) {
	c := NewMemoryCache(DefaultCacheConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRedisCache_UsesTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	c := NewRedisCache(client, CacheConfig{DefaultTTL: time.Minute, Prefix: "p:"})

	require.NoError(t, c.Set(context.Background(), "k", []byte("v"), 0))
	assert.Equal(t, time.Minute, mr.TTL("p:k"))

	mr.FastForward(2 * time.Minute)
	_, err := c.Get(context.Background(), "k")
	assert.True(t, IsMiss(err))
}

func TestRemember(t *testing.T) {
	c := NewMemoryCache(DefaultCacheConfig())
	ctx := context.Background()
	calls := 0
	load := func(context.Context) (map[string]int, error) {
		calls++
		return map[string]int{"energy": 3}, nil
	}

	first, err := Remember(ctx, c, zap.NewNop(), CategoryCountsKey(), time.Minute, load)
	require.NoError(t, err)
	second, err := Remember(ctx, c, zap.NewNop(), CategoryCountsKey(), time.Minute, load)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}

func TestRemember_LoadError(t *testing.T) {
	c := NewMemoryCache(DefaultCacheConfig())
	boom := errors.New("boom")

	_, err := Remember(context.Background(), c, zap.NewNop(), "k", time.Minute, func(context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = c.Get(context.Background(), "k")
	assert.True(t, IsMiss(err))
}

func TestBenchmarkKey(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	assert.Equal(t, "benchmark:6ba7b810-9dad-11d1-80b4-00c04fd430c8:all", BenchmarkKey(id, ""))
	assert.Equal(t, "benchmark:6ba7b810-9dad-11d1-80b4-00c04fd430c8:small", BenchmarkKey(id, "small"))
}

func TestNotModified(t *testing.T) {
	etag := GenerateETag([]byte("payload"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	assert.False(t, NotModified(rec, req, etag))
	assert.Equal(t, etag, rec.Header().Get("ETag"))

	req.Header.Set("If-None-Match", `"other", W/`+etag)
	rec = httptest.NewRecorder()
	assert.True(t, NotModified(rec, req, etag))
	assert.Equal(t, http.StatusNotModified, rec.Code)
}
