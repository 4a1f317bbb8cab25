package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMemoryCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)

	_, ok := c.Get(ctx, "iata:tokyo")
	assert.False(t, ok)

	c.Set(ctx, "iata:tokyo", "TYO", time.Minute)
	v, ok := c.Get(ctx, "iata:tokyo")
	assert.True(t, ok)
	assert.Equal(t, "TYO", v)

	c.Set(ctx, "short", "x", time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	_, ok = c.Get(ctx, "short")
	assert.False(t, ok)
}

func TestRedisCacheTreatsBackendErrorsAsMiss(t *testing.T) {
	t.Parallel()
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	c := newRedisCache(rdb, discardLogger())
	c.Set(context.Background(), "k", "v", time.Minute)
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
}
