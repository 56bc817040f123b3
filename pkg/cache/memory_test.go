package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safecircle/internal/config"
)

type cachedAlert struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache("test:", time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "alert:1", cachedAlert{ID: "1", Status: "active"}, 0))

	var got cachedAlert
	require.NoError(t, c.Get(ctx, "alert:1", &got))
	assert.Equal(t, cachedAlert{ID: "1", Status: "active"}, got)

	require.NoError(t, c.Delete(ctx, "alert:1"))
	assert.ErrorIs(t, c.Get(ctx, "alert:1", &got), ErrCacheMiss)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache("", time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", true, 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	var v bool
	assert.ErrorIs(t, c.Get(ctx, "k", &v), ErrCacheMiss)
}

func TestNewFallsBackToMemory(t *testing.T) {
	c, err := New(&config.RedisConfig{Enabled: false, KeyPrefix: "x:"})
	require.NoError(t, err)
	_, ok := c.(*MemoryCache)
	assert.True(t, ok)
}
