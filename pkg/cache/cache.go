package cache

import (
	"context"
	"errors"
	"time"

	"safecircle/internal/config"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache stores JSON-encoded values by key. Get returns ErrCacheMiss for
// absent or expired keys.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// New returns a Redis-backed cache when Redis is enabled and an in-process
// cache otherwise.
func New(cfg *config.RedisConfig) (Cache, error) {
	if !cfg.Enabled {
		return NewMemoryCache(cfg.KeyPrefix, cfg.AlertTTL), nil
	}
	return NewRedisCache(cfg)
}
