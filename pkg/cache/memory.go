package cache

import (
	"context"
	"encoding/json"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is the single-process fallback used when Redis is disabled.
type MemoryCache struct {
	cache  *gocache.Cache
	prefix string
}

func NewMemoryCache(prefix string, defaultExpiration time.Duration) *MemoryCache {
	if defaultExpiration <= 0 {
		defaultExpiration = 5 * time.Minute
	}
	return &MemoryCache{
		cache:  gocache.New(defaultExpiration, 2*defaultExpiration),
		prefix: prefix,
	}
}

func (m *MemoryCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if expiration <= 0 {
		expiration = gocache.DefaultExpiration
	}
	m.cache.Set(m.prefix+key, data, expiration)
	return nil
}

func (m *MemoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.cache.Get(m.prefix + key)
	if !ok {
		return ErrCacheMiss
	}
	return json.Unmarshal(raw.([]byte), dest)
}

func (m *MemoryCache) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		m.cache.Delete(m.prefix + k)
	}
	return nil
}

func (m *MemoryCache) Close() error {
	m.cache.Flush()
	return nil
}
