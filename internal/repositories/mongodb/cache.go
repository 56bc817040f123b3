package mongodb

import (
	"context"
	"time"

	"safecircle/pkg/cache"
)

// CacheObserver records cache effectiveness. Nil disables reporting.
type CacheObserver interface {
	CacheHit(cache string)
	CacheMiss(cache string)
}

// readThrough wraps an optional cache with hit/miss reporting. Cache errors
// never fail a repository call.
type readThrough struct {
	cache    cache.Cache
	observer CacheObserver
	name     string
	ttl      time.Duration
}

func (r *readThrough) get(ctx context.Context, key string, dest interface{}) bool {
	if r == nil || r.cache == nil {
		return false
	}
	if err := r.cache.Get(ctx, key, dest); err != nil {
		if r.observer != nil {
			r.observer.CacheMiss(r.name)
		}
		return false
	}
	if r.observer != nil {
		r.observer.CacheHit(r.name)
	}
	return true
}

func (r *readThrough) set(ctx context.Context, key string, value interface{}) {
	r.setFor(ctx, key, value, r.ttl)
}

func (r *readThrough) setFor(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if r == nil || r.cache == nil {
		return
	}
	_ = r.cache.Set(ctx, key, value, ttl)
}

func (r *readThrough) invalidate(ctx context.Context, keys ...string) {
	if r == nil || r.cache == nil {
		return
	}
	_ = r.cache.Delete(ctx, keys...)
}
