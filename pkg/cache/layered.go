package cache

import (
	"context"
	"errors"
	"time"
)

// LayeredCache is a two-level cache: L1 in memory, L2 shared in Redis. An L2
// outage degrades to L1 only.
type LayeredCache struct {
	memCache *MemoryCache
	remote   Service
	l1TTL    time.Duration
}

// NewLayeredCache puts mem in front of remote. L1 entries filled from L2 live
// for l1TTL.
func NewLayeredCache(mem *MemoryCache, remote Service, l1TTL time.Duration) *LayeredCache {
	return &LayeredCache{memCache: mem, remote: remote, l1TTL: l1TTL}
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	_ = lc.memCache.Set(ctx, key, value, expiration)
	return lc.remote.Set(ctx, key, value, expiration)
}

func (lc *LayeredCache) Get(ctx context.Context, key string) ([]byte, error) {
	if v, err := lc.memCache.Get(ctx, key); err == nil {
		return v, nil
	}

	v, err := lc.remote.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			return nil, errors.Join(ErrCacheMiss, err)
		}
		return nil, err
	}
	_ = lc.memCache.Set(ctx, key, v, lc.l1TTL)
	return v, nil
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.memCache.Delete(ctx, keys...)
	return lc.remote.Delete(ctx, keys...)
}

// Close closes both cache layers.
func (lc *LayeredCache) Close() error {
	_ = lc.memCache.Close()
	return lc.remote.Close()
}
