package violations

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/mtvts/mtvts/internal/platform/cache"
)

// CacheNamespace prefixes every catalog cache key.
const CacheNamespace = "violations"

type catalogCache struct {
	store *cache.Versioned
	group singleflight.Group
}

func newCatalogCache(store *cache.Versioned) *catalogCache {
	if store == nil {
		return nil
	}
	return &catalogCache{store: store}
}

// fetch serves key from Redis, collapsing concurrent misses into one load.
func fetch[T any](ctx context.Context, c *catalogCache, suffix string, load func(context.Context) (T, error)) (T, error) {
	if c == nil {
		return load(ctx)
	}
	var zero T
	key, err := c.store.Key(ctx, suffix)
	if err != nil {
		return load(ctx)
	}
	var cached T
	if hit, err := c.store.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}
	ch := c.group.DoChan(key, func() (any, error) {
		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		_ = c.store.Set(ctx, key, value)
		return value, nil
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

func (c *catalogCache) invalidate(ctx context.Context) error {
	if c == nil {
		return nil
	}
	_, err := c.store.Bump(ctx)
	return err
}
