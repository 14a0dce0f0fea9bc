package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const badgeCacheKey = "queue:badges"

// BadgeCache caches the pending-count-by-product read model that drives the
// sidebar badges. Counts are invalidated on every queue mutation; concurrent
// cold reads collapse onto one loader call via singleflight. A nil cache is
// valid and falls through to the loader.
type BadgeCache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewBadgeCache instantiates the cache helper.
func NewBadgeCache(client *redis.Client, ttl time.Duration) *BadgeCache {
	return &BadgeCache{client: client, ttl: ttl}
}

// Fetch returns cached counts or populates them using the loader.
func (c *BadgeCache) Fetch(ctx context.Context, loader func(context.Context) (map[ProductType]int, error)) (map[ProductType]int, error) {
	if loader == nil {
		return nil, errors.New("workflow: badge loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}

	payload, err := c.client.Get(ctx, badgeCacheKey).Bytes()
	if err == nil {
		var counts map[ProductType]int
		if err := json.Unmarshal(payload, &counts); err == nil {
			return counts, nil
		}
		// Unreadable cache entry; fall through and rebuild.
	} else if !errors.Is(err, redis.Nil) {
		return nil, err
	}

	value, err, _ := c.group.Do(badgeCacheKey, func() (any, error) {
		counts, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(counts)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(ctx, badgeCacheKey, raw, c.ttl).Err(); err != nil {
			return nil, err
		}
		return counts, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(map[ProductType]int), nil
}

// Invalidate drops the cached counts after a queue mutation.
func (c *BadgeCache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	err := c.client.Del(ctx, badgeCacheKey).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
