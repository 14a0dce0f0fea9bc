package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestBadgeCache(t *testing.T) (*BadgeCache, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewBadgeCache(client, time.Minute), srv
}

func TestBadgeCacheLoadsOnceThenServesFromRedis(t *testing.T) {
	cache, _ := newTestBadgeCache(t)

	calls := 0
	loader := func(ctx context.Context) (map[ProductType]int, error) {
		calls++
		return map[ProductType]int{ProductFormM: 2, ProductFXSales: 1}, nil
	}

	counts, err := cache.Fetch(context.Background(), loader)
	require.NoError(t, err)
	require.Equal(t, 2, counts[ProductFormM])
	require.Equal(t, 1, calls)

	counts, err = cache.Fetch(context.Background(), loader)
	require.NoError(t, err)
	require.Equal(t, 1, counts[ProductFXSales])
	require.Equal(t, 1, calls, "second fetch must hit the cache")
}

func TestBadgeCacheInvalidateForcesReload(t *testing.T) {
	cache, _ := newTestBadgeCache(t)

	calls := 0
	loader := func(ctx context.Context) (map[ProductType]int, error) {
		calls++
		return map[ProductType]int{ProductFormM: calls}, nil
	}

	_, err := cache.Fetch(context.Background(), loader)
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(context.Background()))

	counts, err := cache.Fetch(context.Background(), loader)
	require.NoError(t, err)
	require.Equal(t, 2, counts[ProductFormM])
	require.Equal(t, 2, calls)
}

func TestBadgeCacheSurvivesCorruptEntry(t *testing.T) {
	cache, srv := newTestBadgeCache(t)
	require.NoError(t, srv.Set(badgeCacheKey, "{not json"))

	counts, err := cache.Fetch(context.Background(), func(ctx context.Context) (map[ProductType]int, error) {
		return map[ProductType]int{ProductPAAR: 4}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 4, counts[ProductPAAR])
}

func TestNilBadgeCacheFallsThrough(t *testing.T) {
	var cache *BadgeCache

	counts, err := cache.Fetch(context.Background(), func(ctx context.Context) (map[ProductType]int, error) {
		return map[ProductType]int{ProductImportLC: 7}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 7, counts[ProductImportLC])

	require.NoError(t, cache.Invalidate(context.Background()))
}

func TestBadgeCachePropagatesLoaderError(t *testing.T) {
	cache, _ := newTestBadgeCache(t)
	boom := errors.New("db down")

	_, err := cache.Fetch(context.Background(), func(ctx context.Context) (map[ProductType]int, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
}
