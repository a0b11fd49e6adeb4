package unread

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func TestCache_GetSet(t *testing.T) {
	mr, client := setupTestRedis(t)
	defer client.Close()

	cache := NewCache(client, time.Minute)
	ctx := context.Background()

	t.Run("miss on empty cache", func(t *testing.T) {
		count, ok, err := cache.Get(ctx, "user-1")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 0, count)
	})

	t.Run("hit after set", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "user-1", 7))

		count, ok, err := cache.Get(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 7, count)
	})

	t.Run("counter expires", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "user-2", 3))

		mr.FastForward(2 * time.Minute)

		_, ok, err := cache.Get(ctx, "user-2")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestCache_Invalidate(t *testing.T) {
	_, client := setupTestRedis(t)
	defer client.Close()

	cache := NewCache(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "user-1", 12))
	require.NoError(t, cache.Invalidate(ctx, "user-1"))

	_, ok, err := cache.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, ok)

	// Invalidating a missing key is not an error
	require.NoError(t, cache.Invalidate(ctx, "user-unknown"))
}

func TestCache_CorruptValue(t *testing.T) {
	mr, client := setupTestRedis(t)
	defer client.Close()

	cache := NewCache(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, mr.Set("unread:user-1", "not-a-number"))

	_, _, err := cache.Get(ctx, "user-1")
	assert.Error(t, err)
}
