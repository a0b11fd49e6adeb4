// Package unread caches per-user unread message counters in Redis.
package unread

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "unread:"

// Cache stores unread counters with a TTL. Writers invalidate instead of
// incrementing so a missing key never becomes a stale base for arithmetic.
type Cache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a cache over an existing Redis client.
func NewCache(redisClient *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{redis: redisClient, ttl: ttl}
}

// NewCacheFromURL connects to Redis using a URL such as
// "redis://localhost:6379/0" and verifies the connection.
func NewCacheFromURL(ctx context.Context, url string, ttl time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewCache(client, ttl), nil
}

// Get returns the cached counter for a user. The second return value is
// false on a cache miss.
func (c *Cache) Get(ctx context.Context, userID string) (int, bool, error) {
	data, err := c.redis.Get(ctx, keyPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get unread counter: %w", err)
	}

	count, err := strconv.Atoi(data)
	if err != nil {
		return 0, false, fmt.Errorf("parse unread counter: %w", err)
	}
	return count, true, nil
}

// Set stores the counter for a user.
func (c *Cache) Set(ctx context.Context, userID string, count int) error {
	if err := c.redis.Set(ctx, keyPrefix+userID, strconv.Itoa(count), c.ttl).Err(); err != nil {
		return fmt.Errorf("set unread counter: %w", err)
	}
	return nil
}

// Invalidate drops the counter for a user. The next read repopulates it
// from the database.
func (c *Cache) Invalidate(ctx context.Context, userID string) error {
	if err := c.redis.Del(ctx, keyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("invalidate unread counter: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (c *Cache) Close() error {
	return c.redis.Close()
}
