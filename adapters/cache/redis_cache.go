package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/warden-auth/warden/ports"
)

// RedisCache is a Redis implementation of the ChallengeCache interface
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache creates a new Redis challenge cache
func NewRedisCache(client *redis.Client) ports.ChallengeCache {
	return &RedisCache{
		client: client,
		prefix: "warden:challenge:",
	}
}

// Put stores value under key with the given TTL
func (c *RedisCache) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store challenge: %w", err)
	}
	return nil
}

// TakeIfPresent fetches the value under key and renews its TTL in a
// single GETEX round trip
func (c *RedisCache) TakeIfPresent(ctx context.Context, key string, ttl time.Duration) ([]byte, error) {
	val, err := c.client.GetEx(ctx, c.prefix+key, ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch challenge: %w", err)
	}
	return val, nil
}

// Evict removes key
func (c *RedisCache) Evict(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to evict challenge: %w", err)
	}
	return nil
}
