package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/creastat/quizstore/session"
)

// RedisCache implements Cache on Redis using native key expiry.
type RedisCache struct {
	provider *session.Provider[*redis.Client]
	prefix   string
}

// NewRedis creates a Redis cache. Keys are stored as prefix+key.
func NewRedis(provider *session.Provider[*redis.Client], prefix string) *RedisCache {
	return &RedisCache{provider: provider, prefix: prefix}
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	val, err := session.Retry(ctx, c.provider, func(ctx context.Context, client *redis.Client) ([]byte, error) {
		val, err := client.Get(ctx, c.prefix+key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return val, err
	})
	if err != nil {
		return false, fmt.Errorf("failed to read cache: %w", err)
	}
	if val == nil {
		return false, nil
	}

	if err := json.Unmarshal(val, dst); err != nil {
		return false, fmt.Errorf("failed to decode cached value: %w", err)
	}
	return true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	val, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}

	err = session.Do(ctx, c.provider, func(ctx context.Context, client *redis.Client) error {
		return client.Set(ctx, c.prefix+key, val, ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

// Health pings Redis.
func (c *RedisCache) Health(ctx context.Context) error {
	return session.Do(ctx, c.provider, func(ctx context.Context, client *redis.Client) error {
		return client.Ping(ctx).Err()
	})
}

// Compile-time check that RedisCache implements Cache
var _ Cache = (*RedisCache)(nil)
