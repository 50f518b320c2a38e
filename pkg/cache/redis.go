// ==============================================================================
// REDIS COUNTER STORE - pkg/cache/redis.go
// ==============================================================================
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounter keeps fixed-window counters in Redis so that several server
// processes share one limit.
type RedisCounter struct {
	client *redis.Client
}

func NewRedisCounter(url, password string, db int) (*RedisCounter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     url,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &RedisCounter{client: client}, nil
}

// NewRedisCounterFromClient wraps an existing client.
func NewRedisCounterFromClient(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := c.client.Expire(ctx, key, window).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

func (c *RedisCounter) Reset(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *RedisCounter) Close() error {
	return c.client.Close()
}
