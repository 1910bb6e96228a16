package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"renthub/internal/config"
	"renthub/internal/domain"
	"renthub/internal/dto"

	"github.com/redis/go-redis/v9"
)

// listKey builds the cache key for one classifier result, e.g.
// "bookings:booker:42:WAITING".
func listKey(role domain.Role, userID int64, state string) string {
	return fmt.Sprintf("bookings:%s:%d:%s", role, userID, state)
}

// RedisListCache stores rendered booking lists in Redis with a short TTL.
type RedisListCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient builds a Redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisListCache(client *redis.Client, ttl time.Duration) *RedisListCache {
	return &RedisListCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *RedisListCache) GetList(ctx context.Context, role domain.Role, userID int64, state string) ([]dto.BookingView, bool, error) {
	if c.client == nil {
		return nil, false, fmt.Errorf("redis client is nil")
	}
	val, err := c.client.Get(ctx, listKey(role, userID, state)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get list from redis: %w", err)
	}

	var views []dto.BookingView
	if err := json.Unmarshal([]byte(val), &views); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached list: %w", err)
	}
	return views, true, nil
}

func (c *RedisListCache) SetList(ctx context.Context, role domain.Role, userID int64, state string, views []dto.BookingView) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(views)
	if err != nil {
		return fmt.Errorf("failed to marshal list: %w", err)
	}
	if err := c.client.Set(ctx, listKey(role, userID, state), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set list in redis: %w", err)
	}
	return nil
}

// Invalidate drops every cached list of the booker and of the owner.
// A mutation can surface in any state bucket of either side, so the
// whole per-user prefix goes.
func (c *RedisListCache) Invalidate(ctx context.Context, bookerID, ownerID int64) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	patterns := []string{
		fmt.Sprintf("bookings:%s:%d:*", domain.RoleBooker, bookerID),
		fmt.Sprintf("bookings:%s:%d:*", domain.RoleOwner, ownerID),
	}
	for _, pattern := range patterns {
		iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
		for iter.Next(ctx) {
			if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
				return fmt.Errorf("failed to delete cached list: %w", err)
			}
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("failed to scan cache keys: %w", err)
		}
	}
	return nil
}

// Ping verifies the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
