package vault

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const balanceCacheKey = "vault:balance"

// Cache keeps the last known balance in Redis between mutations.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// GetBalance returns the cached balance when present.
func (c *Cache) GetBalance(ctx context.Context) (int64, bool) {
	if c == nil || c.client == nil {
		return 0, false
	}
	raw, err := c.client.Get(ctx, balanceCacheKey).Result()
	if err != nil {
		if err != redis.Nil && c.logger != nil {
			c.logger.Warn("balance cache read", slog.Any("error", err))
		}
		return 0, false
	}
	balance, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return balance, true
}

// SetBalance stores the balance with the configured TTL.
func (c *Cache) SetBalance(ctx context.Context, balance int64) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Set(ctx, balanceCacheKey, strconv.FormatInt(balance, 10), c.ttl).Err(); err != nil && c.logger != nil {
		c.logger.Warn("balance cache write", slog.Any("error", err))
	}
}

// Invalidate drops the cached balance after a mutation.
func (c *Cache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, balanceCacheKey).Err(); err != nil && c.logger != nil {
		c.logger.Warn("balance cache invalidate", slog.Any("error", err))
	}
}
