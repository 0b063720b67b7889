package roles

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-vault/custodia/internal/shared"
)

// CachedRegistry decorates a Registry with a Redis membership cache.
// Entries expire on TTL and are dropped eagerly on Grant so a restart of
// the backing store never serves stale denials for longer than the TTL.
type CachedRegistry struct {
	inner  Registry
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedRegistry wraps the registry. A nil client disables caching.
func NewCachedRegistry(inner Registry, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedRegistry {
	return &CachedRegistry{inner: inner, client: client, ttl: ttl, logger: logger}
}

func membershipKey(role Role, principal shared.Principal) string {
	return fmt.Sprintf("roles:%s:%s", role, principal)
}

// Grant delegates to the inner registry and invalidates the cached entry.
func (c *CachedRegistry) Grant(ctx context.Context, role Role, principal shared.Principal) error {
	if err := c.inner.Grant(ctx, role, principal); err != nil {
		return err
	}
	if c.client != nil {
		if err := c.client.Del(ctx, membershipKey(role, principal)).Err(); err != nil && c.logger != nil {
			c.logger.Warn("role cache invalidate", slog.Any("error", err))
		}
	}
	return nil
}

// HasRole consults the cache before the inner registry. Cache failures fall
// through to the registry rather than failing the query.
func (c *CachedRegistry) HasRole(ctx context.Context, role Role, principal shared.Principal) (bool, error) {
	key := membershipKey(role, principal)
	if c.client != nil {
		cached, err := c.client.Get(ctx, key).Result()
		if err == nil {
			return cached == "1", nil
		}
		if err != redis.Nil && c.logger != nil {
			c.logger.Warn("role cache read", slog.Any("error", err))
		}
	}
	held, err := c.inner.HasRole(ctx, role, principal)
	if err != nil {
		return false, err
	}
	if c.client != nil {
		value := "0"
		if held {
			value = "1"
		}
		if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil && c.logger != nil {
			c.logger.Warn("role cache write", slog.Any("error", err))
		}
	}
	return held, nil
}

// Members delegates to the inner registry. Member lists are read rarely
// and are not cached.
func (c *CachedRegistry) Members(ctx context.Context, role Role) ([]Grant, error) {
	return c.inner.Members(ctx, role)
}
