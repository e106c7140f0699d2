package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	grantCacheVersionKey  = "rbac:grants:version"
	grantCachePrefix      = "rbac:grants"
	grantCacheLoadTimeout = 5 * time.Second
)

// GrantCache is a Redis-backed GrantReader that memoises each user's grant set.
// Entries are keyed by a global version; Invalidate bumps the version so every cached set
// is abandoned at once. Concurrent misses for one user share a single load.
type GrantCache struct {
	client *redis.Client
	source GrantLister
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewGrantCache wraps source with a Redis cache.
func NewGrantCache(client *redis.Client, source GrantLister, ttl time.Duration, logger *slog.Logger) *GrantCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &GrantCache{client: client, source: source, ttl: ttl, logger: logger}
}

var _ GrantReader = (*GrantCache)(nil)

// HasGrant answers from the cached grant set, loading it from the source on a miss.
// A Redis failure falls back to the source; a source failure is returned as is.
func (c *GrantCache) HasGrant(ctx context.Context, userID int64, resource, action string) (bool, error) {
	keys, err := c.grants(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, k := range keys {
		if k.Resource == resource && k.Action == action {
			return true, nil
		}
	}
	return false, nil
}

// Invalidate abandons every cached grant set.
func (c *GrantCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, grantCacheVersionKey).Err()
}

func (c *GrantCache) grants(ctx context.Context, userID int64) ([]GrantKey, error) {
	key, err := c.key(ctx, userID)
	if err != nil {
		c.logger.Warn("rbac cache version", slog.Any("error", err))
		return c.source.UserGrants(ctx, userID)
	}
	if payload, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var keys []GrantKey
		if err := json.Unmarshal(payload, &keys); err == nil {
			return keys, nil
		}
		c.logger.Warn("rbac cache decode", slog.String("key", key))
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("rbac cache get", slog.String("key", key), slog.Any("error", err))
	}

	// The load is shared by every waiter on key, so it must not inherit one caller's cancellation.
	ch := c.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grantCacheLoadTimeout)
		defer cancel()
		keys, err := c.source.UserGrants(loadCtx, userID)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(keys); err == nil {
			if err := c.client.Set(loadCtx, key, raw, c.ttl).Err(); err != nil {
				c.logger.Warn("rbac cache set", slog.String("key", key), slog.Any("error", err))
			}
		}
		return keys, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		keys, _ := res.Val.([]GrantKey)
		return keys, nil
	}
}

func (c *GrantCache) key(ctx context.Context, userID int64) (string, error) {
	ver, err := c.client.Get(ctx, grantCacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		ver = 0
	} else if err != nil {
		return "", err
	}
	return grantCachePrefix + ":" + strconv.FormatInt(ver, 10) + ":" + strconv.FormatInt(userID, 10), nil
}
