package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adpulse/adpulse/internal/model"
)

const (
	// authCachePrefix is the Redis key prefix for auth context cache.
	authCachePrefix = "auth:ctx:"
	// authKeyIndexPrefix maps a key id to its auth cache key so a revoke
	// can evict the entry without the plaintext.
	authKeyIndexPrefix = "auth:key:"
	// authCacheTTL is the time-to-live for cached auth contexts.
	authCacheTTL = 5 * time.Minute
)

// GetAuthContext retrieves a cached auth context by cache key.
// Returns ErrCacheMiss when absent or unreadable.
func (c *Cache) GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error) {
	data, err := c.client.Get(ctx, authCachePrefix+cacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var auth model.AuthContext
	if err := json.Unmarshal(data, &auth); err != nil {
		return nil, ErrCacheMiss
	}
	return &auth, nil
}

// SetAuthContext caches an auth context.
func (c *Cache) SetAuthContext(ctx context.Context, cacheKey string, auth *model.AuthContext) error {
	data, err := json.Marshal(auth)
	if err != nil {
		return fmt.Errorf("marshal auth context: %w", err)
	}
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, authCachePrefix+cacheKey, data, authCacheTTL)
	pipe.Set(ctx, authKeyIndexPrefix+auth.KeyID, cacheKey, authCacheTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// DeleteAuthContext removes a cached auth context.
func (c *Cache) DeleteAuthContext(ctx context.Context, cacheKey string) error {
	return c.client.Del(ctx, authCachePrefix+cacheKey).Err()
}

// EvictAPIKey removes any cached auth context for a key id. Called when a
// key is revoked.
func (c *Cache) EvictAPIKey(ctx context.Context, keyID string) error {
	cacheKey, err := c.client.GetDel(ctx, authKeyIndexPrefix+keyID).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis getdel failed: %w", err)
	}
	return c.DeleteAuthContext(ctx, cacheKey)
}
