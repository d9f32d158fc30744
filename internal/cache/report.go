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

const reportKeyPrefix = "report:v1:"

// ErrCacheMiss is returned when a key is not cached.
var ErrCacheMiss = errors.New("cache miss")

// GetReport returns cached metrics for key, or ErrCacheMiss.
func (c *Cache) GetReport(ctx context.Context, key string) (*model.ReportMetrics, error) {
	data, err := c.client.Get(ctx, reportKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var m model.ReportMetrics
	if err := json.Unmarshal(data, &m); err != nil {
		// Corrupted or outdated entry, drop it
		c.client.Del(ctx, reportKeyPrefix+key)
		return nil, ErrCacheMiss
	}
	return &m, nil
}

// SetReport caches metrics for ttl.
func (c *Cache) SetReport(ctx context.Context, key string, m *model.ReportMetrics, ttl time.Duration) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := c.client.Set(ctx, reportKeyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache report: %w", err)
	}
	return nil
}
