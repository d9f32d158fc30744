package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rateLimitAPIPrefix = "ratelimit:apikey:"
	rateLimitIPPrefix  = "ratelimit:ip:"
	rateLimitAPITTL    = 120 * time.Second
	rateLimitIPTTL     = 10 * time.Second
)

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// bucket is one token bucket stored in Redis.
type bucket struct {
	key           string
	ratePerSecond float64
	burst         int
	ttl           time.Duration
}

// tokenBucketScript refills and consumes one token atomically.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])
	local burst = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])

	local data = redis.call('HMGET', key, 'tokens', 'last_update')
	local tokens = tonumber(data[1]) or burst
	local last_update = tonumber(data[2]) or now

	tokens = math.min(burst, tokens + ((now - last_update) * rate))

	local allowed = 0
	local retry_after = 0
	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	else
		retry_after = math.ceil((1 - tokens) / rate)
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_update', now)
	redis.call('EXPIRE', key, ttl)

	return {allowed, retry_after, math.floor(tokens)}
`)

// CheckAPIRateLimit consumes one request from an API key's per-minute budget.
// A zero rate means unlimited.
func (c *Cache) CheckAPIRateLimit(ctx context.Context, keyID string, ratePerMinute, burst int) *RateLimitResult {
	if ratePerMinute == 0 {
		return c.unlimited(burst)
	}
	return c.take(ctx, bucket{
		key:           rateLimitAPIPrefix + keyID,
		ratePerSecond: float64(ratePerMinute) / 60.0,
		burst:         burst,
		ttl:           rateLimitAPITTL,
	})
}

// CheckIPRateLimit consumes one request from an IP's per-second budget.
// The IP is hashed before it is used as a key.
func (c *Cache) CheckIPRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) *RateLimitResult {
	return c.take(ctx, bucket{
		key:           rateLimitIPPrefix + hashIP(ip),
		ratePerSecond: float64(ratePerSecond),
		burst:         burst,
		ttl:           rateLimitIPTTL,
	})
}

// take fails open: a Redis error allows the request.
func (c *Cache) take(ctx context.Context, b bucket) *RateLimitResult {
	now := c.now()

	result, err := tokenBucketScript.Run(ctx, c.client,
		[]string{b.key},
		b.ratePerSecond, b.burst, now.Unix(), int(b.ttl.Seconds()),
	).Int64Slice()
	if err != nil || len(result) != 3 {
		return c.unlimited(b.burst)
	}

	return &RateLimitResult{
		Allowed:    result[0] == 1,
		Remaining:  result[2],
		ResetAt:    now.Add(refillInterval(b.ratePerSecond)),
		RetryAfter: time.Duration(result[1]) * time.Second,
	}
}

func (c *Cache) unlimited(burst int) *RateLimitResult {
	return &RateLimitResult{
		Allowed:   true,
		Remaining: int64(burst),
		ResetAt:   c.now().Add(time.Minute),
	}
}

// refillInterval is the time for one token to be added back.
func refillInterval(ratePerSecond float64) time.Duration {
	if ratePerSecond <= 0 {
		return time.Minute
	}
	return time.Duration(float64(time.Second) / ratePerSecond)
}

// hashIP creates a truncated SHA256 hash of an IP address.
func hashIP(ip string) string {
	hash := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(hash[:8])
}
