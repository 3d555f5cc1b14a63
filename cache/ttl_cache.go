// ABOUTME: Redis-backed TTL cache for article query results
// ABOUTME: Best-effort semantics: failures degrade to miss/no-op, never to an error
package cache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisClient is the subset of the go-redis API the cache uses.
// *redis.Client satisfies it; tests substitute a fake.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// TTLCache is a shared key/value cache with explicit TTLs. It is never a
// correctness dependency: every failure path degrades to "miss" on reads and
// "no-op" on writes, with the failure logged.
type TTLCache struct {
	client redisClient
	logger *slog.Logger
}

// New creates a cache over an established Redis client.
func New(client *redis.Client, logger *slog.Logger) *TTLCache {
	return &TTLCache{client: client, logger: logger}
}

// NewFromURL connects to Redis using a URL of the form redis://host:port/db.
func NewFromURL(url string, logger *slog.Logger) (*TTLCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &TTLCache{client: redis.NewClient(opts), logger: logger}, nil
}

// Get returns the cached value and whether it was a hit. Expiry is enforced
// by Redis itself via the TTL given at Set time.
func (c *TTLCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed, treating as miss", "key", key, "error", err)
		}
		return nil, false
	}
	return val, true
}

// Set stores the value under the key with the given TTL. Write failures are
// logged and swallowed.
func (c *TTLCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.Warn("cache write failed, skipping", "key", key, "error", err)
	}
}

// Invalidate removes the given keys immediately. Readers in flight may still
// observe a value deleted mid-request; callers tolerate that brief staleness.
func (c *TTLCache) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("cache invalidation failed", "keys", keys, "error", err)
	}
}

// Ping checks connectivity for health reporting.
func (c *TTLCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// QueryKey builds a cache key from the shape of a query. Empty parts are
// kept as empty segments so distinct shapes never collide.
func QueryKey(parts ...string) string {
	return "goodnews:" + strings.Join(parts, ":")
}
