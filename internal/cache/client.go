// Package cache wraps Redis for the quote service: a thin client with
// per-command timeouts, the two-tier aggregated quote cache, and the
// provider-level response cache.
package cache

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wudi/bridgerouter/internal/logging"
)

// defaultCommandTimeout bounds every Redis command so a stalled connection
// can never stall a request.
const defaultCommandTimeout = 3 * time.Second

// Client wraps go-redis with per-command timeouts. All read helpers treat
// backend failures as misses; callers never see a Redis error on the read
// path.
type Client struct {
	rdb     *redis.Client
	timeout time.Duration
}

// New connects to Redis using a redis:// URL and verifies the connection.
// timeout bounds each command; non-positive values fall back to the default.
func New(url string, timeout time.Duration) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	c := &Client{rdb: redis.NewClient(opts), timeout: timeout}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return c, nil
}

// NewFromClient wraps an existing go-redis client with the default command
// timeout. Used by tests.
func NewFromClient(rdb *redis.Client) *Client {
	return &Client{rdb: rdb, timeout: defaultCommandTimeout}
}

// Get returns the value for key, or ok=false on miss or backend failure.
func (c *Client) Get(ctx context.Context, key string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		logging.Warn("Redis GET failed", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return val, true
}

// Set stores a value with a TTL. Failures are logged and swallowed.
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		logging.Warn("Redis SET failed", zap.String("key", key), zap.Error(err))
	}
}

// Incr increments a counter, returning the new value. Unlike the read
// helpers this surfaces the error: the rate limiter needs to distinguish a
// backend failure from a count.
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.rdb.Incr(ctx, key).Result()
}

// Expire sets a TTL on an existing key.
func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.rdb.Expire(ctx, key, ttl).Err()
}

// TTL returns the remaining TTL for a key.
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.rdb.TTL(ctx, key).Result()
}

// MGet fetches several keys at once. Missing entries come back as empty
// strings; a backend failure returns all-empty.
func (c *Client) MGet(ctx context.Context, keys ...string) []string {
	out := make([]string, len(keys))
	if len(keys) == 0 {
		return out
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		logging.Warn("Redis MGET failed", zap.Int("keys", len(keys)), zap.Error(err))
		return out
	}
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[i] = s
		}
	}
	return out
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Stats reports server-side cache effectiveness from INFO stats.
type Stats struct {
	KeyspaceHits   int64 `json:"keyspace_hits"`
	KeyspaceMisses int64 `json:"keyspace_misses"`
}

// HitRate returns hits/(hits+misses), or 0 when idle.
func (s Stats) HitRate() float64 {
	total := s.KeyspaceHits + s.KeyspaceMisses
	if total == 0 {
		return 0
	}
	return float64(s.KeyspaceHits) / float64(total)
}

// Stats parses keyspace hit/miss counters out of INFO stats.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	info, err := c.rdb.Info(ctx, "stats").Result()
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if v, ok := strings.CutPrefix(line, "keyspace_hits:"); ok {
			stats.KeyspaceHits, _ = strconv.ParseInt(v, 10, 64)
		}
		if v, ok := strings.CutPrefix(line, "keyspace_misses:"); ok {
			stats.KeyspaceMisses, _ = strconv.ParseInt(v, 10, 64)
		}
	}
	return stats, nil
}
