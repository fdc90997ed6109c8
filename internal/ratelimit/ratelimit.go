// Package ratelimit throttles requests per key with a Redis-backed GCRA
// limiter.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// Limiter decides whether one more request for key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
}

// Result is the outcome of a single check.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Redis limits each key to a number of requests per period. Keys are
// shared by every instance using the same Redis.
type Redis struct {
	client  *redis.Client
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
	prefix  string
}

// OpenRedis connects to the Redis at url (redis://host:port/db) and allows
// perMinute requests per key and minute.
func OpenRedis(ctx context.Context, url string, perMinute int) (*Redis, error) {
	if perMinute <= 0 {
		return nil, fmt.Errorf("rate must be positive, got %d", perMinute)
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &Redis{
		client:  client,
		limiter: redis_rate.NewLimiter(client),
		limit:   redis_rate.PerMinute(perMinute),
		prefix:  "autohost:",
	}, nil
}

// Allow counts one request for key.
func (r *Redis) Allow(ctx context.Context, key string) (*Result, error) {
	res, err := r.limiter.Allow(ctx, r.prefix+key, r.limit)
	if err != nil {
		return nil, fmt.Errorf("rate limit check: %w", err)
	}
	return &Result{
		Allowed:    res.Allowed > 0,
		Remaining:  res.Remaining,
		RetryAfter: res.RetryAfter,
	}, nil
}

// Reset forgets the requests counted for key.
func (r *Redis) Reset(ctx context.Context, key string) error {
	return r.limiter.Reset(ctx, r.prefix+key)
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

var _ Limiter = (*Redis)(nil)
