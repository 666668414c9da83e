package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheDown wraps every failure of a cache call, including calls the
// breaker refused to make.
var ErrCacheDown = errors.New("cache unavailable")

const defaultOpTimeout = 3 * time.Second

// RedisCache is a key/TTL store over go-redis used to mirror revoked tokens.
type RedisCache struct {
	client    *redis.Client
	breaker   *Breaker
	opTimeout time.Duration
}

// NewRedisCache wraps a client built from opts. Calls are bounded by the
// client's read timeout and pass through a Breaker configured by breaker.
func NewRedisCache(opts *redis.Options, breaker BreakerConfig) *RedisCache {
	if opts == nil {
		opts = &redis.Options{Addr: "localhost:6379"}
	}

	opTimeout := opts.ReadTimeout
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}

	return &RedisCache{
		client:    redis.NewClient(opts),
		breaker:   NewBreaker(breaker),
		opTimeout: opTimeout,
	}
}

// Connect builds the cache and pings Redis before handing it out.
func Connect(ctx context.Context, opts *redis.Options, breaker BreakerConfig) (*RedisCache, error) {
	c := NewRedisCache(opts, breaker)
	if err := c.Health(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return c, nil
}

// Set stores value under key. A zero ttl keeps the key forever.
func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return r.call(ctx, func(ctx context.Context) error {
		return r.client.Set(ctx, key, value, ttl).Err()
	})
}

func (r *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	var n int64
	err := r.call(ctx, func(ctx context.Context) (err error) {
		n, err = r.client.Exists(ctx, key).Result()
		return err
	})
	return n > 0, err
}

// Health pings Redis directly so a probe can see recovery while the
// breaker is still open.
func (r *RedisCache) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w (breaker %s)", err, r.breaker.State())
	}
	return nil
}

func (r *RedisCache) BreakerStats() BreakerStats {
	return r.breaker.Stats()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func (r *RedisCache) call(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	if err := r.breaker.Do(func() error { return fn(ctx) }); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheDown, err)
	}
	return nil
}
