// Package cache memoizes serialized read responses in Redis. Entries are
// advisory: a failing backend behaves like an empty cache.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/KeremAR/Microservice/pkg/metrics"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	keyPrefix = "profile"

	// scanCount is the COUNT hint per SCAN round during invalidation.
	scanCount = 100
)

type Options struct {
	// TTL applies when Put or Fetch is called with ttl <= 0.
	TTL time.Duration
	// Timeout bounds every backend round trip.
	Timeout time.Duration
	// LoadTimeout bounds a shared Fetch load, which outlives the caller that
	// started it.
	LoadTimeout time.Duration
}

// Cache is safe for concurrent use.
type Cache struct {
	client      redis.Cmdable
	ttl         time.Duration
	timeout     time.Duration
	loadTimeout time.Duration
	group       singleflight.Group
	logger      *slog.Logger
}

func New(client redis.Cmdable, opts Options, logger *slog.Logger) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = 300 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 500 * time.Millisecond
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = 10 * time.Second
	}
	return &Cache{
		client:      client,
		ttl:         opts.TTL,
		timeout:     opts.Timeout,
		loadTimeout: opts.LoadTimeout,
		logger:      logger.With("component", "cache"),
	}
}

// Key derives the cache key for operation on behalf of subject (a principal
// id or bearer credential). The subject is hashed so that no subject can
// produce another subject's key or match another subject's pattern.
func Key(operation, subject string) string {
	return keyPrefix + ":" + operation + ":" + digest(subject)
}

// PrincipalPattern matches every operation's key for subject.
func PrincipalPattern(subject string) string {
	return keyPrefix + ":*:" + digest(subject)
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached payload. Backend errors and timeouts are misses.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	val, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		metrics.CacheRequests.WithLabelValues("hit").Inc()
		return val, true
	case errors.Is(err, redis.Nil):
		metrics.CacheRequests.WithLabelValues("miss").Inc()
	default:
		metrics.CacheRequests.WithLabelValues("error").Inc()
		c.logger.Warn("cache get failed, treating as miss", "key", key, "error", err)
	}
	return nil, false
}

// Put stores value under key. Callers only pass successful payloads.
func (c *Cache) Put(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.Warn("cache put failed", "key", key, "error", err)
	}
}

// Invalidate deletes every key matching pattern and returns how many were
// removed. Matching nothing is not an error; backend errors are logged.
func (c *Cache) Invalidate(ctx context.Context, pattern string) int {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			c.logger.Warn("cache invalidate scan failed", "pattern", pattern, "error", err)
			return removed
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				c.logger.Warn("cache invalidate delete failed", "pattern", pattern, "error", err)
				return removed
			}
			removed += int(n)
		}
		if next == 0 {
			break
		}
		cursor = next
	}

	if removed > 0 {
		c.logger.Debug("cache invalidated", "pattern", pattern, "removed", removed)
	}
	return removed
}

// Loader produces a payload on a miss. cacheable=false returns the payload
// without storing it, for responses that must not be memoized.
type Loader func(ctx context.Context) (payload []byte, cacheable bool, err error)

// Fetch is a read-through Get. Concurrent misses for the same key share one
// load; load errors are returned and never cached. The shared load keeps
// ctx's values but not its cancellation, so a caller that gives up returns
// ctx.Err() without failing the others.
func (c *Cache) Fetch(ctx context.Context, key string, ttl time.Duration, load Loader) ([]byte, error) {
	if val, ok := c.Get(ctx, key); ok {
		return val, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()

		payload, cacheable, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		if cacheable {
			c.Put(loadCtx, key, payload, ttl)
		}
		return payload, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
