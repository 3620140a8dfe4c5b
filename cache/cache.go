// Package cache is a soft-failing cache-aside layer. A backend error never
// reaches the caller: it turns into a miss and disables the backend for the
// rest of the process lifetime. Errors caused by the caller's own context
// being done are misses only.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ErrMiss is returned by a Backend when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Backend is a string-keyed byte store with per-key TTL.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type Cache struct {
	backend  Backend
	ttl      time.Duration
	log      zerolog.Logger
	disabled atomic.Bool
}

// New wraps backend. A nil backend yields a cache that always misses.
func New(backend Backend, ttl time.Duration, log zerolog.Logger) *Cache {
	c := &Cache{backend: backend, ttl: ttl, log: log}
	if backend == nil {
		c.disabled.Store(true)
	}
	return c
}

// Available reports whether the backend is still in use.
func (c *Cache) Available() bool {
	return !c.disabled.Load()
}

func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get decodes the JSON payload stored under key into dst and reports whether
// it was found.
func (c *Cache) Get(ctx context.Context, key string, dst any) bool {
	if !c.Available() {
		return false
	}

	data, err := c.backend.Get(ctx, key)
	if errors.Is(err, ErrMiss) {
		return false
	}
	if err != nil {
		c.fail(ctx, "get", key, err)
		return false
	}

	if err := json.Unmarshal(data, dst); err != nil {
		// A corrupt entry is a miss; the next Set overwrites it.
		c.log.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cache entry")
		return false
	}
	return true
}

// Set stores value as JSON under key. ttl <= 0 uses the cache default.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	if !c.Available() {
		return false
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	data, err := json.Marshal(value)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Value not cacheable")
		return false
	}

	if err := c.backend.Set(ctx, key, data, ttl); err != nil {
		c.fail(ctx, "set", key, err)
		return false
	}
	return true
}

func (c *Cache) Invalidate(ctx context.Context, key string) bool {
	if !c.Available() {
		return false
	}
	if err := c.backend.Delete(ctx, key); err != nil && !errors.Is(err, ErrMiss) {
		c.fail(ctx, "delete", key, err)
		return false
	}
	return true
}

func (c *Cache) Close() error {
	if c.backend == nil {
		return nil
	}
	return c.backend.Close()
}

func (c *Cache) fail(ctx context.Context, op, key string, err error) {
	if ctx.Err() != nil {
		c.log.Debug().Err(err).Str("op", op).Str("key", key).Msg("Cache call abandoned by caller")
		return
	}
	c.disable(op, key, err)
}

func (c *Cache) disable(op, key string, err error) {
	if c.disabled.CompareAndSwap(false, true) {
		c.log.Error().Err(err).Str("op", op).Str("key", key).Msg("Cache backend failed, caching disabled until restart")
	}
}
