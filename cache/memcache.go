package cache

import (
	"context"
	"errors"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// memcached reads 0 as "never expire" and anything above 30 days as an
// absolute unix time.
const maxMemcacheTTL = 30 * 24 * time.Hour

type MemcacheBackend struct {
	client *memcache.Client
}

func NewMemcacheBackend(serverAddr string) *MemcacheBackend {
	client := memcache.New(serverAddr)
	client.Timeout = time.Second
	return &MemcacheBackend{client: client}
}

func (m *MemcacheBackend) Get(ctx context.Context, key string) ([]byte, error) {
	item, err := m.client.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return item.Value, nil
}

func (m *MemcacheBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: memcacheExpiration(ttl),
	})
}

// memcacheExpiration rounds ttl up to whole seconds, at least one, capped at
// 30 days.
func memcacheExpiration(ttl time.Duration) int32 {
	if ttl > maxMemcacheTTL {
		ttl = maxMemcacheTTL
	}
	secs := int32((ttl + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

func (m *MemcacheBackend) Delete(ctx context.Context, key string) error {
	err := m.client.Delete(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return ErrMiss
	}
	return err
}

// Close is a no-op; the client only holds pooled idle connections.
func (m *MemcacheBackend) Close() error {
	return nil
}
