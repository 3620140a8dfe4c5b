package cache

import (
	"fmt"

	"rental_scrooper/config"
)

// NewBackend builds the configured backend. It returns nil, nil when caching
// is disabled or no backend address is set.
func NewBackend(cfg config.CacheConfig) (Backend, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Backend {
	case "", "redis":
		if cfg.RedisURL == "" {
			return nil, nil
		}
		r, err := NewRedisBackend(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return r, nil
	case "memcache":
		if cfg.MemcacheAddr == "" {
			return nil, nil
		}
		return NewMemcacheBackend(cfg.MemcacheAddr), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
