// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"fmt"
	"time"
)

// Config selects and tunes the cache backend.
type Config struct {
	// Backend is "memory" or "redis".
	Backend string

	// RedisURL is required for the redis backend.
	RedisURL string

	// Prefix namespaces Redis keys; ignored by the memory backend.
	Prefix string

	DefaultTTL      time.Duration
	CleanupInterval time.Duration
}

// DefaultConfig returns the memory backend with an hour TTL.
func DefaultConfig() Config {
	return Config{
		Backend:         "memory",
		DefaultTTL:      time.Hour,
		CleanupInterval: time.Minute,
	}
}

// New creates the configured cache backend.
func New(cfg Config) (Cacher, error) {
	switch cfg.Backend {
	case "redis":
		opts := DefaultRedisCacheOptions()
		opts.URL = cfg.RedisURL
		if cfg.Prefix != "" {
			opts.Prefix = cfg.Prefix
		}
		if cfg.DefaultTTL > 0 {
			opts.DefaultTTL = cfg.DefaultTTL
		}
		return NewRedisCache(opts)
	case "memory", "":
		return NewMemoryCache(MemoryCacheOptions{
			DefaultTTL:      cfg.DefaultTTL,
			CleanupInterval: cfg.CleanupInterval,
		}), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
