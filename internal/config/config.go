// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads marketsync configuration from environment variables.
package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	// APIBaseURL is the marketplace REST API root, e.g. https://api.example.com.
	APIBaseURL string `env:"MKSYNC_API_URL,required"`

	// ChannelURL is the real-time notification socket endpoint. When empty it
	// is derived from APIBaseURL (http->ws scheme, /ws/notifications path).
	ChannelURL string `env:"MKSYNC_WS_URL"`

	StatePath  string `env:"MKSYNC_STATE_PATH" envDefault:"./data/marketsync.db"`
	ListenHost string `env:"MKSYNC_LISTEN_HOST" envDefault:"127.0.0.1"`
	ListenPort int    `env:"MKSYNC_LISTEN_PORT" envDefault:"7410"`
	Env        string `env:"MKSYNC_ENV" envDefault:"development"`
	LogLevel   string `env:"MKSYNC_LOG_LEVEL" envDefault:"info"`

	// Cache configuration
	RedisURL    string `env:"MKSYNC_REDIS_URL"`                         // Optional Redis URL for a shared cache
	CachePrefix string `env:"MKSYNC_CACHE_PREFIX" envDefault:"mksync:"` // Redis key prefix
	CacheTTL    int    `env:"MKSYNC_CACHE_TTL" envDefault:"900"`        // Default cache TTL in seconds

	// Notification fetch configuration
	PageSize int `env:"MKSYNC_PAGE_SIZE" envDefault:"20"`

	// Background job schedules (cron specs accepted by robfig/cron)
	UnreadResyncSpec   string `env:"MKSYNC_UNREAD_RESYNC" envDefault:"@every 1m"`
	SessionRecheckSpec string `env:"MKSYNC_SESSION_RECHECK" envDefault:"@every 5m"`
	EventRetentionDays int    `env:"MKSYNC_EVENT_RETENTION_DAYS" envDefault:"30"`

	// InstanceID identifies this client instance on the channel handshake.
	// Generated when not provided.
	InstanceID string `env:"MKSYNC_INSTANCE_ID"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ListenAddr returns the control-surface listen address in host:port format.
func (c Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ListenHost, c.ListenPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	base, err := url.Parse(cfg.APIBaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("MKSYNC_API_URL %q is not an absolute URL", cfg.APIBaseURL)
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	if cfg.ChannelURL == "" {
		cfg.ChannelURL = deriveChannelURL(base)
	}
	ws, err := url.Parse(cfg.ChannelURL)
	if err != nil || (ws.Scheme != "ws" && ws.Scheme != "wss") {
		return nil, fmt.Errorf("MKSYNC_WS_URL %q must use ws:// or wss://", cfg.ChannelURL)
	}

	if cfg.PageSize < 1 || cfg.PageSize > 100 {
		return nil, fmt.Errorf("MKSYNC_PAGE_SIZE must be between 1 and 100, got %d", cfg.PageSize)
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	return cfg, nil
}

// deriveChannelURL maps the API base URL onto the default socket endpoint.
func deriveChannelURL(base *url.URL) string {
	ws := *base
	switch base.Scheme {
	case "https":
		ws.Scheme = "wss"
	default:
		ws.Scheme = "ws"
	}
	ws.Path = strings.TrimRight(ws.Path, "/") + "/ws/notifications"
	return ws.String()
}
