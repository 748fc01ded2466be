// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler implements the local HTTP control surface: session
// operations, notification access, cached catalog reads, and status
// endpoints. Route authorization runs through the guard middleware, so
// handlers here trust that the guard already admitted the request.
package handler

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/localbasket/marketsync/internal/cache"
	"github.com/localbasket/marketsync/internal/catalog"
	"github.com/localbasket/marketsync/internal/channel"
	"github.com/localbasket/marketsync/internal/metrics"
	"github.com/localbasket/marketsync/internal/notification"
	"github.com/localbasket/marketsync/internal/scheduler"
	"github.com/localbasket/marketsync/internal/session"
	"github.com/localbasket/marketsync/internal/store"
	"github.com/localbasket/marketsync/internal/version"
)

// Handler carries the wired subsystems for all endpoints.
type Handler struct {
	session       *session.Manager
	notifications *notification.Store
	catalog       *catalog.Service
	channel       *channel.Manager
	scheduler     *scheduler.Scheduler
	cache         cache.Cacher
	metrics       *metrics.Metrics
	db            *sql.DB
	store         *store.Queries
	logger        *slog.Logger
	version       version.Info
	startTime     time.Time
}

// Options collects the handler's dependencies.
type Options struct {
	Session       *session.Manager
	Notifications *notification.Store
	Catalog       *catalog.Service
	Channel       *channel.Manager
	Scheduler     *scheduler.Scheduler
	Cache         cache.Cacher
	Metrics       *metrics.Metrics
	DB            *sql.DB
	Store         *store.Queries
	Logger        *slog.Logger
	Version       version.Info
}

// New creates a Handler.
func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		session:       opts.Session,
		notifications: opts.Notifications,
		catalog:       opts.Catalog,
		channel:       opts.Channel,
		scheduler:     opts.Scheduler,
		cache:         opts.Cache,
		metrics:       opts.Metrics,
		db:            opts.DB,
		store:         opts.Store,
		logger:        logger,
		version:       opts.Version,
		startTime:     time.Now(),
	}
}
