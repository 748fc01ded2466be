// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/localbasket/marketsync/internal/api"
	"github.com/localbasket/marketsync/internal/cache"
	"github.com/localbasket/marketsync/internal/catalog"
	"github.com/localbasket/marketsync/internal/channel"
	"github.com/localbasket/marketsync/internal/config"
	"github.com/localbasket/marketsync/internal/handler"
	"github.com/localbasket/marketsync/internal/logging"
	"github.com/localbasket/marketsync/internal/metrics"
	"github.com/localbasket/marketsync/internal/notification"
	"github.com/localbasket/marketsync/internal/scheduler"
	"github.com/localbasket/marketsync/internal/session"
	"github.com/localbasket/marketsync/internal/store"
	"github.com/localbasket/marketsync/internal/version"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "marketsync - LocalBasket session & notification sync client\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  MKSYNC_API_URL         Marketplace REST API root (required)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  MKSYNC_WS_URL          Notification socket URL (default: derived from API URL)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  MKSYNC_STATE_PATH      SQLite state path (default: ./data/marketsync.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  MKSYNC_LISTEN_PORT     Control surface port (default: 7410)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  MKSYNC_ENV             Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  MKSYNC_REDIS_URL       Redis URL for a shared cache (optional)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if *showVersion {
		_, _ = fmt.Printf("marketsync %s (commit: %s, built: %s)\n", appVersion, appGitCommit, appBuildTime)
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	versionInfo := version.Info{
		Version:   appVersion,
		GitCommit: appGitCommit,
		BuildTime: appBuildTime,
	}

	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Ensure the state directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.StatePath), 0755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	slog.Info("initializing state store", "path", cfg.StatePath)
	db, err := store.NewDB(cfg.StatePath)
	if err != nil {
		return fmt.Errorf("initializing state store: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing state store", "error", err)
		}
	}(db)

	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("state store ready")

	// Upgrade logger to also write WARN and ERROR logs to the event log
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger = slog.New(logging.NewEventLogHandler(textHandler, db))
	slog.SetDefault(logger)

	queries := store.New(db)
	collectors := metrics.New()

	// REST client for the marketplace API
	client, err := api.NewClient(cfg.APIBaseURL,
		api.WithLogger(logger),
		api.WithInstanceID(cfg.InstanceID),
		api.WithMetrics(collectors),
	)
	if err != nil {
		return fmt.Errorf("creating API client: %w", err)
	}

	// Cache backend for catalog data
	cacheConfig := cache.Config{
		Backend:         "memory",
		RedisURL:        cfg.RedisURL,
		Prefix:          cfg.CachePrefix,
		DefaultTTL:      time.Duration(cfg.CacheTTL) * time.Second,
		CleanupInterval: time.Minute,
	}
	if cfg.UseRedisCache() {
		cacheConfig.Backend = "redis"
	}
	cacher, err := cache.New(cacheConfig)
	if err != nil {
		return fmt.Errorf("initializing cache: %w", err)
	}
	defer func() { _ = cacher.Close() }()
	slog.Info("cache initialized", "backend", cacheConfig.Backend)

	// Core subsystems
	sessionManager := session.NewManager(client, queries, logger)
	notificationStore := notification.NewStore(client, cfg.PageSize, logger)
	catalogService := catalog.NewService(client, cacher, logger)

	channelManager := channel.NewManager(channel.Options{
		URL:           cfg.ChannelURL,
		InstanceID:    cfg.InstanceID,
		Authenticated: sessionManager.Authenticated,
		Sink:          notificationStore,
		Logger:        logger,
		Metrics:       collectors,
		// A channel-level auth rejection means the session may be gone;
		// revalidate instead of assuming.
		OnAuthRejected: func() {
			recheckCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			sessionManager.Recheck(recheckCtx)
		},
	})

	// Subscription order matters on logout: the channel must tear down
	// before per-user caches are purged.
	sessionManager.Subscribe(channelManager.HandleLifecycle)
	sessionManager.Subscribe(notificationStore.HandleLifecycle)
	sessionManager.Subscribe(catalogService.HandleLifecycle)

	ctx := context.Background()

	// Restore persisted session state, then verify it against the server.
	if err := sessionManager.Rehydrate(ctx); err != nil {
		slog.Warn("session rehydrate failed", "error", err)
	}
	go func() {
		sess := sessionManager.Bootstrap(context.Background())
		slog.Info("session bootstrap settled",
			"authenticated", sess.IsAuthenticated, "lifecycle", string(sess.Lifecycle))
		if sess.IsAuthenticated {
			if err := notificationStore.Refresh(context.Background()); err != nil {
				slog.Warn("initial notification refresh failed", "error", err)
			}
		}
	}()

	// Periodic maintenance
	sched := scheduler.New(logger)
	if err := sched.AddJob("unread-resync", cfg.UnreadResyncSpec, func() {
		if !sessionManager.Authenticated() {
			return
		}
		jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := notificationStore.RefreshUnreadCount(jobCtx); err != nil {
			slog.Warn("unread resync failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("registering unread resync job: %w", err)
	}
	if err := sched.AddJob("session-recheck", cfg.SessionRecheckSpec, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		sessionManager.Recheck(jobCtx)
	}); err != nil {
		return fmt.Errorf("registering session recheck job: %w", err)
	}
	if err := sched.AddJob("event-log-prune", "0 3 * * *", func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		cutoff := time.Now().AddDate(0, 0, -cfg.EventRetentionDays)
		if err := queries.DeleteOldEvents(jobCtx, cutoff); err != nil {
			slog.Warn("event log prune failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("registering event prune job: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	// Local control surface
	h := handler.New(handler.Options{
		Session:       sessionManager,
		Notifications: notificationStore,
		Catalog:       catalogService,
		Channel:       channelManager,
		Scheduler:     sched,
		Cache:         cacher,
		Metrics:       collectors,
		DB:            db,
		Store:         queries,
		Logger:        logger,
		Version:       versionInfo,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           h.Routes(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		slog.Info("starting control surface",
			"addr", cfg.ListenAddr(), "env", cfg.Env, "version", versionInfo.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")
	channelManager.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("stopped")
	return nil
}
