// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package catalog serves marketplace reference data (categories, delivery
// zones, the seller application status) through a read-through cache. All
// entries live under one prefix and are purged when the session ends.
package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/localbasket/marketsync/internal/cache"
	"github.com/localbasket/marketsync/internal/model"
)

const (
	keyPrefix            = "catalog:"
	keyCategories        = keyPrefix + "categories"
	keyDeliveryZones     = keyPrefix + "delivery-zones"
	keyApplicationStatus = keyPrefix + "application-status"

	// Reference data changes rarely; application status may flip while a
	// seller application is under review, so it expires faster.
	referenceTTL = 15 * time.Minute
	statusTTL    = time.Minute
)

// API is the slice of the REST client the service depends on.
type API interface {
	Categories(ctx context.Context) ([]model.Category, error)
	DeliveryZones(ctx context.Context) ([]model.DeliveryZone, error)
	ApplicationStatus(ctx context.Context) (string, error)
}

// Service is the cached catalog reader.
type Service struct {
	api    API
	store  cache.Cacher
	logger *slog.Logger

	categories *cache.TypedCache[[]model.Category]
	zones      *cache.TypedCache[[]model.DeliveryZone]
	status     *cache.TypedCache[string]
}

// NewService creates a catalog service over the given cache backend.
func NewService(client API, store cache.Cacher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		api:        client,
		store:      store,
		logger:     logger,
		categories: cache.NewTypedCache[[]model.Category](store, referenceTTL),
		zones:      cache.NewTypedCache[[]model.DeliveryZone](store, referenceTTL),
		status:     cache.NewTypedCache[string](store, statusTTL),
	}
}

// Categories returns the category list, fetching on a cache miss.
func (s *Service) Categories(ctx context.Context) ([]model.Category, error) {
	got, err := s.categories.GetOrSet(ctx, keyCategories, func() (*[]model.Category, error) {
		cats, err := s.api.Categories(ctx)
		if err != nil {
			return nil, err
		}
		return &cats, nil
	})
	if err != nil {
		return nil, err
	}
	return *got, nil
}

// DeliveryZones returns the delivery zone list, fetching on a cache miss.
func (s *Service) DeliveryZones(ctx context.Context) ([]model.DeliveryZone, error) {
	got, err := s.zones.GetOrSet(ctx, keyDeliveryZones, func() (*[]model.DeliveryZone, error) {
		zones, err := s.api.DeliveryZones(ctx)
		if err != nil {
			return nil, err
		}
		return &zones, nil
	})
	if err != nil {
		return nil, err
	}
	return *got, nil
}

// ApplicationStatus returns the seller application status, fetching on a
// cache miss.
func (s *Service) ApplicationStatus(ctx context.Context) (string, error) {
	got, err := s.status.GetOrSet(ctx, keyApplicationStatus, func() (*string, error) {
		status, err := s.api.ApplicationStatus(ctx)
		if err != nil {
			return nil, err
		}
		return &status, nil
	})
	if err != nil {
		return "", err
	}
	return *got, nil
}

// Purge drops all cached catalog data.
func (s *Service) Purge(ctx context.Context) {
	if err := s.store.DeleteByPrefix(ctx, keyPrefix); err != nil {
		s.logger.Warn("catalog purge failed",
			"category", model.EventCategorySystem, "error", err.Error())
	}
}

// HandleLifecycle purges cached data when the session ends; catalog entries
// like application status are user-scoped and must not leak across sessions.
func (s *Service) HandleLifecycle(ev model.LifecycleEvent) {
	if ev.Kind == model.EventDeauthenticated {
		s.Purge(context.Background())
	}
}
