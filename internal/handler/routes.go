// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/localbasket/marketsync/internal/middleware"
	"github.com/localbasket/marketsync/internal/model"
)

// Routes assembles the control-surface router. Anything carrying user data
// sits behind the route guard; probes, metrics, and the session endpoints
// stay public so callers can observe lifecycle state before authenticating.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Public surface.
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	r.Get("/status", h.Status)
	r.Get("/session", h.Session)
	r.Post("/session/recheck", h.Recheck)
	r.Post("/login", h.Login)
	r.Get("/catalog/categories", h.Categories)
	r.Get("/catalog/delivery-zones", h.DeliveryZones)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler())
	}

	// Any authenticated role.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Guard(h.session, model.RoleAdmin, model.RoleProducer, model.RoleCustomer))

		r.Post("/logout", h.Logout)
		r.Post("/password", h.ChangePassword)
		r.Get("/notifications", h.Notifications)
		r.Post("/notifications/read-all", h.MarkAllNotificationsRead)
		r.Post("/notifications/{id}/read", h.MarkNotificationRead)
		r.Get("/notifications/unread-count", h.UnreadCount)
		r.Get("/events", h.Events)
	})

	// Seller application status is meaningful to customers applying and to
	// producers tracking approval, not to admins.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Guard(h.session, model.RoleCustomer, model.RoleProducer))
		r.Get("/catalog/application-status", h.ApplicationStatus)
	})

	return r
}
