// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// Notifications handles GET /notifications. An optional page query parameter
// fetches that historical page into the store before responding.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 0 {
			writeJSONError(w, http.StatusBadRequest, "page must be a non-negative integer")
			return
		}
		if err := h.notifications.FetchPage(r.Context(), page); err != nil {
			h.logger.Warn("notification page fetch failed", "page", page, "error", err.Error())
			writeJSONError(w, http.StatusBadGateway, "failed to fetch notifications")
			return
		}
	}

	writeJSONSuccess(w, map[string]any{
		"notifications": h.notifications.Notifications(),
		"unread":        h.notifications.Unread(),
		"has_more":      h.notifications.HasMore(),
		"total":         h.notifications.TotalItems(),
	})
}

// MarkNotificationRead handles POST /notifications/{id}/read.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSONError(w, http.StatusBadRequest, "notification id is required")
		return
	}

	if err := h.notifications.MarkRead(r.Context(), id); err != nil {
		h.logger.Warn("mark read failed", "id", id, "error", err.Error())
		writeJSONError(w, http.StatusBadGateway, "failed to mark notification read")
		return
	}
	writeJSONSuccess(w, map[string]any{
		"unread": h.notifications.Unread(),
	})
}

// MarkAllNotificationsRead handles POST /notifications/read-all.
func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	if err := h.notifications.MarkAllRead(r.Context()); err != nil {
		h.logger.Warn("mark all read failed", "error", err.Error())
		writeJSONError(w, http.StatusBadGateway, "failed to mark notifications read")
		return
	}
	writeJSONSuccess(w, map[string]any{
		"unread": h.notifications.Unread(),
	})
}

// UnreadCount handles GET /notifications/unread-count. The refresh query
// parameter forces a server reconciliation before answering.
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "true" {
		if err := h.notifications.RefreshUnreadCount(r.Context()); err != nil {
			h.logger.Warn("unread refresh failed", "error", err.Error())
			writeJSONError(w, http.StatusBadGateway, "failed to refresh unread count")
			return
		}
	}
	writeJSONSuccess(w, map[string]any{
		"unread": h.notifications.Unread(),
	})
}
