// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"strconv"
	"time"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 200
)

type eventView struct {
	ID        int64     `json:"id"`
	Level     string    `json:"level"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Events handles GET /events: the newest local event log entries, for
// inspecting what the client has been doing without shell access.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxEventLimit)
	}

	events, err := h.store.RecentEvents(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing events failed", "error", err.Error())
		writeJSONError(w, http.StatusInternalServerError, "failed to read the event log")
		return
	}

	views := make([]eventView, 0, len(events))
	for _, e := range events {
		views = append(views, eventView{
			ID:        e.ID,
			Level:     e.Level,
			Category:  e.Category,
			Message:   e.Message,
			CreatedAt: e.CreatedAt,
		})
	}
	writeJSONSuccess(w, map[string]any{"events": views})
}
