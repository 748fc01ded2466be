// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/localbasket/marketsync/internal/cache"
)

// Status handles GET /status: one snapshot of everything the client is
// tracking, for dashboards and debugging.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{
		"session": viewOf(h.session.Snapshot()),
		"channel": string(h.channel.State()),
		"unread":  h.notifications.Unread(),
		"uptime":  time.Since(h.startTime).Round(time.Second).String(),
		"version": h.version.Version,
		"commit":  h.version.GitCommit,
	}
	if h.scheduler != nil {
		body["jobs"] = h.scheduler.Jobs()
	}
	if sp, ok := h.cache.(cache.StatsProvider); ok {
		body["cache"] = sp.Stats()
	}
	if err := h.channel.LastError(); err != nil {
		body["channel_error"] = err.Error()
	}
	writeJSONSuccess(w, body)
}

// Healthz handles GET /healthz - liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "alive",
	})
}

// Readyz handles GET /readyz - verifies the durable store is reachable.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status": "not_ready",
			})
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "ready",
	})
}
