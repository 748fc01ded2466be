// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import "net/http"

// Categories handles GET /catalog/categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.Categories(r.Context())
	if err != nil {
		h.logger.Warn("category fetch failed", "error", err.Error())
		writeJSONError(w, http.StatusBadGateway, "failed to fetch categories")
		return
	}
	writeJSONSuccess(w, map[string]any{
		"categories": categories,
	})
}

// DeliveryZones handles GET /catalog/delivery-zones.
func (h *Handler) DeliveryZones(w http.ResponseWriter, r *http.Request) {
	zones, err := h.catalog.DeliveryZones(r.Context())
	if err != nil {
		h.logger.Warn("delivery zone fetch failed", "error", err.Error())
		writeJSONError(w, http.StatusBadGateway, "failed to fetch delivery zones")
		return
	}
	writeJSONSuccess(w, map[string]any{
		"delivery_zones": zones,
	})
}

// ApplicationStatus handles GET /catalog/application-status.
func (h *Handler) ApplicationStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.catalog.ApplicationStatus(r.Context())
	if err != nil {
		h.logger.Warn("application status fetch failed", "error", err.Error())
		writeJSONError(w, http.StatusBadGateway, "failed to fetch application status")
		return
	}
	writeJSONSuccess(w, map[string]any{
		"status": status,
	})
}
