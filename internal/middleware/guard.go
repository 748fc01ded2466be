// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for the local control surface:
// route authorization backed by the session guard, and request timeouts.
package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/localbasket/marketsync/internal/guard"
	"github.com/localbasket/marketsync/internal/model"
)

// SessionSource supplies the live session snapshot; the session manager
// implements it.
type SessionSource interface {
	Snapshot() model.Session
}

// Guard evaluates the route guard before every request. An empty allowed set
// marks a public route. While an identity check is in flight the client
// answers 503 with Retry-After rather than guessing from stale state.
func Guard(src SessionSource, allowed ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := guard.Evaluate(allowed, src.Snapshot(), r.URL.Path)

			switch result.Decision {
			case guard.Allow:
				next.ServeHTTP(w, r)
			case guard.Hold:
				w.Header().Set("Retry-After", "1")
				writeGuardError(w, http.StatusServiceUnavailable, "session check in progress", result)
			case guard.RedirectLogin:
				writeGuardError(w, http.StatusUnauthorized, "authentication required", result)
			case guard.RedirectUnauthorized:
				writeGuardError(w, http.StatusForbidden, "insufficient role", result)
			}
		})
	}
}

func writeGuardError(w http.ResponseWriter, statusCode int, message string, result guard.Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	body := map[string]any{
		"success": false,
		"error":   message,
	}
	if result.RedirectTo != "" {
		body["redirect_to"] = result.RedirectTo
	}
	if result.ReturnTo != "" {
		body["return_to"] = result.ReturnTo
	}
	_ = json.NewEncoder(w).Encode(body)
}
