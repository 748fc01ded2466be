// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/localbasket/marketsync/internal/api"
	"github.com/localbasket/marketsync/internal/model"
	"github.com/localbasket/marketsync/internal/session"
)

// sessionView is the session snapshot shape returned to callers.
type sessionView struct {
	Authenticated bool        `json:"authenticated"`
	Lifecycle     string      `json:"lifecycle"`
	User          *model.User `json:"user,omitempty"`
	LastError     string      `json:"last_error,omitempty"`
}

func viewOf(sess model.Session) sessionView {
	return sessionView{
		Authenticated: sess.IsAuthenticated,
		Lifecycle:     string(sess.Lifecycle),
		User:          sess.User,
		LastError:     sess.LastError,
	}
}

// Session handles GET /session.
func (h *Handler) Session(w http.ResponseWriter, _ *http.Request) {
	writeJSONSuccess(w, map[string]any{
		"session": viewOf(h.session.Snapshot()),
	})
}

// Login handles POST /login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeJSONError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	switch err := h.session.Login(r.Context(), req.Email, req.Password); {
	case err == nil:
		writeJSONSuccess(w, map[string]any{
			"session": viewOf(h.session.Snapshot()),
		})
	case errors.Is(err, api.ErrInvalidCredentials):
		writeJSONError(w, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, api.ErrLoginThrottled):
		writeJSONError(w, http.StatusTooManyRequests, "too many login attempts")
	case errors.Is(err, session.ErrCheckInFlight):
		writeJSONError(w, http.StatusConflict, "an identity check is already in flight")
	default:
		writeJSONError(w, http.StatusBadGateway, "login failed")
	}
}

// Logout handles POST /logout. The local session is always cleared; a failed
// server-side logout never surfaces here.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Logout(r.Context()); err != nil {
		if errors.Is(err, session.ErrCheckInFlight) {
			writeJSONError(w, http.StatusConflict, "an identity check is already in flight")
			return
		}
		writeJSONError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	writeJSONSuccess(w, nil)
}

// ChangePassword handles POST /password. A successful change invalidates the
// session; the caller must log in again.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch err := h.session.ChangePassword(r.Context(), req.CurrentPassword, req.NewPassword); {
	case err == nil:
		writeJSONSuccess(w, map[string]any{
			"message": "password changed, please log in again",
		})
	case errors.Is(err, session.ErrPasswordTooShort):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, api.ErrInvalidCredentials):
		writeJSONError(w, http.StatusUnauthorized, "current password is incorrect")
	default:
		writeJSONError(w, http.StatusBadGateway, "password change failed")
	}
}

// Recheck handles POST /session/recheck: a passive identity revalidation.
func (h *Handler) Recheck(w http.ResponseWriter, r *http.Request) {
	h.session.Recheck(r.Context())
	writeJSONSuccess(w, map[string]any{
		"session": viewOf(h.session.Snapshot()),
	})
}
