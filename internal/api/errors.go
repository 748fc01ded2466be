// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions the stores branch on. Being unauthenticated
// is a valid terminal state, not a failure, and is never shown to the user.
var (
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLoginThrottled     = errors.New("too many login attempts, slow down")
)

// StatusError is a non-2xx response that carried the server's error envelope.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %s (%d %s)", e.Message, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("api: unexpected status %d", e.StatusCode)
}

// errorEnvelope matches the platform's JSON error body.
type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
