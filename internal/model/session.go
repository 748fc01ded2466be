// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// LifecycleStatus tracks whether an identity check is in flight or settled.
type LifecycleStatus string

// Session lifecycle states. At most one identity check may be in flight,
// so Checking implies no concurrent check.
const (
	StatusIdle     LifecycleStatus = "idle"
	StatusChecking LifecycleStatus = "checking"
	StatusReady    LifecycleStatus = "ready"
	StatusFailed   LifecycleStatus = "failed"
)

// Session is the client's belief about the current authenticated identity.
// IsAuthenticated true implies User is non-nil.
type Session struct {
	User            *User           `json:"user"`
	IsAuthenticated bool            `json:"isAuthenticated"`
	Lifecycle       LifecycleStatus `json:"lifecycleStatus"`
	LastError       string          `json:"lastError,omitempty"`
}

// NewSession returns the initial anonymous session.
func NewSession() Session {
	return Session{Lifecycle: StatusIdle}
}

// Settled reports whether no identity check is in flight.
func (s Session) Settled() bool {
	return s.Lifecycle != StatusChecking
}
