// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// EventKind identifies a session lifecycle transition broadcast to
// subscribers (channel manager, caches, notification store).
type EventKind string

// Lifecycle event kinds.
const (
	EventAuthenticated   EventKind = "authenticated"
	EventDeauthenticated EventKind = "deauthenticated"
)

// DeauthReason explains why a session ended.
type DeauthReason string

// Deauthentication reasons.
const (
	ReasonLogout          DeauthReason = "logout"
	ReasonSessionExpired  DeauthReason = "session_expired"
	ReasonPasswordChanged DeauthReason = "password_changed"
	ReasonCheckFailed     DeauthReason = "check_failed"
)

// LifecycleEvent is the payload delivered to lifecycle subscribers.
// User is set for EventAuthenticated, Reason for EventDeauthenticated.
type LifecycleEvent struct {
	Kind   EventKind
	User   *User
	Reason DeauthReason
}

// Event log levels, stored with each event_log row.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// Event log categories.
const (
	EventCategoryAuth    = "auth"
	EventCategoryChannel = "channel"
	EventCategorySystem  = "system"
)
