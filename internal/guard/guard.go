// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package guard implements the per-navigation authorization decision. It is
// a pure function over the session snapshot and a route's allowed-role set;
// rendering and redirecting belong to the caller.
package guard

import (
	"slices"

	"github.com/localbasket/marketsync/internal/model"
)

// Decision is the outcome of a route evaluation.
type Decision int

// Possible decisions. Hold means render nothing until the in-flight identity
// check settles; persisted state must not be trusted for authorization.
const (
	Allow Decision = iota
	Hold
	RedirectLogin
	RedirectUnauthorized
)

// String returns the decision name for logging.
func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Hold:
		return "hold"
	case RedirectLogin:
		return "redirect-login"
	case RedirectUnauthorized:
		return "redirect-unauthorized"
	}
	return "unknown"
}

// Routes the guard redirects to.
const (
	LoginRoute        = "/login"
	UnauthorizedRoute = "/unauthorized"
)

// Role-specific default landing routes used by the inverse guard.
const (
	AdminLanding    = "/admin"
	ProducerLanding = "/producer"
	CustomerLanding = "/account"
)

// Result is a decision plus the redirect target when applicable. ReturnTo
// carries the intended destination so login can resume navigation.
type Result struct {
	Decision   Decision
	RedirectTo string
	ReturnTo   string
}

// Evaluate decides whether the current session may enter a route. An empty
// allowed set marks a public route. intended is the destination being
// navigated to, remembered across a login redirect.
func Evaluate(allowed []model.Role, sess model.Session, intended string) Result {
	if sess.Lifecycle == model.StatusChecking {
		return Result{Decision: Hold}
	}

	if len(allowed) == 0 {
		return Result{Decision: Allow}
	}

	if !sess.IsAuthenticated || sess.User == nil {
		return Result{Decision: RedirectLogin, RedirectTo: LoginRoute, ReturnTo: intended}
	}

	if !slices.Contains(allowed, sess.User.Role) {
		return Result{Decision: RedirectUnauthorized, RedirectTo: UnauthorizedRoute}
	}

	return Result{Decision: Allow}
}

// EvaluateAuthPage is the inverse guard for login/register/forgot-password
// pages: an already-authenticated user is sent to their landing route
// instead of re-entering auth forms. ok is false while the check is in
// flight or when the user may stay.
func EvaluateAuthPage(sess model.Session) (redirect string, ok bool) {
	if sess.Lifecycle == model.StatusChecking {
		return "", false
	}
	if !sess.IsAuthenticated || sess.User == nil {
		return "", false
	}
	return LandingRoute(sess.User.Role), true
}

// LandingRoute returns the role-specific default landing route.
func LandingRoute(role model.Role) string {
	switch role {
	case model.RoleAdmin:
		return AdminLanding
	case model.RoleProducer:
		return ProducerLanding
	default:
		return CustomerLanding
	}
}
