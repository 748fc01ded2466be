// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session owns the client's authentication state: login, logout,
// the one-time bootstrap reconciliation against the server, and the typed
// lifecycle events other components subscribe to.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/localbasket/marketsync/internal/api"
	"github.com/localbasket/marketsync/internal/model"
	"github.com/localbasket/marketsync/internal/store"
)

// Typed operation errors.
var (
	// ErrCheckInFlight enforces the at-most-one-in-flight invariant for
	// identity checks.
	ErrCheckInFlight = errors.New("an identity check is already in flight")

	ErrPasswordTooShort = errors.New("new password must be at least 8 characters")
)

// User-facing error messages recorded on the session.
const (
	msgInvalidCredentials = "Invalid email or password"
	msgLoginFailed        = "Login failed, please try again"
	msgSessionExpired     = "Your session has expired, please sign in again"
)

// IdentityAPI is the remote identity collaborator.
type IdentityAPI interface {
	Login(ctx context.Context, email, password string) error
	Logout(ctx context.Context) error
	Me(ctx context.Context, passive bool) (*model.User, error)
	ChangePassword(ctx context.Context, oldPassword, newPassword string) error
}

// StateStore persists the whitelisted session subset across restarts.
// *store.Queries implements it.
type StateStore interface {
	LoadSessionState(ctx context.Context) (store.SessionState, error)
	SaveSessionState(ctx context.Context, s store.SessionState) error
	ClearSessionState(ctx context.Context) error
}

// Subscriber receives lifecycle events. Delivery is synchronous and in
// subscription order, so wiring order decides teardown order on logout.
type Subscriber func(model.LifecycleEvent)

// Manager is the single source of truth for the client session.
type Manager struct {
	api    IdentityAPI
	state  StateStore
	logger *slog.Logger

	mu      sync.Mutex
	session model.Session
	subs    []Subscriber

	// bootstrapped is the one-shot bootstrap guard. It lives outside the
	// persisted state on purpose: a rehydrated session must not suppress the
	// mandatory server reconciliation.
	bootstrapped atomic.Bool
}

// NewManager creates a Manager in the initial anonymous state.
// Call Rehydrate before serving to load the persisted session subset.
func NewManager(identityAPI IdentityAPI, state StateStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		api:     identityAPI,
		state:   state,
		logger:  logger,
		session: model.NewSession(),
	}
}

// Rehydrate loads the persisted session subset. A lifecycle persisted as
// "checking" (crash mid-check) is normalized to idle so the route guard
// cannot hold forever on stale state.
func (m *Manager) Rehydrate(ctx context.Context) error {
	s, err := m.state.LoadSessionState(ctx)
	if err != nil {
		return fmt.Errorf("rehydrating session: %w", err)
	}

	lifecycle := s.Lifecycle
	if lifecycle == model.StatusChecking || lifecycle == "" {
		lifecycle = model.StatusIdle
	}

	// Persisted state is an optimistic cache pending bootstrap confirmation,
	// but the core invariant still holds: authenticated implies user.
	if s.User == nil {
		s.IsAuthenticated = false
	}

	m.mu.Lock()
	m.session = model.Session{
		User:            s.User,
		IsAuthenticated: s.IsAuthenticated,
		Lifecycle:       lifecycle,
	}
	m.mu.Unlock()
	return nil
}

// Subscribe registers a lifecycle subscriber. Not safe to call concurrently
// with operations; subscribe during wiring.
func (m *Manager) Subscribe(fn Subscriber) {
	m.mu.Lock()
	m.subs = append(m.subs, fn)
	m.mu.Unlock()
}

// Snapshot returns a copy of the current session.
func (m *Manager) Snapshot() model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Authenticated reports the live authentication flag. The channel manager
// consults this before each reconnect attempt.
func (m *Manager) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.IsAuthenticated
}

// Login authenticates against the remote API and, on success, broadcasts
// EventAuthenticated. Navigation after login is the caller's responsibility.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	if err := m.beginCheck(ctx); err != nil {
		return err
	}

	if err := m.api.Login(ctx, email, password); err != nil {
		if errors.Is(err, api.ErrInvalidCredentials) {
			m.failCheck(ctx, msgInvalidCredentials)
		} else {
			m.failCheck(ctx, msgLoginFailed)
		}
		return err
	}

	user, err := m.api.Me(ctx, false)
	if err != nil {
		m.failCheck(ctx, msgLoginFailed)
		return err
	}

	m.mu.Lock()
	m.session = model.Session{
		User:            user,
		IsAuthenticated: true,
		Lifecycle:       model.StatusReady,
	}
	m.mu.Unlock()
	m.persist(ctx)

	m.logger.Info("login succeeded", "category", model.EventCategoryAuth, "role", string(user.Role))
	m.broadcast(model.LifecycleEvent{Kind: model.EventAuthenticated, User: user})
	return nil
}

// Logout clears the local session unconditionally and never fails from the
// caller's perspective. Ordering: the deauthenticated broadcast runs first
// (channel teardown before cache purges, per subscription order), then local
// state is cleared and persisted, then the remote logout call is issued.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	if m.session.Lifecycle == model.StatusChecking {
		m.mu.Unlock()
		return ErrCheckInFlight
	}
	m.mu.Unlock()

	m.broadcast(model.LifecycleEvent{Kind: model.EventDeauthenticated, Reason: model.ReasonLogout})

	m.mu.Lock()
	m.session = model.NewSession()
	m.mu.Unlock()
	if err := m.state.ClearSessionState(ctx); err != nil {
		m.logger.Warn("clearing persisted session failed", "category", model.EventCategoryAuth, "error", err.Error())
	}

	if err := m.api.Logout(ctx); err != nil {
		m.logger.Warn("remote logout failed, local session cleared anyway",
			"category", model.EventCategoryAuth, "error", err.Error())
	}
	return nil
}

// Bootstrap reconciles the rehydrated session against the server. It runs at
// most once per process lifetime; later calls return the current snapshot.
// Being unauthenticated is a valid outcome, never an error.
func (m *Manager) Bootstrap(ctx context.Context) model.Session {
	if !m.bootstrapped.CompareAndSwap(false, true) {
		return m.Snapshot()
	}

	m.mu.Lock()
	wasAuthenticated := m.session.IsAuthenticated
	m.session.Lifecycle = model.StatusChecking
	m.mu.Unlock()
	m.persist(ctx)

	user, err := m.api.Me(ctx, true)
	switch {
	case err == nil:
		m.mu.Lock()
		m.session = model.Session{
			User:            user,
			IsAuthenticated: true,
			Lifecycle:       model.StatusReady,
		}
		m.mu.Unlock()
		m.persist(ctx)
		m.broadcast(model.LifecycleEvent{Kind: model.EventAuthenticated, User: user})

	case errors.Is(err, api.ErrUnauthenticated):
		m.mu.Lock()
		m.session = model.Session{Lifecycle: model.StatusReady}
		m.mu.Unlock()
		m.persist(ctx)
		if wasAuthenticated {
			m.logger.Warn("persisted session no longer recognized by server",
				"category", model.EventCategoryAuth)
			m.broadcast(model.LifecycleEvent{Kind: model.EventDeauthenticated, Reason: model.ReasonSessionExpired})
		}

	default:
		m.mu.Lock()
		m.session = model.Session{Lifecycle: model.StatusFailed, LastError: msgLoginFailed}
		m.mu.Unlock()
		m.persist(ctx)
		m.logger.Error("bootstrap identity check failed", "category", model.EventCategoryAuth, "error", err.Error())
		if wasAuthenticated {
			m.broadcast(model.LifecycleEvent{Kind: model.EventDeauthenticated, Reason: model.ReasonCheckFailed})
		}
	}

	return m.Snapshot()
}

// Recheck runs a passive identity check for an authenticated session. It
// detects sessions expired mid-use; transient failures keep the session.
func (m *Manager) Recheck(ctx context.Context) {
	m.mu.Lock()
	if !m.session.IsAuthenticated || m.session.Lifecycle == model.StatusChecking {
		m.mu.Unlock()
		return
	}
	m.session.Lifecycle = model.StatusChecking
	m.mu.Unlock()

	user, err := m.api.Me(ctx, true)
	switch {
	case err == nil:
		m.mu.Lock()
		m.session = model.Session{
			User:            user,
			IsAuthenticated: true,
			Lifecycle:       model.StatusReady,
		}
		m.mu.Unlock()
		m.persist(ctx)

	case errors.Is(err, api.ErrUnauthenticated):
		m.mu.Lock()
		m.session = model.Session{Lifecycle: model.StatusReady, LastError: msgSessionExpired}
		m.mu.Unlock()
		m.persist(ctx)
		m.logger.Warn("session expired mid-use", "category", model.EventCategoryAuth)
		m.broadcast(model.LifecycleEvent{Kind: model.EventDeauthenticated, Reason: model.ReasonSessionExpired})

	default:
		// Transient failure: keep the session, settle the lifecycle.
		m.mu.Lock()
		m.session.Lifecycle = model.StatusReady
		m.mu.Unlock()
		m.logger.Warn("session recheck failed", "category", model.EventCategoryAuth, "error", err.Error())
	}
}

// ChangePassword changes the password and, on success, invalidates the local
// session: the server session is gone, so the client must not keep
// presenting itself as authenticated. No remote logout call follows.
func (m *Manager) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	if len(newPassword) < 8 {
		return ErrPasswordTooShort
	}
	if err := m.beginCheck(ctx); err != nil {
		return err
	}

	if err := m.api.ChangePassword(ctx, oldPassword, newPassword); err != nil {
		m.failCheck(ctx, "Password change failed")
		return err
	}

	m.broadcast(model.LifecycleEvent{Kind: model.EventDeauthenticated, Reason: model.ReasonPasswordChanged})

	m.mu.Lock()
	m.session = model.NewSession()
	m.mu.Unlock()
	if err := m.state.ClearSessionState(ctx); err != nil {
		m.logger.Warn("clearing persisted session failed", "category", model.EventCategoryAuth, "error", err.Error())
	}
	return nil
}

// beginCheck transitions idle/ready/failed -> checking, rejecting reentrancy.
func (m *Manager) beginCheck(ctx context.Context) error {
	m.mu.Lock()
	if m.session.Lifecycle == model.StatusChecking {
		m.mu.Unlock()
		return ErrCheckInFlight
	}
	m.session.Lifecycle = model.StatusChecking
	m.session.LastError = ""
	m.mu.Unlock()
	m.persist(ctx)
	return nil
}

// failCheck settles a failed check without touching identity fields.
func (m *Manager) failCheck(ctx context.Context, message string) {
	m.mu.Lock()
	m.session.Lifecycle = model.StatusFailed
	m.session.LastError = message
	m.mu.Unlock()
	m.persist(ctx)
}

// persist writes the whitelisted subset (never LastError) to the state store.
func (m *Manager) persist(ctx context.Context) {
	m.mu.Lock()
	s := store.SessionState{
		IsAuthenticated: m.session.IsAuthenticated,
		User:            m.session.User,
		Lifecycle:       m.session.Lifecycle,
	}
	m.mu.Unlock()

	if err := m.state.SaveSessionState(ctx, s); err != nil {
		m.logger.Warn("persisting session failed", "category", model.EventCategoryAuth, "error", err.Error())
	}
}

// broadcast delivers an event to subscribers synchronously, in subscription
// order, outside the state lock.
func (m *Manager) broadcast(ev model.LifecycleEvent) {
	m.mu.Lock()
	subs := slices.Clone(m.subs)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}
