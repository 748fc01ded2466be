// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/localbasket/marketsync/internal/api"
	"github.com/localbasket/marketsync/internal/model"
	"github.com/localbasket/marketsync/internal/store"
	"github.com/localbasket/marketsync/internal/testutil"
)

const (
	testWait = 2 * time.Second
	testTick = 5 * time.Millisecond
)

// fakeAPI is a scriptable IdentityAPI double.
type fakeAPI struct {
	mu sync.Mutex

	loginErr  error
	loginGate chan struct{} // when set, Login blocks until closed
	logoutErr error
	meUser    *model.User
	meErr     error
	pwErr     error

	meCalls     int
	logoutCalls int
	onLogout    func()
}

func (f *fakeAPI) Login(ctx context.Context, email, password string) error {
	if f.loginGate != nil {
		<-f.loginGate
	}
	return f.loginErr
}

func (f *fakeAPI) Logout(ctx context.Context) error {
	f.mu.Lock()
	f.logoutCalls++
	f.mu.Unlock()
	if f.onLogout != nil {
		f.onLogout()
	}
	return f.logoutErr
}

func (f *fakeAPI) Me(ctx context.Context, passive bool) (*model.User, error) {
	f.mu.Lock()
	f.meCalls++
	f.mu.Unlock()
	return f.meUser, f.meErr
}

func (f *fakeAPI) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	return f.pwErr
}

func customer() *model.User {
	return &model.User{ID: 1, Email: "a@b.com", Role: model.RoleCustomer, DisplayName: "Ada"}
}

func newTestManager(t *testing.T, fake *fakeAPI) (*Manager, *store.Queries) {
	t.Helper()
	q := store.New(testutil.TestDB(t))
	m := NewManager(fake, q, testutil.TestLoggerSilent())
	require.NoError(t, m.Rehydrate(context.Background()))
	return m, q
}

// recorder collects lifecycle events in delivery order.
type recorder struct {
	mu     sync.Mutex
	events []model.LifecycleEvent
}

func (r *recorder) sub(ev model.LifecycleEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) all() []model.LifecycleEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.LifecycleEvent(nil), r.events...)
}

func TestBootstrapRunsAtMostOnce(t *testing.T) {
	fake := &fakeAPI{meErr: api.ErrUnauthenticated}
	m, _ := newTestManager(t, fake)
	ctx := context.Background()

	m.Bootstrap(ctx)
	m.Bootstrap(ctx)
	m.Bootstrap(ctx)

	require.Equal(t, 1, fake.meCalls, "identity check must run at most once per lifetime")
}

func TestBootstrapUnauthenticatedIsNotAnError(t *testing.T) {
	fake := &fakeAPI{meErr: api.ErrUnauthenticated}
	m, _ := newTestManager(t, fake)
	rec := &recorder{}
	m.Subscribe(rec.sub)

	s := m.Bootstrap(context.Background())

	require.False(t, s.IsAuthenticated)
	require.Nil(t, s.User)
	require.Equal(t, model.StatusReady, s.Lifecycle)
	require.Empty(t, s.LastError)
	require.Empty(t, rec.all(), "anonymous bootstrap must not broadcast")
}

func TestBootstrapSuccess(t *testing.T) {
	fake := &fakeAPI{meUser: customer()}
	m, q := newTestManager(t, fake)
	rec := &recorder{}
	m.Subscribe(rec.sub)

	s := m.Bootstrap(context.Background())

	require.True(t, s.IsAuthenticated)
	require.Equal(t, model.RoleCustomer, s.User.Role)
	require.Equal(t, model.StatusReady, s.Lifecycle)

	events := rec.all()
	require.Len(t, events, 1)
	require.Equal(t, model.EventAuthenticated, events[0].Kind)

	persisted, err := q.LoadSessionState(context.Background())
	require.NoError(t, err)
	require.True(t, persisted.IsAuthenticated)
	require.Equal(t, model.StatusReady, persisted.Lifecycle)
}

func TestBootstrapDetectsExpiredPersistedSession(t *testing.T) {
	fake := &fakeAPI{meErr: api.ErrUnauthenticated}
	m, q := newTestManager(t, fake)

	// Simulate a prior run that persisted an authenticated session.
	require.NoError(t, q.SaveSessionState(context.Background(), store.SessionState{
		IsAuthenticated: true,
		User:            customer(),
		Lifecycle:       model.StatusReady,
	}))
	require.NoError(t, m.Rehydrate(context.Background()))
	rec := &recorder{}
	m.Subscribe(rec.sub)

	s := m.Bootstrap(context.Background())

	require.False(t, s.IsAuthenticated)
	require.Equal(t, model.StatusReady, s.Lifecycle)

	events := rec.all()
	require.Len(t, events, 1)
	require.Equal(t, model.EventDeauthenticated, events[0].Kind)
	require.Equal(t, model.ReasonSessionExpired, events[0].Reason)
}

func TestBootstrapGenericFailureClearsUser(t *testing.T) {
	fake := &fakeAPI{meErr: errors.New("connection refused")}
	m, q := newTestManager(t, fake)

	require.NoError(t, q.SaveSessionState(context.Background(), store.SessionState{
		IsAuthenticated: true,
		User:            customer(),
		Lifecycle:       model.StatusReady,
	}))
	require.NoError(t, m.Rehydrate(context.Background()))

	s := m.Bootstrap(context.Background())

	require.False(t, s.IsAuthenticated)
	require.Nil(t, s.User)
	require.Equal(t, model.StatusFailed, s.Lifecycle)
	require.NotEmpty(t, s.LastError)
}

func TestLoginScenario(t *testing.T) {
	fake := &fakeAPI{meUser: customer()}
	m, _ := newTestManager(t, fake)
	rec := &recorder{}
	m.Subscribe(rec.sub)

	require.NoError(t, m.Login(context.Background(), "a@b.com", "x"))

	s := m.Snapshot()
	require.True(t, s.IsAuthenticated)
	require.Equal(t, model.RoleCustomer, s.User.Role)
	require.Equal(t, model.StatusReady, s.Lifecycle)

	events := rec.all()
	require.Len(t, events, 1)
	require.Equal(t, model.EventAuthenticated, events[0].Kind)
	require.Equal(t, "a@b.com", events[0].User.Email)
}

func TestLoginInvalidCredentials(t *testing.T) {
	fake := &fakeAPI{loginErr: api.ErrInvalidCredentials}
	m, _ := newTestManager(t, fake)
	rec := &recorder{}
	m.Subscribe(rec.sub)

	err := m.Login(context.Background(), "a@b.com", "wrong")
	require.ErrorIs(t, err, api.ErrInvalidCredentials)

	s := m.Snapshot()
	require.False(t, s.IsAuthenticated)
	require.Equal(t, model.StatusFailed, s.Lifecycle)
	require.Equal(t, "Invalid email or password", s.LastError)
	require.Empty(t, rec.all())
}

func TestLoginGenericFailureMessage(t *testing.T) {
	fake := &fakeAPI{loginErr: errors.New("gateway timeout")}
	m, _ := newTestManager(t, fake)

	require.Error(t, m.Login(context.Background(), "a@b.com", "x"))

	s := m.Snapshot()
	require.Equal(t, model.StatusFailed, s.Lifecycle)
	require.Equal(t, "Login failed, please try again", s.LastError)
}

func TestLoginRejectedWhileCheckInFlight(t *testing.T) {
	gate := make(chan struct{})
	fake := &fakeAPI{loginGate: gate, meUser: customer()}
	m, _ := newTestManager(t, fake)

	done := make(chan error, 1)
	go func() { done <- m.Login(context.Background(), "a@b.com", "x") }()

	// Wait for the first login to hold the checking state.
	require.Eventually(t, func() bool {
		return m.Snapshot().Lifecycle == model.StatusChecking
	}, testWait, testTick)

	require.ErrorIs(t, m.Login(context.Background(), "a@b.com", "x"), ErrCheckInFlight)
	require.ErrorIs(t, m.Logout(context.Background()), ErrCheckInFlight)

	close(gate)
	require.NoError(t, <-done)
}

func TestLogoutIsLocallyUnconditional(t *testing.T) {
	var snapshotAtRemoteLogout model.Session
	fake := &fakeAPI{meUser: customer(), logoutErr: errors.New("network down")}
	m, q := newTestManager(t, fake)
	fake.onLogout = func() { snapshotAtRemoteLogout = m.Snapshot() }

	ctx := context.Background()
	require.NoError(t, m.Login(ctx, "a@b.com", "x"))

	// Remote failure must not surface and must not keep local state.
	require.NoError(t, m.Logout(ctx))

	s := m.Snapshot()
	require.False(t, s.IsAuthenticated)
	require.Nil(t, s.User)
	require.Equal(t, model.StatusIdle, s.Lifecycle)

	// Remote call ordered after the local clear.
	require.Equal(t, 1, fake.logoutCalls)
	require.False(t, snapshotAtRemoteLogout.IsAuthenticated)

	persisted, err := q.LoadSessionState(ctx)
	require.NoError(t, err)
	require.False(t, persisted.IsAuthenticated)
	require.Nil(t, persisted.User)
}

func TestLogoutBroadcastOrder(t *testing.T) {
	fake := &fakeAPI{meUser: customer()}
	m, _ := newTestManager(t, fake)

	var order []string
	m.Subscribe(func(ev model.LifecycleEvent) {
		if ev.Kind == model.EventDeauthenticated {
			order = append(order, "channel")
		}
	})
	m.Subscribe(func(ev model.LifecycleEvent) {
		if ev.Kind == model.EventDeauthenticated {
			order = append(order, "caches")
		}
	})

	ctx := context.Background()
	require.NoError(t, m.Login(ctx, "a@b.com", "x"))
	require.NoError(t, m.Logout(ctx))

	require.Equal(t, []string{"channel", "caches"}, order,
		"channel teardown must run before cache purges")
}

func TestRecheckDetectsExpiry(t *testing.T) {
	fake := &fakeAPI{meUser: customer()}
	m, _ := newTestManager(t, fake)
	ctx := context.Background()
	require.NoError(t, m.Login(ctx, "a@b.com", "x"))

	rec := &recorder{}
	m.Subscribe(rec.sub)
	fake.meUser = nil
	fake.meErr = api.ErrUnauthenticated

	m.Recheck(ctx)

	s := m.Snapshot()
	require.False(t, s.IsAuthenticated)
	require.Equal(t, "Your session has expired, please sign in again", s.LastError)

	events := rec.all()
	require.Len(t, events, 1)
	require.Equal(t, model.ReasonSessionExpired, events[0].Reason)
}

func TestRecheckKeepsSessionOnTransientFailure(t *testing.T) {
	fake := &fakeAPI{meUser: customer()}
	m, _ := newTestManager(t, fake)
	ctx := context.Background()
	require.NoError(t, m.Login(ctx, "a@b.com", "x"))

	fake.meUser = nil
	fake.meErr = errors.New("timeout")

	m.Recheck(ctx)

	s := m.Snapshot()
	require.True(t, s.IsAuthenticated, "transient recheck failure must not log the user out")
	require.Equal(t, model.StatusReady, s.Lifecycle)
}

func TestRecheckSkipsAnonymousSession(t *testing.T) {
	fake := &fakeAPI{meErr: api.ErrUnauthenticated}
	m, _ := newTestManager(t, fake)

	m.Recheck(context.Background())

	require.Zero(t, fake.meCalls, "anonymous sessions are not rechecked")
}

func TestChangePasswordInvalidatesSession(t *testing.T) {
	fake := &fakeAPI{meUser: customer()}
	m, _ := newTestManager(t, fake)
	ctx := context.Background()
	require.NoError(t, m.Login(ctx, "a@b.com", "x"))

	rec := &recorder{}
	m.Subscribe(rec.sub)

	require.NoError(t, m.ChangePassword(ctx, "oldpassword", "newpassword"))

	s := m.Snapshot()
	require.False(t, s.IsAuthenticated)
	require.Nil(t, s.User)

	events := rec.all()
	require.Len(t, events, 1)
	require.Equal(t, model.ReasonPasswordChanged, events[0].Reason)

	// Password change must not hit the logout endpoint: the server session
	// is already invalid.
	require.Zero(t, fake.logoutCalls)
}

func TestChangePasswordValidation(t *testing.T) {
	fake := &fakeAPI{}
	m, _ := newTestManager(t, fake)

	err := m.ChangePassword(context.Background(), "oldpassword", "short")
	require.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestChangePasswordRemoteFailureKeepsSession(t *testing.T) {
	fake := &fakeAPI{meUser: customer()}
	m, _ := newTestManager(t, fake)
	ctx := context.Background()
	require.NoError(t, m.Login(ctx, "a@b.com", "x"))

	fake.pwErr = errors.New("wrong old password")
	require.Error(t, m.ChangePassword(ctx, "bad", "newpassword"))

	s := m.Snapshot()
	require.True(t, s.IsAuthenticated, "failed password change keeps the session")
	require.Equal(t, model.StatusFailed, s.Lifecycle)
}

func TestRehydrateNormalizesCheckingToIdle(t *testing.T) {
	fake := &fakeAPI{}
	q := store.New(testutil.TestDB(t))
	ctx := context.Background()

	require.NoError(t, q.SaveSessionState(ctx, store.SessionState{
		IsAuthenticated: true,
		User:            customer(),
		Lifecycle:       model.StatusChecking,
	}))

	m := NewManager(fake, q, testutil.TestLoggerSilent())
	require.NoError(t, m.Rehydrate(ctx))

	s := m.Snapshot()
	require.Equal(t, model.StatusIdle, s.Lifecycle)
	require.True(t, s.IsAuthenticated, "identity survives rehydration pending bootstrap")
}

func TestRehydrateDropsAuthenticatedWithoutUser(t *testing.T) {
	fake := &fakeAPI{}
	q := store.New(testutil.TestDB(t))
	ctx := context.Background()

	require.NoError(t, q.SaveSessionState(ctx, store.SessionState{
		IsAuthenticated: true,
		User:            nil,
		Lifecycle:       model.StatusReady,
	}))

	m := NewManager(fake, q, testutil.TestLoggerSilent())
	require.NoError(t, m.Rehydrate(ctx))

	require.False(t, m.Snapshot().IsAuthenticated)
}
