// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localbasket/marketsync/internal/api"
	"github.com/localbasket/marketsync/internal/model"
	"github.com/localbasket/marketsync/internal/testutil"
)

// fakeAPI serves scripted pages and records mutation calls.
type fakeAPI struct {
	pages       map[int]*api.NotificationPage
	pagesErr    error
	markReadErr error
	unreadCount int
	unreadErr   error

	markReadCalls    []string
	markAllReadCalls int
}

func (f *fakeAPI) Notifications(_ context.Context, page, _ int) (*api.NotificationPage, error) {
	if f.pagesErr != nil {
		return nil, f.pagesErr
	}
	p, ok := f.pages[page]
	if !ok {
		return &api.NotificationPage{Page: page}, nil
	}
	return p, nil
}

func (f *fakeAPI) MarkRead(_ context.Context, id string) error {
	if f.markReadErr != nil {
		return f.markReadErr
	}
	f.markReadCalls = append(f.markReadCalls, id)
	return nil
}

func (f *fakeAPI) MarkAllRead(context.Context) error {
	f.markAllReadCalls++
	return nil
}

func (f *fakeAPI) UnreadCount(context.Context) (int, error) {
	if f.unreadErr != nil {
		return 0, f.unreadErr
	}
	return f.unreadCount, nil
}

func entry(id string, ts time.Time, read bool) model.Notification {
	return model.Notification{
		ID:        id,
		Type:      model.NotificationNewOrder,
		Message:   "msg " + id,
		Timestamp: ts,
		Read:      read,
	}
}

func newStore(f *fakeAPI) *Store {
	return NewStore(f, 10, testutil.TestLoggerSilent())
}

func TestIngestPrependsNewestFirst(t *testing.T) {
	s := newStore(&fakeAPI{})
	base := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	s.Ingest(entry("a", base, false))
	s.Ingest(entry("b", base.Add(time.Minute), false))

	got := s.Notifications()
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
	assert.Equal(t, 2, s.Unread())
	assert.Equal(t, 2, s.TotalItems())
}

func TestIngestDuplicateIgnored(t *testing.T) {
	s := newStore(&fakeAPI{})
	n := entry("a", time.Now(), false)

	s.Ingest(n)
	s.Ingest(n)

	assert.Len(t, s.Notifications(), 1)
	assert.Equal(t, 1, s.Unread())
}

func TestIngestReadEntryDoesNotBumpUnread(t *testing.T) {
	s := newStore(&fakeAPI{})
	s.Ingest(entry("a", time.Now(), true))
	assert.Equal(t, 0, s.Unread())
}

func TestFetchPageZeroReplaces(t *testing.T) {
	base := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	f := &fakeAPI{pages: map[int]*api.NotificationPage{
		0: {
			Items:      []model.Notification{entry("x", base.Add(time.Hour), false), entry("y", base, true)},
			Page:       0,
			TotalItems: 2,
			TotalPages: 1,
		},
	}}
	s := newStore(f)
	s.Ingest(entry("stale", base.Add(-time.Hour), false))

	require.NoError(t, s.FetchPage(context.Background(), 0))

	got := s.Notifications()
	require.Len(t, got, 2)
	assert.Equal(t, "x", got[0].ID)
	assert.Equal(t, "y", got[1].ID)
	assert.False(t, s.HasMore())
	assert.Equal(t, 2, s.TotalItems())
}

func TestFetchLaterPageAppendsSkippingDuplicates(t *testing.T) {
	base := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	f := &fakeAPI{pages: map[int]*api.NotificationPage{
		0: {
			Items:      []model.Notification{entry("a", base.Add(2*time.Hour), false), entry("b", base.Add(time.Hour), false)},
			Page:       0,
			TotalItems: 4,
			TotalPages: 2,
		},
		1: {
			// "b" slid onto page 1 because a new entry arrived server-side
			// between the two fetches.
			Items:      []model.Notification{entry("b", base.Add(time.Hour), false), entry("c", base, false)},
			Page:       1,
			TotalItems: 4,
			TotalPages: 2,
		},
	}}
	s := newStore(f)

	require.NoError(t, s.FetchPage(context.Background(), 0))
	assert.True(t, s.HasMore())

	require.NoError(t, s.FetchPage(context.Background(), 1))
	got := s.Notifications()
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].ID, got[1].ID, got[2].ID})
	assert.False(t, s.HasMore())
}

func TestFetchPageErrorLeavesStateUntouched(t *testing.T) {
	f := &fakeAPI{pagesErr: errors.New("api down")}
	s := newStore(f)
	s.Ingest(entry("a", time.Now(), false))

	require.Error(t, s.FetchPage(context.Background(), 0))
	assert.Len(t, s.Notifications(), 1)
	assert.Equal(t, 1, s.Unread())
}

func TestMarkReadDecrementsOnce(t *testing.T) {
	f := &fakeAPI{}
	s := newStore(f)
	s.Ingest(entry("a", time.Now(), false))
	require.Equal(t, 1, s.Unread())

	require.NoError(t, s.MarkRead(context.Background(), "a"))
	assert.Equal(t, 0, s.Unread())
	assert.True(t, s.Notifications()[0].Read)

	// Second mark of the same entry must not go negative.
	require.NoError(t, s.MarkRead(context.Background(), "a"))
	assert.Equal(t, 0, s.Unread())

	assert.Equal(t, []string{"a", "a"}, f.markReadCalls)
}

func TestMarkReadServerErrorKeepsLocalState(t *testing.T) {
	f := &fakeAPI{markReadErr: errors.New("api down")}
	s := newStore(f)
	s.Ingest(entry("a", time.Now(), false))

	require.Error(t, s.MarkRead(context.Background(), "a"))
	assert.Equal(t, 1, s.Unread())
	assert.False(t, s.Notifications()[0].Read)
}

func TestMarkReadUnknownIDLeavesCounter(t *testing.T) {
	f := &fakeAPI{}
	s := newStore(f)
	s.Ingest(entry("a", time.Now(), false))

	// The entry may live on a page that was never fetched; the server call
	// still happens, the local counter waits for the next reconciliation.
	require.NoError(t, s.MarkRead(context.Background(), "elsewhere"))
	assert.Equal(t, 1, s.Unread())
}

func TestMarkAllRead(t *testing.T) {
	f := &fakeAPI{}
	s := newStore(f)
	s.Ingest(entry("a", time.Now(), false))
	s.Ingest(entry("b", time.Now(), false))

	require.NoError(t, s.MarkAllRead(context.Background()))
	assert.Equal(t, 0, s.Unread())
	for _, n := range s.Notifications() {
		assert.True(t, n.Read)
	}
	assert.Equal(t, 1, f.markAllReadCalls)
}

func TestRefreshUnreadCountIsAuthoritative(t *testing.T) {
	f := &fakeAPI{unreadCount: 7}
	s := newStore(f)
	s.Ingest(entry("a", time.Now(), false))

	require.NoError(t, s.RefreshUnreadCount(context.Background()))
	assert.Equal(t, 7, s.Unread())
}

func TestDeauthenticationResetsStore(t *testing.T) {
	s := newStore(&fakeAPI{})
	s.Ingest(entry("a", time.Now(), false))

	s.HandleLifecycle(model.LifecycleEvent{
		Kind:   model.EventDeauthenticated,
		Reason: model.ReasonLogout,
	})

	assert.Empty(t, s.Notifications())
	assert.Equal(t, 0, s.Unread())
	assert.Equal(t, 0, s.TotalItems())
	assert.False(t, s.HasMore())
}

func TestAuthenticationEventDoesNotTouchStore(t *testing.T) {
	s := newStore(&fakeAPI{})
	s.Ingest(entry("a", time.Now(), false))

	s.HandleLifecycle(model.LifecycleEvent{Kind: model.EventAuthenticated})
	assert.Len(t, s.Notifications(), 1)
}
