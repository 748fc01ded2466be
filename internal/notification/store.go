// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package notification keeps the in-memory notification list and unread
// counter in sync with the server: historical pages come from the REST
// collection, real-time entries arrive through the channel sink.
package notification

import (
	"context"
	"log/slog"
	"sync"

	"github.com/localbasket/marketsync/internal/api"
	"github.com/localbasket/marketsync/internal/model"
)

// API is the slice of the REST client the store depends on.
type API interface {
	Notifications(ctx context.Context, page, size int) (*api.NotificationPage, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
	UnreadCount(ctx context.Context) (int, error)
}

// Store holds notifications newest-first. The unread counter is adjusted
// locally on ingest and read transitions, and reconciled against the server's
// authoritative count whenever RefreshUnreadCount runs.
type Store struct {
	api      API
	pageSize int
	logger   *slog.Logger

	mu         sync.Mutex
	items      []model.Notification
	unread     int
	totalItems int
	hasMore    bool
}

// NewStore creates an empty store.
func NewStore(client API, pageSize int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{api: client, pageSize: pageSize, logger: logger}
}

// Ingest adds a real-time notification at the head of the list, preserving
// newest-first order without resorting. Entries already present by ID are
// ignored, so a push racing a page fetch cannot duplicate.
func (s *Store) Ingest(n model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(n.ID) >= 0 {
		return
	}
	s.items = append([]model.Notification{n}, s.items...)
	s.totalItems++
	if !n.Read {
		s.unread++
	}
}

// FetchPage loads one historical page. Page zero replaces the list; later
// pages append, skipping entries already present by ID.
func (s *Store) FetchPage(ctx context.Context, page int) error {
	resp, err := s.api.Notifications(ctx, page, s.pageSize)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if resp.Page == 0 {
		s.items = resp.Items
	} else {
		for _, n := range resp.Items {
			if s.indexOf(n.ID) < 0 {
				s.items = append(s.items, n)
			}
		}
	}
	s.totalItems = resp.TotalItems
	s.hasMore = resp.Page+1 < resp.TotalPages
	return nil
}

// MarkRead marks one notification read on the server, then mirrors the
// transition locally. Marking an already-read entry changes nothing, and the
// counter never goes below zero.
func (s *Store) MarkRead(ctx context.Context, id string) error {
	if err := s.api.MarkRead(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(id); i >= 0 && !s.items[i].Read {
		s.items[i].Read = true
		if s.unread > 0 {
			s.unread--
		}
	}
	return nil
}

// MarkAllRead marks every notification read on the server and locally.
func (s *Store) MarkAllRead(ctx context.Context) error {
	if err := s.api.MarkAllRead(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		s.items[i].Read = true
	}
	s.unread = 0
	return nil
}

// RefreshUnreadCount replaces the local counter with the server's value.
func (s *Store) RefreshUnreadCount(ctx context.Context) error {
	count, err := s.api.UnreadCount(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.unread = count
	s.mu.Unlock()
	return nil
}

// Refresh reloads the first page and the unread counter.
func (s *Store) Refresh(ctx context.Context) error {
	if err := s.FetchPage(ctx, 0); err != nil {
		return err
	}
	return s.RefreshUnreadCount(ctx)
}

// Notifications returns a copy of the current list, newest first.
func (s *Store) Notifications() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Notification, len(s.items))
	copy(out, s.items)
	return out
}

// Unread returns the current unread counter.
func (s *Store) Unread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// HasMore reports whether further historical pages exist.
func (s *Store) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

// TotalItems returns the server-reported collection size plus real-time
// arrivals since the last page fetch.
func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalItems
}

// Reset drops all local notification state.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.unread = 0
	s.totalItems = 0
	s.hasMore = false
}

// HandleLifecycle clears the store when the session ends. Notifications are
// per-user state; nothing may survive into the next session.
func (s *Store) HandleLifecycle(ev model.LifecycleEvent) {
	if ev.Kind == model.EventDeauthenticated {
		s.Reset()
	}
}

// indexOf returns the position of a notification by ID, or -1. Callers hold
// the lock.
func (s *Store) indexOf(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}
