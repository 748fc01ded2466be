// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/localbasket/marketsync/internal/model"
)

// Queries wraps the state database with typed accessors.
type Queries struct {
	db *sql.DB
}

// New creates a Queries instance over the given database.
func New(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// SessionState is the whitelisted session subset persisted across restarts.
type SessionState struct {
	IsAuthenticated bool
	User            *model.User
	Lifecycle       model.LifecycleStatus
	UpdatedAt       time.Time
}

// SaveSessionState upserts the single persisted session row.
func (q *Queries) SaveSessionState(ctx context.Context, s SessionState) error {
	userJSON := ""
	if s.User != nil {
		b, err := json.Marshal(s.User)
		if err != nil {
			return fmt.Errorf("encoding user: %w", err)
		}
		userJSON = string(b)
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO session_state (id, is_authenticated, user_json, lifecycle_status, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			is_authenticated = excluded.is_authenticated,
			user_json = excluded.user_json,
			lifecycle_status = excluded.lifecycle_status,
			updated_at = excluded.updated_at`,
		s.IsAuthenticated, userJSON, string(s.Lifecycle), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving session state: %w", err)
	}
	return nil
}

// LoadSessionState reads the persisted session subset. When no row exists
// (first run) it returns the zero state with Lifecycle idle.
func (q *Queries) LoadSessionState(ctx context.Context) (SessionState, error) {
	var (
		s         SessionState
		userJSON  string
		lifecycle string
	)
	err := q.db.QueryRowContext(ctx, `
		SELECT is_authenticated, user_json, lifecycle_status, updated_at
		FROM session_state WHERE id = 1`).
		Scan(&s.IsAuthenticated, &userJSON, &lifecycle, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionState{Lifecycle: model.StatusIdle}, nil
	}
	if err != nil {
		return SessionState{}, fmt.Errorf("loading session state: %w", err)
	}

	s.Lifecycle = model.LifecycleStatus(lifecycle)
	if userJSON != "" {
		var u model.User
		if err := json.Unmarshal([]byte(userJSON), &u); err != nil {
			return SessionState{}, fmt.Errorf("decoding persisted user: %w", err)
		}
		s.User = &u
	}
	return s, nil
}

// ClearSessionState resets the persisted row to the anonymous state.
func (q *Queries) ClearSessionState(ctx context.Context) error {
	return q.SaveSessionState(ctx, SessionState{Lifecycle: model.StatusIdle})
}

// CreateEventParams describes a new event log entry.
type CreateEventParams struct {
	Level     string
	Category  string
	Message   string
	Metadata  string
	CreatedAt time.Time
}

// CreateEvent appends an entry to the local event log.
func (q *Queries) CreateEvent(ctx context.Context, p CreateEventParams) error {
	if p.Metadata == "" {
		p.Metadata = "{}"
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO event_log (level, category, message, metadata, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.Level, p.Category, p.Message, p.Metadata, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating event: %w", err)
	}
	return nil
}

// Event is a stored event log entry.
type Event struct {
	ID        int64
	Level     string
	Category  string
	Message   string
	Metadata  string
	CreatedAt time.Time
}

// RecentEvents returns the newest event log entries, newest first.
func (q *Queries) RecentEvents(ctx context.Context, limit int) ([]Event, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, level, category, message, metadata, created_at
		FROM event_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Level, &e.Category, &e.Message, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// DeleteOldEvents removes event log entries created before the cutoff.
func (q *Queries) DeleteOldEvents(ctx context.Context, cutoff time.Time) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM event_log WHERE created_at < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("pruning event log: %w", err)
	}
	return nil
}
