// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"testing"

	"github.com/localbasket/marketsync/internal/testutil"
)

func TestAddJobAndList(t *testing.T) {
	s := New(testutil.TestLoggerSilent())

	if err := s.AddJob("unread-resync", "* * * * *", func() {}); err != nil {
		t.Fatalf("AddJob failed: %v", err)
	}
	if err := s.AddJob("event-log-prune", "0 3 * * *", func() {}); err != nil {
		t.Fatalf("AddJob failed: %v", err)
	}

	jobs := s.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("Jobs() returned %d entries, want 2", len(jobs))
	}
	if jobs[0].Name != "unread-resync" || jobs[0].Schedule != "* * * * *" {
		t.Errorf("jobs[0] = %+v", jobs[0])
	}
}

func TestAddJobInvalidSchedule(t *testing.T) {
	s := New(testutil.TestLoggerSilent())
	if err := s.AddJob("broken", "not a schedule", func() {}); err == nil {
		t.Error("expected error for invalid schedule")
	}
}

func TestStartStop(t *testing.T) {
	s := New(testutil.TestLoggerSilent())
	if err := s.AddJob("noop", "* * * * *", func() {}); err != nil {
		t.Fatalf("AddJob failed: %v", err)
	}

	s.Start()
	jobs := s.Jobs()
	if len(jobs) != 1 || jobs[0].NextRun.IsZero() {
		t.Errorf("expected a next run time after start, got %+v", jobs)
	}
	s.Stop()
}
