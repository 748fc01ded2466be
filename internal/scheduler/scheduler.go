// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs the client's periodic maintenance jobs: unread
// counter reconciliation, passive session rechecks, and event log pruning.
package scheduler

import (
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// JobInfo is the public view of a registered job, served by the status
// endpoint.
type JobInfo struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	NextRun  time.Time `json:"next_run"`
}

type job struct {
	name     string
	schedule string
	entryID  cron.EntryID
}

// Scheduler wraps a cron instance with named job registration.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger

	mu   sync.Mutex
	jobs []job
}

// New creates a stopped scheduler.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(),
		logger: logger,
	}
}

// AddJob registers fn under a cron schedule (five-field specs or @every
// intervals).
func (s *Scheduler) AddJob(name, schedule string, fn func()) error {
	entryID, err := s.cron.AddFunc(schedule, func() {
		start := time.Now()
		fn()
		s.logger.Debug("scheduled job finished", "job", name, "took", time.Since(start))
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.jobs = append(s.jobs, job{name: name, schedule: schedule, entryID: entryID})
	s.mu.Unlock()
	return nil
}

// Start begins running registered jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.mu.Lock()
	count := len(s.jobs)
	s.mu.Unlock()
	s.logger.Info("scheduler started", "jobs", count)
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// Jobs returns the registered jobs with their next run times.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		info := JobInfo{Name: j.name, Schedule: j.schedule}
		if entry := s.cron.Entry(j.entryID); entry.ID == j.entryID {
			info.NextRun = entry.Next
		}
		out = append(out, info)
	}
	return out
}
