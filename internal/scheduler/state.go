// Airmirror - Airtable to PostgreSQL Mirror for Hackathon Event Portals
// Copyright 2026 Airmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hackbase/airmirror

package scheduler

import (
	"sync"
	"sync/atomic"

	"github.com/hackbase/airmirror/internal/models"
)

// TableState is the per-table cursor and mutual-exclusion token. The
// running flag is a single atomic check-and-set: scheduled and manual
// triggers race on it, losers are rejected rather than queued. The
// scheduler is the only mutator of everything else in here.
type TableState struct {
	table   string
	running atomic.Bool

	mu                  sync.RWMutex
	lastRun             *models.SyncRun
	consecutiveFailures int
}

func newTableState(table string) *TableState {
	return &TableState{table: table}
}

// tryAcquire attempts to claim the running flag. Returns false if a cycle
// is already in flight for this table.
func (s *TableState) tryAcquire() bool {
	return s.running.CompareAndSwap(false, true)
}

// release clears the running flag. Called exactly once per acquired cycle,
// including the timeout and panic paths.
func (s *TableState) release() {
	s.running.Store(false)
}

// Running reports whether a cycle is currently in flight.
func (s *TableState) Running() bool {
	return s.running.Load()
}

// finish records a terminal run and updates the failure streak.
func (s *TableState) finish(run *models.SyncRun) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastRun = run
	if run.Status == models.SyncStatusFailure {
		s.consecutiveFailures++
	} else {
		s.consecutiveFailures = 0
	}
}

// Status returns the health view of this table.
func (s *TableState) Status() models.TableStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last *models.SyncRun
	if s.lastRun != nil {
		copied := *s.lastRun
		last = &copied
	}
	return models.TableStatus{
		TableName:           s.table,
		Running:             s.running.Load(),
		ConsecutiveFailures: s.consecutiveFailures,
		LastRun:             last,
	}
}
