// Airmirror - Airtable to PostgreSQL Mirror for Hackathon Event Portals
// Copyright 2026 Airmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hackbase/airmirror

package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hackbase/airmirror/internal/models"
)

func TestTableStateAcquireRelease(t *testing.T) {
	s := newTableState("events")

	if !s.tryAcquire() {
		t.Fatal("first acquire failed")
	}
	if s.tryAcquire() {
		t.Fatal("second acquire succeeded while held")
	}
	if !s.Running() {
		t.Error("Running() = false while held")
	}

	s.release()
	if s.Running() {
		t.Error("Running() = true after release")
	}
	if !s.tryAcquire() {
		t.Error("acquire after release failed")
	}
}

func TestTableStateConcurrentAcquire(t *testing.T) {
	s := newTableState("events")

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.tryAcquire() {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("%d goroutines acquired the flag, want exactly 1", wins.Load())
	}
}

func TestTableStateFailureStreak(t *testing.T) {
	s := newTableState("events")

	fail := &models.SyncRun{TableName: "events", Status: models.SyncStatusFailure}
	ok := &models.SyncRun{TableName: "events", Status: models.SyncStatusSuccess}
	partial := &models.SyncRun{TableName: "events", Status: models.SyncStatusPartialFailure}

	s.finish(fail)
	s.finish(fail)
	if got := s.Status().ConsecutiveFailures; got != 2 {
		t.Errorf("streak after two failures = %d, want 2", got)
	}

	// partial failure still wrote something; it resets the streak
	s.finish(partial)
	if got := s.Status().ConsecutiveFailures; got != 0 {
		t.Errorf("streak after partial = %d, want 0", got)
	}

	s.finish(fail)
	s.finish(ok)
	if got := s.Status().ConsecutiveFailures; got != 0 {
		t.Errorf("streak after success = %d, want 0", got)
	}
}

func TestTableStateStatusCopiesLastRun(t *testing.T) {
	s := newTableState("events")
	s.finish(&models.SyncRun{TableName: "events", Status: models.SyncStatusSuccess, RecordsWritten: 5})

	status := s.Status()
	status.LastRun.RecordsWritten = 999

	if got := s.Status().LastRun.RecordsWritten; got != 5 {
		t.Errorf("internal lastRun mutated through Status copy: %d", got)
	}
}
