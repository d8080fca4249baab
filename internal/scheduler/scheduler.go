// Airmirror - Airtable to PostgreSQL Mirror for Hackathon Event Portals
// Copyright 2026 Airmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hackbase/airmirror

// Package scheduler drives the periodic Airtable reconciliation: one
// independent timer per mirrored table, at most one cycle in flight per
// table at any instant, outcomes recorded in the sync ledger.
//
// State machine per table: idle -> running -> {success | partial_failure |
// failure} -> idle. A trigger against a running table is rejected, not
// queued. One table's failure never halts another table's schedule;
// cycle-level errors (source unavailable, timeout, panic) are caught here
// and downgraded to failure runs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackbase/airmirror/internal/config"
	"github.com/hackbase/airmirror/internal/logging"
	"github.com/hackbase/airmirror/internal/metrics"
	"github.com/hackbase/airmirror/internal/models"
	"github.com/hackbase/airmirror/internal/source"
)

// SourceClient fetches complete table snapshots from the system-of-record.
type SourceClient interface {
	FetchAll(ctx context.Context, table string, since time.Time) ([]models.SourceRecord, error)
}

// StoreWriter applies fetched records to the local cache.
type StoreWriter interface {
	Apply(ctx context.Context, table string, records []models.SourceRecord) (models.ApplyResult, error)
}

// Ledger appends terminal sync runs to the run history.
type Ledger interface {
	Record(ctx context.Context, run *models.SyncRun) error
}

// Invalidator drops cached reads for a table after its rows change.
type Invalidator interface {
	InvalidateNamespace(namespace string) int
}

// Broadcaster pushes completed runs to live dashboard consumers. Optional.
type Broadcaster interface {
	BroadcastJSON(messageType string, data interface{})
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Scheduler owns all TableState transitions and runs the per-table sync
// loops on a shared set of dependencies.
type Scheduler struct {
	cfg    *config.SyncConfig
	source SourceClient
	writer StoreWriter
	ledger Ledger
	cache  Invalidator
	hub    Broadcaster
	clock  Clock

	tables map[string]*TableState
	order  []string

	stopChan chan struct{}
	wg       sync.WaitGroup
	runWg    sync.WaitGroup // in-flight manual trigger cycles
	stopOnce sync.Once
}

// New creates a scheduler for the given tables. hub may be nil when no
// live consumers are wired.
func New(cfg *config.SyncConfig, tables []string, src SourceClient, writer StoreWriter, ledger Ledger, cache Invalidator, hub Broadcaster) *Scheduler {
	states := make(map[string]*TableState, len(tables))
	order := make([]string, 0, len(tables))
	for _, table := range tables {
		states[table] = newTableState(table)
		order = append(order, table)
	}

	return &Scheduler{
		cfg:      cfg,
		source:   src,
		writer:   writer,
		ledger:   ledger,
		cache:    cache,
		hub:      hub,
		clock:    realClock{},
		tables:   states,
		order:    order,
		stopChan: make(chan struct{}),
	}
}

// Start launches one sync loop per table. Each loop runs an immediate first
// cycle, then ticks at the configured interval. Returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	logging.Info().
		Int("tables", len(s.order)).
		Dur("interval", s.cfg.Interval).
		Msg("Starting reconciliation scheduler")

	for _, table := range s.order {
		s.wg.Add(1)
		go s.syncLoop(ctx, table)
	}
	return nil
}

// Stop prevents new cycles from starting and waits for in-flight cycles to
// finish. Cycles are not preempted mid-fetch; the per-cycle timeout bounds
// how long this can take.
func (s *Scheduler) Stop() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	s.runWg.Wait()
	logging.Info().Msg("Reconciliation scheduler stopped")
	return nil
}

// syncLoop is one table's independent schedule. A cycle overrunning the
// interval simply loses the next tick to the running-flag check; ticks are
// never queued.
//
// The loop context only stops the ticking. Cycles run on a detached
// context so a shutdown signal lets an in-flight cycle finish instead of
// recording a spurious failure; the per-cycle timeout still bounds it.
func (s *Scheduler) syncLoop(ctx context.Context, table string) {
	defer s.wg.Done()

	run := func() {
		if _, err := s.RunCycle(context.Background(), table); err != nil && !errors.Is(err, ErrSyncInProgress) {
			logging.Error().Err(err).Str("table", table).Msg("Sync cycle failed")
		}
	}

	run()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			run()
		}
	}
}

// Trigger starts a manual cycle for one table and returns immediately.
// Returns ErrUnknownTable for unconfigured tables and ErrSyncInProgress
// when the table's running flag is already held; otherwise the accepted
// run (status running) is returned while the cycle completes in the
// background.
func (s *Scheduler) Trigger(table string) (*models.SyncRun, error) {
	state, ok := s.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	if !state.tryAcquire() {
		metrics.SyncTriggerRejections.WithLabelValues(table).Inc()
		return nil, fmt.Errorf("%w: %s", ErrSyncInProgress, table)
	}

	run := s.newRun(table)
	s.runWg.Add(1)
	go func() {
		defer s.runWg.Done()
		s.executeCycle(context.Background(), state, run)
	}()

	accepted := *run
	return &accepted, nil
}

// TriggerAll starts a manual cycle for every configured table, reporting
// "accepted" or "already_running" per table.
func (s *Scheduler) TriggerAll() map[string]string {
	results := make(map[string]string, len(s.order))
	for _, table := range s.order {
		_, err := s.Trigger(table)
		switch {
		case err == nil:
			results[table] = "accepted"
		case errors.Is(err, ErrSyncInProgress):
			results[table] = "already_running"
		default:
			results[table] = err.Error()
		}
	}
	return results
}

// RunCycle executes one synchronous reconciliation cycle for a table. Used
// by the periodic loops; Trigger uses the same execution path async.
func (s *Scheduler) RunCycle(ctx context.Context, table string) (*models.SyncRun, error) {
	state, ok := s.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	if !state.tryAcquire() {
		metrics.SyncTriggerRejections.WithLabelValues(table).Inc()
		return nil, fmt.Errorf("%w: %s", ErrSyncInProgress, table)
	}

	run := s.newRun(table)
	s.executeCycle(ctx, state, run)
	return run, nil
}

func (s *Scheduler) newRun(table string) *models.SyncRun {
	return &models.SyncRun{
		ID:        uuid.New(),
		TableName: table,
		Status:    models.SyncStatusRunning,
		StartedAt: s.clock.Now().UTC(),
	}
}

// executeCycle owns the acquired running flag and the run's transition to
// exactly one terminal status. Panics from the fetch or write path are
// downgraded to failure runs so one table cannot take the process down.
func (s *Scheduler) executeCycle(ctx context.Context, state *TableState, run *models.SyncRun) {
	metrics.SyncRunning.WithLabelValues(state.table).Set(1)

	defer func() {
		if r := recover(); r != nil {
			logging.Error().Str("table", state.table).Interface("panic", r).Msg("Sync cycle panicked")
			run.Status = models.SyncStatusFailure
			run.ErrorDetails = fmt.Sprintf("panic: %v", r)
		}
		s.finalize(state, run)
	}()

	cycleCtx, cancel := context.WithTimeout(ctx, s.cfg.CycleTimeout)
	defer cancel()

	since := s.sinceMarker(state)

	records, err := s.source.FetchAll(cycleCtx, state.table, since)
	if err != nil {
		run.Status = models.SyncStatusFailure
		run.ErrorDetails = cycleErrorDetail(cycleCtx, err)
		return
	}
	run.RecordsFetched = len(records)

	result, err := s.writer.Apply(cycleCtx, state.table, records)
	run.RecordsWritten = result.Applied
	run.ErrorsCount = result.Errors
	if len(result.ErrorDetails) > 0 {
		run.ErrorDetails = joinDetails(result.ErrorDetails)
	}
	if err != nil {
		run.Status = models.SyncStatusFailure
		run.ErrorDetails = cycleErrorDetail(cycleCtx, err)
		return
	}

	run.Status = models.DeriveStatus(run.RecordsFetched, result.Applied, result.Errors)

	if result.Applied > 0 && s.cache != nil {
		removed := s.cache.InvalidateNamespace(state.table)
		logging.Debug().Str("table", state.table).Int("invalidated", removed).Msg("Cache namespace invalidated")
	}
}

// finalize stamps the terminal run, releases the running flag, appends the
// ledger entry, and notifies consumers. Runs exactly once per cycle.
func (s *Scheduler) finalize(state *TableState, run *models.SyncRun) {
	finished := s.clock.Now().UTC()
	run.FinishedAt = &finished
	run.DurationMS = finished.Sub(run.StartedAt).Milliseconds()
	if !run.Status.Terminal() {
		run.Status = models.SyncStatusFailure
	}

	state.finish(run)
	state.release()

	metrics.SyncRunning.WithLabelValues(state.table).Set(0)
	metrics.SyncConsecutiveFailures.WithLabelValues(state.table).Set(float64(state.Status().ConsecutiveFailures))
	metrics.RecordSyncCycle(state.table, string(run.Status),
		time.Duration(run.DurationMS)*time.Millisecond,
		run.RecordsFetched, run.RecordsWritten, run.ErrorsCount)

	// The ledger write uses its own context: the cycle context may already
	// be past its deadline, and the outcome must still be recorded.
	ledgerCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.ledger.Record(ledgerCtx, run); err != nil {
		logging.Error().Err(err).Str("table", state.table).Msg("Failed to record sync run")
	}

	if s.hub != nil {
		s.hub.BroadcastJSON("sync_completed", run)
	}

	logging.Info().
		Str("table", state.table).
		Str("status", string(run.Status)).
		Int("fetched", run.RecordsFetched).
		Int("written", run.RecordsWritten).
		Int("errors", run.ErrorsCount).
		Int64("duration_ms", run.DurationMS).
		Msg("Sync cycle finished")
}

// sinceMarker returns the incremental fetch marker: the last successful
// run's start time when incremental sync is enabled, zero otherwise (full
// reconciliation pass). Only a clean success advances the marker; after a
// partial failure the next cycle does a full pass so records that were
// rejected get refetched even if they are never modified upstream.
func (s *Scheduler) sinceMarker(state *TableState) time.Time {
	if !s.cfg.Incremental {
		return time.Time{}
	}
	status := state.Status()
	if status.LastRun == nil || status.LastRun.Status != models.SyncStatusSuccess {
		return time.Time{}
	}
	return status.LastRun.StartedAt
}

// Status returns the health view for every configured table, in
// configuration order.
func (s *Scheduler) Status() []models.TableStatus {
	statuses := make([]models.TableStatus, 0, len(s.order))
	for _, table := range s.order {
		statuses = append(statuses, s.tables[table].Status())
	}
	return statuses
}

// Tables returns the configured table names in order.
func (s *Scheduler) Tables() []string {
	return append([]string(nil), s.order...)
}

func cycleErrorDetail(ctx context.Context, err error) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "cycle timeout: " + err.Error()
	}
	if errors.Is(err, source.ErrSourceUnavailable) {
		return "source unavailable: " + err.Error()
	}
	return err.Error()
}

func joinDetails(details []string) string {
	return strings.Join(details, "; ")
}
