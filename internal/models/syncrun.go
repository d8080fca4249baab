// Airmirror - Airtable to PostgreSQL Mirror for Hackathon Event Portals
// Copyright 2026 Airmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hackbase/airmirror

package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncStatus is the lifecycle state of a sync run.
//
// Allowed transitions: running -> success | partial_failure | failure.
// A run is immutable once it reaches a terminal status.
type SyncStatus string

const (
	// SyncStatusRunning marks a cycle that has started but not finished.
	SyncStatusRunning SyncStatus = "running"

	// SyncStatusSuccess marks a cycle where every fetched record was applied.
	SyncStatusSuccess SyncStatus = "success"

	// SyncStatusPartialFailure marks a cycle where some records were applied
	// and some were rejected individually.
	SyncStatusPartialFailure SyncStatus = "partial_failure"

	// SyncStatusFailure marks a cycle that wrote nothing: fetch aborted,
	// timeout, or every record in a non-empty batch rejected.
	SyncStatusFailure SyncStatus = "failure"
)

// Terminal reports whether the status is a terminal state.
func (s SyncStatus) Terminal() bool {
	return s == SyncStatusSuccess || s == SyncStatusPartialFailure || s == SyncStatusFailure
}

// DeriveStatus maps cycle counters onto a terminal status:
//
//   - errs == 0                      -> success (an empty table syncs cleanly)
//   - errs > 0 and written > 0       -> partial_failure
//   - errs > 0 and written == 0      -> failure (non-empty batch, nothing landed)
func DeriveStatus(fetched, written, errs int) SyncStatus {
	if errs == 0 {
		return SyncStatusSuccess
	}
	if written > 0 {
		return SyncStatusPartialFailure
	}
	return SyncStatusFailure
}

// SyncRun records one reconciliation attempt for one table. Rows in the
// sync_runs ledger are append-only; a run is created when the cycle starts
// and finalized exactly once by the owning cycle.
type SyncRun struct {
	ID             uuid.UUID  `json:"id"`
	TableName      string     `json:"table_name"`
	Status         SyncStatus `json:"status"`
	RecordsFetched int        `json:"records_fetched"`
	RecordsWritten int        `json:"records_written"`
	ErrorsCount    int        `json:"errors_count"`
	ErrorDetails   string     `json:"error_details,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	DurationMS     int64      `json:"duration_ms"`
}

// TableStatus is the per-table view exposed by the health surface.
type TableStatus struct {
	TableName           string   `json:"table_name"`
	Running             bool     `json:"running"`
	ConsecutiveFailures int      `json:"consecutive_failures"`
	LastRun             *SyncRun `json:"last_run,omitempty"`
}

// HealthStatus is the aggregated health document served by /health/status.
type HealthStatus struct {
	Status            string        `json:"status"`
	Version           string        `json:"version"`
	DatabaseConnected bool          `json:"database_connected"`
	SourceConnected   bool          `json:"source_connected"`
	UptimeSeconds     float64       `json:"uptime_seconds"`
	Tables            []TableStatus `json:"tables"`
	Cache             *CacheStats   `json:"cache,omitempty"`
}

// CacheStats is a read-only snapshot of in-memory cache counters.
type CacheStats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Keys      int64   `json:"keys"`
	HitRate   float64 `json:"hit_rate"`
}
