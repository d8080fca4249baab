// Airmirror - Airtable to PostgreSQL Mirror for Hackathon Event Portals
// Copyright 2026 Airmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hackbase/airmirror

package models

import "time"

// SourceRecord is a single row fetched from the system-of-record. The ID is
// Airtable's immutable record ID; Fields carries the raw field name to value
// mapping exactly as returned by the list endpoint.
type SourceRecord struct {
	// ID is the external record identifier (e.g. "recXXXXXXXXXXXXXX").
	ID string `json:"id"`

	// Fields maps field names to their values. Values are whatever the
	// source returns: strings, numbers, booleans, arrays, attachments.
	Fields map[string]interface{} `json:"fields"`

	// ModifiedTime is the source's last-modified marker if the source
	// provides one, otherwise the record creation time. Zero when the
	// source exposes neither.
	ModifiedTime time.Time `json:"modified_time,omitempty"`
}

// LocalRow is the cached counterpart of a SourceRecord in PostgreSQL.
// Rows are keyed by (table name, external ID) and are only ever written by
// the store writer. A row whose external ID stops appearing in fetches is
// left in place (soft-stale) rather than deleted; its SyncedAt simply stops
// advancing.
type LocalRow struct {
	TableName  string                 `json:"table_name"`
	ExternalID string                 `json:"external_id"`
	Fields     map[string]interface{} `json:"fields"`

	// SourceVersion is a best-effort change marker: the source's modified
	// time when available, otherwise a content hash of the fields. Used to
	// detect unchanged rows so a re-upsert of identical values does not
	// count as a change.
	SourceVersion string `json:"source_version"`

	// SyncedAt is the time of the last sync cycle that confirmed this row.
	SyncedAt time.Time `json:"synced_at"`
}

// ApplyResult summarizes one writer batch for a single table.
type ApplyResult struct {
	// Applied is the number of records successfully upserted, including
	// records whose stored values were already identical.
	Applied int `json:"applied"`

	// Changed is the subset of Applied whose stored values actually
	// changed. An identical re-upsert increments Applied but not Changed.
	Changed int `json:"changed"`

	// Errors is the number of records rejected individually (validation
	// or row-level write failure). These never abort the batch.
	Errors int `json:"errors"`

	// ErrorDetails holds a bounded sample of per-record error messages.
	ErrorDetails []string `json:"error_details,omitempty"`
}

// TableCount is one row of the dashboard aggregation: how many rows a
// mirrored table holds and when it was last touched by a sync.
type TableCount struct {
	TableName    string     `json:"table_name"`
	RowCount     int64      `json:"row_count"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}
