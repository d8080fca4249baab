// Airmirror - Airtable to PostgreSQL Mirror for Hackathon Event Portals
// Copyright 2026 Airmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hackbase/airmirror

package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackbase/airmirror/internal/models"
)

// Ledger is the append-only sync_runs history. Runs are inserted once, in
// their terminal state, and never mutated or deleted.
type Ledger struct {
	pool *pgxpool.Pool
}

// Record appends one terminal sync run to the ledger.
func (l *Ledger) Record(ctx context.Context, run *models.SyncRun) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO sync_runs
			(id, table_name, status, records_fetched, records_written,
			 errors_count, error_details, started_at, finished_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10)`,
		run.ID, run.TableName, string(run.Status), run.RecordsFetched, run.RecordsWritten,
		run.ErrorsCount, run.ErrorDetails, run.StartedAt, run.FinishedAt, run.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("record sync run: %w", err)
	}
	return nil
}

// Recent returns the most recent runs, newest first. An empty table name
// returns runs across all tables.
func (l *Ledger) Recent(ctx context.Context, table string, limit int) ([]models.SyncRun, error) {
	const baseQuery = `
		SELECT id, table_name, status, records_fetched, records_written,
		       errors_count, COALESCE(error_details, ''), started_at, finished_at, duration_ms
		FROM sync_runs`

	var (
		query string
		args  []interface{}
	)
	if table == "" {
		query = baseQuery + " ORDER BY started_at DESC LIMIT $1"
		args = []interface{}{limit}
	} else {
		query = baseQuery + " WHERE table_name = $1 ORDER BY started_at DESC LIMIT $2"
		args = []interface{}{table, limit}
	}

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sync runs: %w", err)
	}
	defer rows.Close()

	var runs []models.SyncRun
	for rows.Next() {
		var run models.SyncRun
		var status string
		if err := rows.Scan(
			&run.ID, &run.TableName, &status, &run.RecordsFetched, &run.RecordsWritten,
			&run.ErrorsCount, &run.ErrorDetails, &run.StartedAt, &run.FinishedAt, &run.DurationMS,
		); err != nil {
			return nil, fmt.Errorf("scan sync run: %w", err)
		}
		run.Status = models.SyncStatus(status)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync runs: %w", err)
	}

	return runs, nil
}
