// Airmirror - Airtable to PostgreSQL Mirror for Hackathon Event Portals
// Copyright 2026 Airmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hackbase/airmirror

package store

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/hackbase/airmirror/internal/models"
)

// ListRows returns cached rows for one mirrored table, most recently synced
// first. API handlers read here (through the in-memory cache), never from
// the source client.
func (s *Store) ListRows(ctx context.Context, table string, limit, offset int) ([]models.LocalRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT table_name, external_id, fields, source_version, synced_at
		FROM airtable_rows
		WHERE table_name = $1
		ORDER BY synced_at DESC, external_id
		LIMIT $2 OFFSET $3`,
		table, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query rows for %s: %w", table, err)
	}
	defer rows.Close()

	var result []models.LocalRow
	for rows.Next() {
		var row models.LocalRow
		var fields []byte
		if err := rows.Scan(&row.TableName, &row.ExternalID, &fields, &row.SourceVersion, &row.SyncedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if err := json.Unmarshal(fields, &row.Fields); err != nil {
			return nil, fmt.Errorf("decode fields for %s/%s: %w", row.TableName, row.ExternalID, err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return result, nil
}

// CountRows returns the number of cached rows for one table.
func (s *Store) CountRows(ctx context.Context, table string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM airtable_rows WHERE table_name = $1`, table,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count rows for %s: %w", table, err)
	}
	return count, nil
}

// TableCounts aggregates row counts and freshness per mirrored table for
// the dashboard endpoint.
func (s *Store) TableCounts(ctx context.Context) ([]models.TableCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT table_name, count(*), max(synced_at)
		FROM airtable_rows
		GROUP BY table_name
		ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("query table counts: %w", err)
	}
	defer rows.Close()

	var counts []models.TableCount
	for rows.Next() {
		var tc models.TableCount
		if err := rows.Scan(&tc.TableName, &tc.RowCount, &tc.LastSyncedAt); err != nil {
			return nil, fmt.Errorf("scan table count: %w", err)
		}
		counts = append(counts, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table counts: %w", err)
	}

	return counts, nil
}
