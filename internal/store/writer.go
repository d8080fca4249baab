// Airmirror - Airtable to PostgreSQL Mirror for Hackathon Event Portals
// Copyright 2026 Airmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hackbase/airmirror

package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackbase/airmirror/internal/logging"
	"github.com/hackbase/airmirror/internal/models"
)

// maxErrorDetails bounds how many per-record error messages are kept for
// the ledger entry.
const maxErrorDetails = 20

// upsertSQL updates a row only when its source version actually changed, so
// an identical re-upsert reports zero affected rows and is counted as
// unchanged rather than emitting a spurious update.
const upsertSQL = `
INSERT INTO airtable_rows (table_name, external_id, fields, source_version, synced_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (table_name, external_id) DO UPDATE
SET fields = EXCLUDED.fields,
    source_version = EXCLUDED.source_version,
    synced_at = EXCLUDED.synced_at
WHERE airtable_rows.source_version IS DISTINCT FROM EXCLUDED.source_version`

// Writer applies fetched source records to the local cache via idempotent
// upserts. It is the only mutator of airtable_rows.
type Writer struct {
	pool *pgxpool.Pool
}

// Apply upserts a full batch for one table. Per-record failures (validation
// or row-level write errors) are counted and skipped without aborting the
// remaining records. Rows not present in the batch are left untouched:
// a record vanishing from the source is treated as soft-stale, never as a
// deletion.
func (w *Writer) Apply(ctx context.Context, table string, records []models.SourceRecord) (models.ApplyResult, error) {
	result := models.ApplyResult{}
	now := time.Now().UTC()

	for _, rec := range records {
		payload, version, err := prepareRecord(rec)
		if err != nil {
			result.Errors++
			result.ErrorDetails = appendDetail(result.ErrorDetails, fmt.Sprintf("%s: %v", rec.ID, err))
			logging.Warn().Err(err).Str("table", table).Str("record_id", rec.ID).Msg("Skipping invalid record")
			continue
		}

		tag, err := w.pool.Exec(ctx, upsertSQL, table, rec.ID, payload, version, now)
		if err != nil {
			if ctx.Err() != nil {
				// The cycle is over (timeout or shutdown); everything not yet
				// written stays soft-stale for the next pass.
				return result, ctx.Err()
			}
			result.Errors++
			result.ErrorDetails = appendDetail(result.ErrorDetails, fmt.Sprintf("%s: write: %v", rec.ID, err))
			logging.Warn().Err(err).Str("table", table).Str("record_id", rec.ID).Msg("Row write failed")
			continue
		}

		result.Applied++
		if tag.RowsAffected() > 0 {
			result.Changed++
		}
	}

	return result, nil
}

// prepareRecord validates a source record and derives its storage form:
// JSON-encoded fields and a source version marker.
func prepareRecord(rec models.SourceRecord) ([]byte, string, error) {
	if strings.TrimSpace(rec.ID) == "" {
		return nil, "", fmt.Errorf("%w: empty external id", ErrRecordInvalid)
	}
	if rec.Fields == nil {
		return nil, "", fmt.Errorf("%w: nil field mapping", ErrRecordInvalid)
	}

	payload, err := json.Marshal(rec.Fields)
	if err != nil {
		return nil, "", fmt.Errorf("%w: fields not encodable: %v", ErrRecordInvalid, err)
	}

	return payload, sourceVersion(rec), nil
}

// sourceVersion derives the change marker for a record: the source's
// last-modified time when available, otherwise a content hash over the
// canonical (key-sorted) field encoding. Either way, identical records in
// consecutive syncs produce identical versions.
func sourceVersion(rec models.SourceRecord) string {
	if !rec.ModifiedTime.IsZero() {
		return rec.ModifiedTime.UTC().Format(time.RFC3339Nano)
	}

	keys := make([]string, 0, len(rec.Fields))
	for k := range rec.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		// Individual values were already proven encodable by prepareRecord
		// before this is called on the happy path; a failure here would only
		// widen the hash input, not corrupt stored data.
		v, _ := json.Marshal(rec.Fields[k])
		h.Write(v)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func appendDetail(details []string, msg string) []string {
	if len(details) >= maxErrorDetails {
		return details
	}
	return append(details, msg)
}
