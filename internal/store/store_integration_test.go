// Airmirror - Airtable to PostgreSQL Mirror for Hackathon Event Portals
// Copyright 2026 Airmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hackbase/airmirror

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hackbase/airmirror/internal/config"
	"github.com/hackbase/airmirror/internal/models"
)

// newTestStore starts a throwaway PostgreSQL container and opens a migrated
// store against it.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("airmirror_test"),
		tcpostgres.WithUsername("airmirror"),
		tcpostgres.WithPassword("airmirror"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := New(ctx, &config.DatabaseConfig{
		URL:            url,
		MaxConns:       4,
		MigrateOnStart: true,
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	return s
}

func record(id string, fields map[string]interface{}, modified time.Time) models.SourceRecord {
	return models.SourceRecord{ID: id, Fields: fields, ModifiedTime: modified}
}

func TestWriterApplyIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	w := s.Writer()

	modified := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	batch := []models.SourceRecord{
		record("rec1", map[string]interface{}{"name": "HackTheNorth"}, modified),
		record("rec2", map[string]interface{}{"name": "LocalHackDay"}, modified),
		record("rec3", map[string]interface{}{"name": "BuildWeekend"}, modified),
	}

	first, err := w.Apply(ctx, "events", batch)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Applied)
	assert.Equal(t, 3, first.Changed)
	assert.Equal(t, 0, first.Errors)

	// identical re-apply touches nothing
	second, err := w.Apply(ctx, "events", batch)
	require.NoError(t, err)
	assert.Equal(t, 3, second.Applied)
	assert.Equal(t, 0, second.Changed)

	count, err := s.CountRows(ctx, "events")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	// one record modified upstream
	batch[1] = record("rec2", map[string]interface{}{"name": "LocalHackDay", "capacity": 80},
		modified.Add(time.Hour))
	third, err := w.Apply(ctx, "events", batch)
	require.NoError(t, err)
	assert.Equal(t, 3, third.Applied)
	assert.Equal(t, 1, third.Changed)
}

func TestWriterApplySkipsInvalidRecords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	modified := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	batch := []models.SourceRecord{
		record("rec1", map[string]interface{}{"name": "a"}, modified),
		record("", map[string]interface{}{"name": "no id"}, modified),
		record("rec3", nil, modified),
		record("rec4", map[string]interface{}{"name": "d"}, modified),
	}

	result, err := s.Writer().Apply(ctx, "signups", batch)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Applied)
	assert.Equal(t, 2, result.Errors)
	assert.Len(t, result.ErrorDetails, 2)

	count, err := s.CountRows(ctx, "signups")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestWriterLeavesVanishedRowsAlone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	w := s.Writer()

	modified := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	_, err := w.Apply(ctx, "events", []models.SourceRecord{
		record("rec1", map[string]interface{}{"name": "a"}, modified),
		record("rec2", map[string]interface{}{"name": "b"}, modified),
	})
	require.NoError(t, err)

	// next cycle no longer sees rec2; it must stay in the local store
	_, err = w.Apply(ctx, "events", []models.SourceRecord{
		record("rec1", map[string]interface{}{"name": "a"}, modified),
	})
	require.NoError(t, err)

	count, err := s.CountRows(ctx, "events")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestListRowsAndTableCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	modified := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	_, err := s.Writer().Apply(ctx, "events", []models.SourceRecord{
		record("rec1", map[string]interface{}{"name": "a"}, modified),
		record("rec2", map[string]interface{}{"name": "b"}, modified),
	})
	require.NoError(t, err)
	_, err = s.Writer().Apply(ctx, "signups", []models.SourceRecord{
		record("rec9", map[string]interface{}{"who": "c"}, modified),
	})
	require.NoError(t, err)

	rows, err := s.ListRows(ctx, "events", 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "events", rows[0].TableName)
	assert.NotEmpty(t, rows[0].Fields)

	paged, err := s.ListRows(ctx, "events", 1, 1)
	require.NoError(t, err)
	assert.Len(t, paged, 1)

	counts, err := s.TableCounts(ctx)
	require.NoError(t, err)
	require.Len(t, counts, 2)

	byTable := map[string]int64{}
	for _, c := range counts {
		byTable[c.TableName] = c.RowCount
		assert.NotNil(t, c.LastSyncedAt)
	}
	assert.Equal(t, int64(2), byTable["events"])
	assert.Equal(t, int64(1), byTable["signups"])
}

func TestLedgerRecordAndRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ledger := s.Ledger()

	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	runs := []models.SyncRun{
		{ID: uuid.New(), TableName: "events", Status: models.SyncStatusSuccess,
			RecordsFetched: 10, RecordsWritten: 10, StartedAt: base},
		{ID: uuid.New(), TableName: "signups", Status: models.SyncStatusFailure,
			ErrorsCount: 1, ErrorDetails: "source unavailable: 503", StartedAt: base.Add(time.Minute)},
		{ID: uuid.New(), TableName: "events", Status: models.SyncStatusPartialFailure,
			RecordsFetched: 50, RecordsWritten: 47, ErrorsCount: 3, StartedAt: base.Add(2 * time.Minute)},
	}
	for i := range runs {
		finished := runs[i].StartedAt.Add(3 * time.Second)
		runs[i].FinishedAt = &finished
		runs[i].DurationMS = 3000
		require.NoError(t, ledger.Record(ctx, &runs[i]))
	}

	t.Run("all tables newest first", func(t *testing.T) {
		got, err := ledger.Recent(ctx, "", 10)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, runs[2].ID, got[0].ID)
		assert.Equal(t, runs[0].ID, got[2].ID)
	})

	t.Run("filtered by table", func(t *testing.T) {
		got, err := ledger.Recent(ctx, "events", 10)
		require.NoError(t, err)
		require.Len(t, got, 2)
		for _, run := range got {
			assert.Equal(t, "events", run.TableName)
		}
	})

	t.Run("limit respected", func(t *testing.T) {
		got, err := ledger.Recent(ctx, "", 1)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("error details round-trip", func(t *testing.T) {
		got, err := ledger.Recent(ctx, "signups", 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "source unavailable: 503", got[0].ErrorDetails)
	})

	t.Run("empty error details stay empty", func(t *testing.T) {
		got, err := ledger.Recent(ctx, "events", 10)
		require.NoError(t, err)
		assert.Empty(t, got[1].ErrorDetails)
	})
}
