// Airmirror - Airtable to PostgreSQL Mirror for Hackathon Event Portals
// Copyright 2026 Airmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hackbase/airmirror

// Package store is the PostgreSQL local cache: idempotent row upserts for
// mirrored tables, the append-only sync_runs ledger, and the read models
// behind the dashboard and admin endpoints.
//
// Schema is managed by embedded golang-migrate migrations, applied on
// startup when database.migrate_on_start is set.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations

	"github.com/hackbase/airmirror/internal/config"
	"github.com/hackbase/airmirror/internal/logging"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// ErrRecordInvalid marks a per-record validation failure. These are counted
// and skipped by the writer, never aborting a batch.
var ErrRecordInvalid = errors.New("record invalid")

// Store owns the pgx connection pool shared by the writer, the ledger, and
// the read models.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL, optionally applies embedded migrations, and
// returns the store.
func New(ctx context.Context, cfg *config.DatabaseConfig) (*Store, error) {
	if cfg.MigrateOnStart {
		if err := runMigrations(cfg.URL); err != nil {
			return nil, err
		}
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

func runMigrations(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open database for migrations: %w", err)
	}
	defer func() { _ = db.Close() }()

	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	srcDriver, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", srcDriver, "airmirror", driver)
	if err != nil {
		return fmt.Errorf("instantiate migrations: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	logging.Info().Msg("Database migrations applied")
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Writer returns the local store writer bound to this pool.
func (s *Store) Writer() *Writer {
	return &Writer{pool: s.pool}
}

// Ledger returns the sync-run ledger bound to this pool.
func (s *Store) Ledger() *Ledger {
	return &Ledger{pool: s.pool}
}
