// Airmirror - Airtable to PostgreSQL Mirror for Hackathon Event Portals
// Copyright 2026 Airmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hackbase/airmirror

// Package api provides the HTTP surface: health and sync-control endpoints
// for operators, and read-only data endpoints for the portal frontend. All
// data endpoints read from the local store through the in-memory cache;
// nothing here ever talks to the source client except the health ping.
package api

import (
	"context"
	"time"

	"github.com/hackbase/airmirror/internal/cache"
	"github.com/hackbase/airmirror/internal/config"
	"github.com/hackbase/airmirror/internal/models"
	"github.com/hackbase/airmirror/internal/websocket"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// SchedulerAPI is the slice of the scheduler the handlers need.
type SchedulerAPI interface {
	Trigger(table string) (*models.SyncRun, error)
	TriggerAll() map[string]string
	Status() []models.TableStatus
	Tables() []string
}

// LedgerReader reads recent sync runs for the sync-logs endpoint.
type LedgerReader interface {
	Recent(ctx context.Context, table string, limit int) ([]models.SyncRun, error)
}

// RowReader reads cached table rows and aggregates for the data endpoints.
type RowReader interface {
	ListRows(ctx context.Context, table string, limit, offset int) ([]models.LocalRow, error)
	TableCounts(ctx context.Context) ([]models.TableCount, error)
}

// Pinger checks connectivity of a dependency for health probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CacheStats exposes read-only cache counters for the health document.
type CacheStats interface {
	Snapshot() (hits, misses, evictions, keys int64)
	HitRate() float64
}

// Handler holds the dependencies for all API handlers.
type Handler struct {
	cfg       *config.Config
	sched     SchedulerAPI
	ledger    LedgerReader
	rows      RowReader
	db        Pinger
	src       Pinger
	cache     *cache.Cache
	hub       *websocket.Hub
	startTime time.Time
}

// NewHandler creates the API handler. hub may be nil when the WebSocket
// stream is not wired (tests).
func NewHandler(cfg *config.Config, sched SchedulerAPI, ledger LedgerReader, rows RowReader, db, src Pinger, c *cache.Cache, hub *websocket.Hub) *Handler {
	return &Handler{
		cfg:       cfg,
		sched:     sched,
		ledger:    ledger,
		rows:      rows,
		db:        db,
		src:       src,
		cache:     c,
		hub:       hub,
		startTime: time.Now(),
	}
}

// knownTable reports whether the table is one of the configured mirrors.
func (h *Handler) knownTable(table string) bool {
	for _, t := range h.sched.Tables() {
		if t == table {
			return true
		}
	}
	return false
}
