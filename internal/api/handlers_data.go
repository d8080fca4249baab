// Airmirror - Airtable to PostgreSQL Mirror for Hackathon Event Portals
// Copyright 2026 Airmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hackbase/airmirror

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hackbase/airmirror/internal/cache"
	"github.com/hackbase/airmirror/internal/models"
	"github.com/hackbase/airmirror/internal/websocket"
)

// eventsTable is the portal's primary table; /admin/events is a fixed alias
// for it.
const eventsTable = "events"

// AdminEvents serves GET /api/v1/admin/events: cached rows of the events
// table.
func (h *Handler) AdminEvents(w http.ResponseWriter, r *http.Request) {
	h.serveTableRows(w, r, eventsTable)
}

// AdminTable serves GET /api/v1/admin/tables/{table}: cached rows of any
// configured mirror table.
func (h *Handler) AdminTable(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	if !h.knownTable(table) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "unknown table: "+table, nil)
		return
	}
	h.serveTableRows(w, r, table)
}

// serveTableRows reads rows through the cache. The cache key includes the
// pagination window; the whole namespace is dropped when a sync writes the
// table.
func (h *Handler) serveTableRows(w http.ResponseWriter, r *http.Request, table string) {
	limit := getIntParam(r, "limit", 50, 1, 500)
	offset := getIntParam(r, "offset", 0, 0, 1<<30)

	key := cache.Key(table, "rows", limit, offset)
	if h.cache != nil {
		if cached, ok := h.cache.Get(key); ok {
			respondJSON(w, http.StatusOK, &models.APIResponse{
				Status:   "success",
				Data:     cached,
				Metadata: models.Metadata{Timestamp: time.Now(), Cached: true},
			})
			return
		}
	}

	start := time.Now()
	rows, err := h.rows.ListRows(r.Context(), table, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to read rows", err)
		return
	}
	if rows == nil {
		rows = []models.LocalRow{}
	}

	data := map[string]interface{}{
		"table":  table,
		"rows":   rows,
		"count":  len(rows),
		"limit":  limit,
		"offset": offset,
	}
	if h.cache != nil {
		h.cache.Set(key, data)
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: models.Metadata{Timestamp: time.Now(), QueryTimeMS: time.Since(start).Milliseconds()},
	})
}

// Dashboard serves GET /api/v1/dashboard: per-table row counts, freshness,
// and the latest run per table.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	key := cache.Key("dashboard", "summary")
	if h.cache != nil {
		if cached, ok := h.cache.Get(key); ok {
			respondJSON(w, http.StatusOK, &models.APIResponse{
				Status:   "success",
				Data:     cached,
				Metadata: models.Metadata{Timestamp: time.Now(), Cached: true},
			})
			return
		}
	}

	start := time.Now()
	counts, err := h.rows.TableCounts(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to read table counts", err)
		return
	}
	if counts == nil {
		counts = []models.TableCount{}
	}

	data := map[string]interface{}{
		"tables": counts,
		"sync":   h.sched.Status(),
	}
	if h.cache != nil {
		// Short TTL: dashboard freshness matters more than saved queries,
		// and sync status should not outlive a 1s sync interval by much.
		h.cache.SetWithTTL(key, data, 2*time.Second)
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: models.Metadata{Timestamp: time.Now(), QueryTimeMS: time.Since(start).Milliseconds()},
	})
}

// WebSocket serves GET /api/v1/ws: upgrades to the sync-run stream.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "WS_DISABLED", "websocket stream not enabled", nil)
		return
	}
	websocket.ServeWS(h.hub, w, r)
}
