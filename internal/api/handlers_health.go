// Airmirror - Airtable to PostgreSQL Mirror for Hackathon Event Portals
// Copyright 2026 Airmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hackbase/airmirror

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/hackbase/airmirror/internal/models"
	"github.com/hackbase/airmirror/internal/scheduler"
)

// HealthStatus serves GET /health/status: aggregated health including
// per-table sync summaries and cache counters.
func (h *Handler) HealthStatus(w http.ResponseWriter, r *http.Request) {
	dbConnected := h.db != nil && h.db.Ping(r.Context()) == nil
	srcConnected := h.src != nil && h.src.Ping(r.Context()) == nil

	status := "healthy"
	if !dbConnected {
		status = "degraded"
	} else if !srcConnected {
		status = "degraded"
	}

	health := models.HealthStatus{
		Status:            status,
		Version:           Version,
		DatabaseConnected: dbConnected,
		SourceConnected:   srcConnected,
		UptimeSeconds:     time.Since(h.startTime).Seconds(),
		Tables:            h.sched.Status(),
	}

	if h.cache != nil {
		hits, misses, evictions, keys := h.cache.Snapshot()
		health.Cache = &models.CacheStats{
			Hits:      hits,
			Misses:    misses,
			Evictions: evictions,
			Keys:      keys,
			HitRate:   h.cache.HitRate(),
		}
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     health,
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// HealthLive serves GET /health/live: alive as long as the process runs,
// regardless of dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"alive":  true,
			"uptime": time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// HealthReady serves GET /health/ready: 200 only when the local store is
// reachable. The source being down degrades but does not block serving
// cached data.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	dbConnected := h.db != nil && h.db.Ping(r.Context()) == nil

	statusCode := http.StatusOK
	status := "ready"
	if !dbConnected {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	respondJSON(w, statusCode, &models.APIResponse{
		Status: status,
		Data: map[string]interface{}{
			"database_connected": dbConnected,
			"ready_to_serve":     dbConnected,
			"uptime":             time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// SyncLogs serves GET /health/sync-logs?limit=N&table=T: recent sync runs,
// newest first.
func (h *Handler) SyncLogs(w http.ResponseWriter, r *http.Request) {
	limit := getIntParam(r, "limit", 50, 1, 500)
	table := r.URL.Query().Get("table")

	if table != "" && !h.knownTable(table) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "unknown table: "+table, nil)
		return
	}

	start := time.Now()
	runs, err := h.ledger.Recent(r.Context(), table, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to read sync logs", err)
		return
	}
	if runs == nil {
		runs = []models.SyncRun{}
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"runs":  runs,
			"count": len(runs),
		},
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// SyncTrigger serves POST /health/sync/trigger: manual sync for one table
// (?table=) or all tables. Responds immediately; the cycle itself runs in
// the background on the same execution path as scheduled cycles. A table
// already syncing yields 409 rather than a queued run.
func (h *Handler) SyncTrigger(w http.ResponseWriter, r *http.Request) {
	table := r.URL.Query().Get("table")

	if table == "" {
		results := h.sched.TriggerAll()
		respondJSON(w, http.StatusAccepted, &models.APIResponse{
			Status:   "success",
			Data:     map[string]interface{}{"tables": results},
			Metadata: models.Metadata{Timestamp: time.Now()},
		})
		return
	}

	run, err := h.sched.Trigger(table)
	switch {
	case errors.Is(err, scheduler.ErrUnknownTable):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "unknown table: "+table, nil)
	case errors.Is(err, scheduler.ErrSyncInProgress):
		respondJSON(w, http.StatusConflict, &models.APIResponse{
			Status:   "error",
			Metadata: models.Metadata{Timestamp: time.Now()},
			Error: &models.APIError{
				Code:    "SYNC_IN_PROGRESS",
				Message: "sync already running for table " + table,
			},
		})
	case err != nil:
		respondError(w, http.StatusInternalServerError, "SYNC_ERROR", "failed to trigger sync", err)
	default:
		respondJSON(w, http.StatusAccepted, &models.APIResponse{
			Status: "success",
			Data: map[string]interface{}{
				"accepted": true,
				"run_id":   run.ID,
				"table":    table,
			},
			Metadata: models.Metadata{Timestamp: time.Now()},
		})
	}
}
