// Airmirror - Airtable to PostgreSQL Mirror for Hackathon Event Portals
// Copyright 2026 Airmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hackbase/airmirror

// Package metrics exposes Prometheus collectors for sync cycles, the
// Airtable client, the in-memory cache, and the HTTP surface. All
// collectors are registered via promauto at package load and served on
// /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync cycle metrics
	SyncCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airmirror_sync_cycles_total",
			Help: "Total number of completed sync cycles by table and terminal status",
		},
		[]string{"table", "status"},
	)

	SyncCycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "airmirror_sync_cycle_duration_seconds",
			Help:    "Duration of sync cycles in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table"},
	)

	SyncRecordsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airmirror_sync_records_fetched_total",
			Help: "Total records fetched from the source per table",
		},
		[]string{"table"},
	)

	SyncRecordsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airmirror_sync_records_written_total",
			Help: "Total records upserted into the local store per table",
		},
		[]string{"table"},
	)

	SyncRecordErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airmirror_sync_record_errors_total",
			Help: "Total per-record failures (validation or write) per table",
		},
		[]string{"table"},
	)

	SyncTriggerRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airmirror_sync_trigger_rejections_total",
			Help: "Triggers rejected because a run was already in progress",
		},
		[]string{"table"},
	)

	SyncConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "airmirror_sync_consecutive_failures",
			Help: "Consecutive failed cycles per table (reset on success)",
		},
		[]string{"table"},
	)

	SyncRunning = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "airmirror_sync_running",
			Help: "1 while a sync cycle is in flight for the table",
		},
		[]string{"table"},
	)

	// Source client metrics
	SourceRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "airmirror_source_request_duration_seconds",
			Help:    "Duration of Airtable API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table"},
	)

	SourceRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airmirror_source_rate_limited_total",
			Help: "Number of HTTP 429 responses received from the source",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "airmirror_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airmirror_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Cache metrics
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airmirror_cache_hits_total",
			Help: "In-memory cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airmirror_cache_misses_total",
			Help: "In-memory cache misses",
		},
	)

	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airmirror_cache_evictions_total",
			Help: "In-memory cache evictions (expiry and invalidation)",
		},
	)

	// HTTP metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "airmirror_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airmirror_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "airmirror_http_active_requests",
			Help: "HTTP requests currently in flight",
		},
	)

	// WebSocket metrics
	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "airmirror_websocket_clients",
			Help: "Connected WebSocket clients",
		},
	)
)

// RecordSyncCycle updates all cycle-level collectors for one terminal run.
func RecordSyncCycle(table, status string, duration time.Duration, fetched, written, errs int) {
	SyncCyclesTotal.WithLabelValues(table, status).Inc()
	SyncCycleDuration.WithLabelValues(table).Observe(duration.Seconds())
	SyncRecordsFetched.WithLabelValues(table).Add(float64(fetched))
	SyncRecordsWritten.WithLabelValues(table).Add(float64(written))
	SyncRecordErrors.WithLabelValues(table).Add(float64(errs))
}

// RecordAPIRequest updates the HTTP collectors for one completed request.
func RecordAPIRequest(method, path string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	HTTPRequestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
	HTTPRequestsTotal.WithLabelValues(method, path, code).Inc()
}

// TrackActiveRequest adjusts the in-flight HTTP request gauge.
func TrackActiveRequest(start bool) {
	if start {
		HTTPActiveRequests.Inc()
		return
	}
	HTTPActiveRequests.Dec()
}
