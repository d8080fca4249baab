// Airmirror - Airtable to PostgreSQL Mirror for Hackathon Event Portals
// Copyright 2026 Airmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hackbase/airmirror

package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hackbase/airmirror/internal/logging"
	"github.com/hackbase/airmirror/internal/metrics"
)

// requestIDHeader is echoed back to clients and bound to the request's log
// correlation context.
const requestIDHeader = "X-Request-ID"

// RequestID assigns each request a correlation ID (honoring one supplied by
// the client) and threads it through the logging context.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)

			ctx := logging.WithCorrelationID(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrometheusMetrics records request counts, durations, and in-flight gauge
// for every request passing through it.
func PrometheusMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.TrackActiveRequest(true)
		defer metrics.TrackActiveRequest(false)

		start := time.Now()
		wrapper := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		metrics.RecordAPIRequest(r.Method, r.URL.Path, wrapper.statusCode, time.Since(start))
	})
}

// statusResponseWriter captures the status code written by a handler.
type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
