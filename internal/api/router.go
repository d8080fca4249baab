// Airmirror - Airtable to PostgreSQL Mirror for Hackathon Event Portals
// Copyright 2026 Airmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hackbase/airmirror

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hackbase/airmirror/internal/config"
)

// healthRateLimit is deliberately permissive: monitors poll these endpoints
// at high frequency.
const healthRateLimit = 1000

// Router assembles the HTTP surface.
type Router struct {
	handler *Handler
	cfg     *config.ServerConfig
}

// NewRouter creates a router for the given handler and server config.
func NewRouter(handler *Handler, cfg *config.ServerConfig) *Router {
	return &Router{handler: handler, cfg: cfg}
}

// Setup configures all routes and middleware and returns the root handler.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: rt.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", requestIDHeader},
		MaxAge:         300,
	}))

	// Health and sync-control surface.
	r.Route("/health", func(r chi.Router) {
		if !rt.cfg.RateLimitDisabled {
			r.Use(httprate.Limit(healthRateLimit, rt.cfg.RateLimitWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP)))
		}
		r.Get("/status", rt.handler.HealthStatus)
		r.Get("/live", rt.handler.HealthLive)
		r.Get("/ready", rt.handler.HealthReady)
		r.Get("/sync-logs", rt.handler.SyncLogs)
		r.Post("/sync/trigger", rt.handler.SyncTrigger)
	})

	// Data surface consumed by the portal frontend.
	r.Route("/api/v1", func(r chi.Router) {
		if !rt.cfg.RateLimitDisabled {
			r.Use(httprate.Limit(rt.cfg.RateLimitRequests, rt.cfg.RateLimitWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP)))
		}
		r.Use(PrometheusMetrics)

		r.Get("/dashboard", rt.handler.Dashboard)
		r.Get("/admin/events", rt.handler.AdminEvents)
		r.Get("/admin/tables/{table}", rt.handler.AdminTable)
		r.Get("/ws", rt.handler.WebSocket)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
