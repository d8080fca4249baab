// Airmirror - Airtable to PostgreSQL Mirror for Hackathon Event Portals
// Copyright 2026 Airmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hackbase/airmirror

// Airmirror continuously mirrors a set of Airtable tables into PostgreSQL
// and serves the mirrored data to the hackathon portal over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hackbase/airmirror/internal/api"
	"github.com/hackbase/airmirror/internal/cache"
	"github.com/hackbase/airmirror/internal/config"
	"github.com/hackbase/airmirror/internal/logging"
	"github.com/hackbase/airmirror/internal/scheduler"
	"github.com/hackbase/airmirror/internal/source"
	"github.com/hackbase/airmirror/internal/store"
	"github.com/hackbase/airmirror/internal/supervisor"
	"github.com/hackbase/airmirror/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "airmirror: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	}); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	logging.Info().
		Str("version", api.Version).
		Strs("tables", cfg.Airtable.Tables).
		Str("addr", cfg.Server.Addr()).
		Msg("Starting Airmirror")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.New(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}
	defer db.Close()

	src := source.NewCircuitBreakerClient(&cfg.Airtable)
	readCache := cache.New(cfg.Cache.TTL)
	defer readCache.Close()

	hub := websocket.NewHub()

	sched := scheduler.New(&cfg.Sync, cfg.Airtable.Tables,
		src, db.Writer(), db.Ledger(), readCache, hub)

	handler := api.NewHandler(cfg, sched, db.Ledger(), db, db, src, readCache, hub)
	router := api.NewRouter(handler, &cfg.Server)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddSyncService(&supervisor.RunFunc{Name: "websocket-hub", Fn: hub.Run})
	tree.AddSyncService(supervisor.NewSchedulerService(sched))
	tree.AddAPIService(supervisor.NewHTTPService(httpServer, cfg.Server.ShutdownTimeout))

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}

	logging.Info().Msg("Airmirror stopped")
	return nil
}
