// Airmirror - Airtable to PostgreSQL Mirror for Hackathon Event Portals
// Copyright 2026 Airmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hackbase/airmirror

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hackbase/airmirror/internal/logging"
)

// StartStopService matches the scheduler's lifecycle: Start spawns internal
// goroutines and returns, Stop blocks until they finish.
type StartStopService interface {
	Start(ctx context.Context) error
	Stop() error
}

// SchedulerService adapts the Start/Stop lifecycle to suture's Serve
// pattern.
type SchedulerService struct {
	svc  StartStopService
	name string
}

// NewSchedulerService wraps the reconciliation scheduler as a supervised
// service.
func NewSchedulerService(svc StartStopService) *SchedulerService {
	return &SchedulerService{svc: svc, name: "reconciliation-scheduler"}
}

// Serve implements suture.Service: start, wait for cancellation, stop.
func (s *SchedulerService) Serve(ctx context.Context) error {
	if err := s.svc.Start(ctx); err != nil {
		return fmt.Errorf("%s start failed: %w", s.name, err)
	}

	<-ctx.Done()

	if err := s.svc.Stop(); err != nil {
		return fmt.Errorf("%s stop failed: %w", s.name, err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logging.
func (s *SchedulerService) String() string { return s.name }

// RunFunc adapts a plain blocking function (e.g. the websocket hub's Run)
// to suture.Service.
type RunFunc struct {
	Name string
	Fn   func(ctx context.Context)
}

// Serve implements suture.Service.
func (r *RunFunc) Serve(ctx context.Context) error {
	r.Fn(ctx)
	return ctx.Err()
}

// String implements fmt.Stringer.
func (r *RunFunc) String() string { return r.Name }

// HTTPService runs an http.Server under supervision with graceful
// shutdown.
type HTTPService struct {
	server          *http.Server
	shutdownTimeout time.Duration
}

// NewHTTPService wraps the API server as a supervised service.
func NewHTTPService(server *http.Server, shutdownTimeout time.Duration) *HTTPService {
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service. ListenAndServe runs until the context
// is canceled, then the server is drained within the shutdown timeout.
func (s *HTTPService) Serve(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("HTTP server shutdown failed")
		}
		return ctx.Err()
	}
}

// String implements fmt.Stringer.
func (s *HTTPService) String() string { return "http-server" }
