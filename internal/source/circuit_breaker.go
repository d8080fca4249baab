// Airmirror - Airtable to PostgreSQL Mirror for Hackathon Event Portals
// Copyright 2026 Airmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hackbase/airmirror

package source

import (
	"context"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/hackbase/airmirror/internal/config"
	"github.com/hackbase/airmirror/internal/logging"
	"github.com/hackbase/airmirror/internal/metrics"
	"github.com/hackbase/airmirror/internal/models"
)

// CircuitBreakerClient wraps Client with a circuit breaker so a dead or
// degraded Airtable base trips fast instead of burning every cycle's
// timeout across all tables.
//
// The breaker uses real time for its interval and timeout; tests exercise
// the wrapped client directly.
type CircuitBreakerClient struct {
	client *Client
	cb     *gobreaker.CircuitBreaker[any]
	name   string
}

// NewCircuitBreakerClient creates a client with circuit breaker protection.
// The circuit opens at a 60% failure rate over at least 10 requests, stays
// open for 2 minutes, then allows 3 probe requests in half-open state.
func NewCircuitBreakerClient(cfg *config.AirtableConfig) *CircuitBreakerClient {
	client := NewClient(cfg)
	cbName := "airtable-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6
			if shouldTrip {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("Opening source circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)
			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("Source circuit state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &CircuitBreakerClient{client: client, cb: cb, name: cbName}
}

// Ping checks source connectivity through the breaker.
func (c *CircuitBreakerClient) Ping(ctx context.Context) error {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, c.client.Ping(ctx)
	})
	return translateBreakerErr(err)
}

// FetchAll fetches a complete table snapshot through the breaker.
func (c *CircuitBreakerClient) FetchAll(ctx context.Context, table string, since time.Time) ([]models.SourceRecord, error) {
	result, err := c.cb.Execute(func() (any, error) {
		return c.client.FetchAll(ctx, table, since)
	})
	if err != nil {
		return nil, translateBreakerErr(err)
	}
	records, ok := result.([]models.SourceRecord)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected breaker result type %T", ErrSourceUnavailable, result)
	}
	return records, nil
}

// translateBreakerErr folds breaker-rejection errors into the source error
// taxonomy so callers only need to understand ErrSourceUnavailable.
func translateBreakerErr(err error) error {
	switch err {
	case nil:
		return nil
	case gobreaker.ErrOpenState, gobreaker.ErrTooManyRequests:
		return fmt.Errorf("%w: circuit breaker: %v", ErrSourceUnavailable, err)
	default:
		return err
	}
}

func stateToString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
