// Airmirror - Airtable to PostgreSQL Mirror for Hackathon Event Portals
// Copyright 2026 Airmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hackbase/airmirror

package logging

import (
	"context"

	"github.com/rs/zerolog"
)

type contextKey int

const correlationIDKey contextKey = iota

// WithCorrelationID returns a context carrying the given correlation ID.
// Handlers attach the request ID here so that log lines emitted anywhere
// below the handler can be tied back to the request.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationID extracts the correlation ID from the context, or returns
// the empty string if none was set.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// Ctx returns a logger bound to the context's correlation ID. If the context
// carries no correlation ID the plain global logger is returned.
func Ctx(ctx context.Context) zerolog.Logger {
	l := Logger()
	if id := CorrelationID(ctx); id != "" {
		return l.With().Str("correlation_id", id).Logger()
	}
	return l
}
