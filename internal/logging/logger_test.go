// Airmirror - Airtable to PostgreSQL Mirror for Hackathon Event Portals
// Copyright 2026 Airmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hackbase/airmirror

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestInitJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(Config{Level: "debug", Format: "json", Output: &buf}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { initLogger(DefaultConfig()) })

	Info().Str("table", "events").Msg("cycle started")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if line["table"] != "events" {
		t.Errorf("table field = %v", line["table"])
	}
	if line["message"] != "cycle started" {
		t.Errorf("message field = %v", line["message"])
	}
	if line["level"] != "info" {
		t.Errorf("level field = %v", line["level"])
	}
}

func TestInitLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(Config{Level: "warn", Format: "json", Output: &buf}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { initLogger(DefaultConfig()) })

	Debug().Msg("filtered")
	Info().Msg("also filtered")
	Warn().Msg("kept")

	out := buf.String()
	if strings.Contains(out, "filtered") {
		t.Errorf("below-threshold events written: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("warn event missing: %q", out)
	}
}

func TestInitRejectsBadLevel(t *testing.T) {
	if err := Init(Config{Level: "loud"}); err == nil {
		t.Fatal("Init accepted unknown level")
	}
}

func TestSlogLoggerWritesThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(Config{Level: "debug", Format: "json", Output: &buf}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { initLogger(DefaultConfig()) })

	sl := NewSlogLogger()
	sl.Info("service started", "service", "scheduler")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if line["message"] != "service started" {
		t.Errorf("message field = %v", line["message"])
	}
	if line["service"] != "scheduler" {
		t.Errorf("service field = %v", line["service"])
	}
	if line["level"] != "info" {
		t.Errorf("level field = %v", line["level"])
	}
}

func TestCorrelationID(t *testing.T) {
	ctx := context.Background()
	if got := CorrelationID(ctx); got != "" {
		t.Errorf("CorrelationID on empty context = %q", got)
	}

	ctx = WithCorrelationID(ctx, "req-42")
	if got := CorrelationID(ctx); got != "req-42" {
		t.Errorf("CorrelationID = %q, want req-42", got)
	}
}

func TestCtxBindsCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(Config{Level: "info", Format: "json", Output: &buf}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { initLogger(DefaultConfig()) })

	logger := Ctx(WithCorrelationID(context.Background(), "req-42"))
	logger.Info().Msg("handled")

	if !strings.Contains(buf.String(), `"correlation_id":"req-42"`) {
		t.Errorf("correlation_id missing from line: %q", buf.String())
	}
}
