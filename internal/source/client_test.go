// Airmirror - Airtable to PostgreSQL Mirror for Hackathon Event Portals
// Copyright 2026 Airmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hackbase/airmirror

package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hackbase/airmirror/internal/config"
)

func testConfig(baseURL string) *config.AirtableConfig {
	return &config.AirtableConfig{
		BaseURL:           baseURL,
		BaseID:            "appTESTBASE",
		APIKey:            "key-test",
		Tables:            []string{"events"},
		PageSize:          2,
		RequestsPerSecond: 1000,
		Timeout:           2 * time.Second,
		RetryAttempts:     3,
		RetryDelay:        time.Millisecond,
	}
}

func TestFetchAllFollowsPagination(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if got := r.Header.Get("Authorization"); got != "Bearer key-test" {
			t.Errorf("Authorization = %q", got)
		}

		switch r.URL.Query().Get("offset") {
		case "":
			fmt.Fprint(w, `{"records":[
				{"id":"rec1","createdTime":"2026-01-01T00:00:00Z","fields":{"name":"a"}},
				{"id":"rec2","createdTime":"2026-01-01T00:00:00Z","fields":{"name":"b"}}
			],"offset":"page2"}`)
		case "page2":
			fmt.Fprint(w, `{"records":[
				{"id":"rec3","createdTime":"2026-01-01T00:00:00Z","fields":{"name":"c"}}
			]}`)
		default:
			t.Errorf("unexpected offset %q", r.URL.Query().Get("offset"))
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	records, err := c.FetchAll(context.Background(), "events", time.Time{})
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if records[2].ID != "rec3" {
		t.Errorf("records[2].ID = %q, want rec3", records[2].ID)
	}
	if requests.Load() != 2 {
		t.Errorf("made %d requests, want 2", requests.Load())
	}
}

func TestFetchAllRetriesRateLimit(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"records":[{"id":"rec1","createdTime":"2026-01-01T00:00:00Z","fields":{}}]}`)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	records, err := c.FetchAll(context.Background(), "events", time.Time{})
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if requests.Load() != 2 {
		t.Errorf("made %d requests, want 2 (one retry)", requests.Load())
	}
}

func TestFetchAllExhaustsRetries(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	records, err := c.FetchAll(context.Background(), "events", time.Time{})
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
	if records != nil {
		t.Errorf("got %d records on failure, want none", len(records))
	}
	if requests.Load() != 3 {
		t.Errorf("made %d requests, want 3 attempts", requests.Load())
	}
}

func TestFetchAllMidPaginationFailureDropsEverything(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") == "" {
			fmt.Fprint(w, `{"records":[
				{"id":"rec1","createdTime":"2026-01-01T00:00:00Z","fields":{"name":"a"}}
			],"offset":"page2"}`)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	records, err := c.FetchAll(context.Background(), "events", time.Time{})
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
	if records != nil {
		t.Errorf("partial fetch returned %d records, want none", len(records))
	}
}

func TestFetchAllDoesNotRetryAuthErrors(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	_, err := c.FetchAll(context.Background(), "events", time.Time{})
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
	if requests.Load() != 1 {
		t.Errorf("made %d requests, want 1 (no retries)", requests.Load())
	}
}

func TestFetchAllIncrementalFilter(t *testing.T) {
	var gotFormula string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFormula = r.URL.Query().Get("filterByFormula")
		fmt.Fprint(w, `{"records":[]}`)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))

	since := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	if _, err := c.FetchAll(context.Background(), "events", since); err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	want := "LAST_MODIFIED_TIME() > '2026-03-14T10:00:00Z'"
	if gotFormula != want {
		t.Errorf("filterByFormula = %q, want %q", gotFormula, want)
	}

	if _, err := c.FetchAll(context.Background(), "events", time.Time{}); err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if gotFormula != "" {
		t.Errorf("full pass sent filterByFormula = %q, want none", gotFormula)
	}
}

func TestFetchAllPrefersLastModifiedTime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"records":[
			{"id":"rec1","createdTime":"2026-01-01T00:00:00Z",
			 "lastModifiedTime":"2026-02-01T00:00:00Z","fields":{"name":"a"}}
		]}`)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	records, err := c.FetchAll(context.Background(), "events", time.Time{})
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	want := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	if !records[0].ModifiedTime.Equal(want) {
		t.Errorf("ModifiedTime = %v, want %v", records[0].ModifiedTime, want)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		header string
		want   time.Duration
	}{
		{"", 0},
		{"30", 30 * time.Second},
		{"0", 0},
		{"not-a-number", 0},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.header); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}
