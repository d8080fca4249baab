// Airmirror - Airtable to PostgreSQL Mirror for Hackathon Event Portals
// Copyright 2026 Airmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hackbase/airmirror

// Package source implements the Airtable client: paginated table fetches
// with client-side rate limiting, exponential backoff with jitter on HTTP
// 429, and an optional circuit breaker wrapper.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/hackbase/airmirror/internal/config"
	"github.com/hackbase/airmirror/internal/logging"
	"github.com/hackbase/airmirror/internal/metrics"
	"github.com/hackbase/airmirror/internal/models"
)

// maxErrorBodySize bounds how much of an error response body is read for
// diagnostics.
const maxErrorBodySize = 64 * 1024

// Client fetches table snapshots from the Airtable REST API.
//
// Every fetch is restartable from scratch: no cursor survives across
// cycles. FetchAll buffers all pages and returns either the complete table
// or an error with no records, so a partially fetched table can never reach
// the writer.
//
// Thread safety: all methods are safe for concurrent use; tables syncing in
// parallel share the rate limiter, which is the point.
type Client struct {
	cfg        *config.AirtableConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

// airtableRecord mirrors one element of the list endpoint's records array.
type airtableRecord struct {
	ID           string                 `json:"id"`
	CreatedTime  time.Time              `json:"createdTime"`
	Fields       map[string]interface{} `json:"fields"`
	ModifiedTime *time.Time             `json:"lastModifiedTime,omitempty"`
}

// airtableListResponse mirrors the list endpoint's response body. Offset is
// present while more pages remain.
type airtableListResponse struct {
	Records []airtableRecord `json:"records"`
	Offset  string           `json:"offset,omitempty"`
}

// NewClient creates an Airtable client from configuration.
func NewClient(cfg *config.AirtableConfig) *Client {
	burst := int(cfg.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
	}
}

// Ping verifies connectivity and credentials by requesting a single record
// from the first configured table.
func (c *Client) Ping(ctx context.Context) error {
	if len(c.cfg.Tables) == 0 {
		return fmt.Errorf("%w: no tables configured", ErrSourceUnavailable)
	}
	endpoint := c.listURL(c.cfg.Tables[0], "", time.Time{}, 1)
	_, err := c.doRequest(ctx, endpoint)
	return err
}

// FetchAll retrieves every record of the table, following pagination to
// completion. When since is non-zero the fetch is narrowed with Airtable's
// LAST_MODIFIED_TIME filter; otherwise it is a full reconciliation pass.
//
// On any page failure after retries the whole fetch fails: the returned
// slice is nil and the error wraps ErrSourceUnavailable. Callers must not
// write partial results.
func (c *Client) FetchAll(ctx context.Context, table string, since time.Time) ([]models.SourceRecord, error) {
	var (
		records []models.SourceRecord
		offset  string
		page    int
	)

	for {
		page++
		endpoint := c.listURL(table, offset, since, c.cfg.PageSize)

		resp, err := c.doRequestWithRetry(ctx, table, endpoint)
		if err != nil {
			return nil, fmt.Errorf("fetch %s page %d: %w", table, page, err)
		}

		for _, rec := range resp.Records {
			records = append(records, toSourceRecord(rec))
		}

		logging.Debug().
			Str("table", table).
			Int("page", page).
			Int("page_records", len(resp.Records)).
			Int("total", len(records)).
			Msg("Fetched source page")

		if resp.Offset == "" {
			return records, nil
		}
		offset = resp.Offset
	}
}

func toSourceRecord(rec airtableRecord) models.SourceRecord {
	modified := rec.CreatedTime
	if rec.ModifiedTime != nil && !rec.ModifiedTime.IsZero() {
		modified = *rec.ModifiedTime
	}
	fields := rec.Fields
	if fields == nil {
		fields = map[string]interface{}{}
	}
	return models.SourceRecord{
		ID:           rec.ID,
		Fields:       fields,
		ModifiedTime: modified,
	}
}

// listURL builds the list endpoint URL for one page.
func (c *Client) listURL(table, offset string, since time.Time, pageSize int) string {
	params := url.Values{}
	params.Set("pageSize", strconv.Itoa(pageSize))
	if offset != "" {
		params.Set("offset", offset)
	}
	if !since.IsZero() {
		formula := fmt.Sprintf("LAST_MODIFIED_TIME() > '%s'", since.UTC().Format(time.RFC3339))
		params.Set("filterByFormula", formula)
	}
	return fmt.Sprintf("%s/v0/%s/%s?%s",
		c.cfg.BaseURL, url.PathEscape(c.cfg.BaseID), url.PathEscape(table), params.Encode())
}

// doRequestWithRetry runs doRequest with exponential backoff and jitter.
// Only rate limiting and transient server/network errors are retried;
// auth and client errors fail immediately.
func (c *Client) doRequestWithRetry(ctx context.Context, table, endpoint string) (*airtableListResponse, error) {
	var lastErr error
	delay := c.cfg.RetryDelay

	for attempt := 1; attempt <= c.cfg.RetryAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, ctx.Err())
		}

		start := time.Now()
		resp, err := c.doRequest(ctx, endpoint)
		metrics.SourceRequestDuration.WithLabelValues(table).Observe(time.Since(start).Seconds())

		if err == nil {
			return resp, nil
		}
		lastErr = err

		var retryable *retryableError
		if !errors.As(err, &retryable) {
			return nil, err
		}

		if attempt == c.cfg.RetryAttempts {
			break
		}

		wait := withJitter(delay)
		if retryable.retryAfter > wait {
			wait = retryable.retryAfter
		}

		logging.Warn().
			Err(err).
			Str("table", table).
			Int("attempt", attempt).
			Int("max_attempts", c.cfg.RetryAttempts).
			Dur("delay", wait).
			Msg("Retrying source request")

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, ctx.Err())
		}
		delay *= 2
	}

	return nil, fmt.Errorf("%w: retries exhausted: %v", ErrSourceUnavailable, lastErr)
}

// retryableError wraps an error the retry loop is allowed to retry,
// carrying an optional server-requested delay from Retry-After.
type retryableError struct {
	err        error
	retryAfter time.Duration
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// withJitter adds up to 50% random jitter so concurrent table fetches do
// not retry in lockstep.
func withJitter(d time.Duration) time.Duration {
	return d + time.Duration(rand.Int63n(int64(d)/2+1))
}

// doRequest performs a single rate-limited GET against the list endpoint.
func (c *Client) doRequest(ctx context.Context, endpoint string) (*airtableListResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrSourceUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &retryableError{err: fmt.Errorf("request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode

	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.SourceRateLimited.Inc()
		return nil, &retryableError{
			err:        ErrRateLimited,
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}

	case resp.StatusCode >= 500:
		body := readBodyForError(resp.Body)
		return nil, &retryableError{err: fmt.Errorf("server error %d: %s", resp.StatusCode, body)}

	default:
		// 401/403/404 and friends: retrying cannot help.
		body := readBodyForError(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ErrSourceUnavailable, resp.StatusCode, body)
	}

	var list airtableListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrSourceUnavailable, err)
	}
	return &list, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// readBodyForError reads at most maxErrorBodySize bytes for diagnostics.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	return body
}
