// Airmirror - Airtable to PostgreSQL Mirror for Hackathon Event Portals
// Copyright 2026 Airmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hackbase/airmirror

package source

import "errors"

// ErrSourceUnavailable marks a fetch that could not complete: network
// failure, auth rejection, or rate-limit retries exhausted. A cycle seeing
// this error writes nothing and records a failure run.
var ErrSourceUnavailable = errors.New("source unavailable")

// ErrRateLimited is returned internally when the source answers 429; the
// retry loop converts it into backoff and eventually into
// ErrSourceUnavailable if attempts run out.
var ErrRateLimited = errors.New("source rate limited")
