// Airmirror - Airtable to PostgreSQL Mirror for Hackathon Event Portals
// Copyright 2026 Airmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hackbase/airmirror

package scheduler

import "errors"

// ErrSyncInProgress signals that a trigger lost the check-and-set race for
// a table's running flag. It is a no-op signal to the caller, not a
// failure; nothing is queued.
var ErrSyncInProgress = errors.New("sync already in progress")

// ErrUnknownTable signals a trigger for a table the scheduler was not
// configured to mirror.
var ErrUnknownTable = errors.New("unknown table")
