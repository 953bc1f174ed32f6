// Package store persists attendance records.
package store

import "errors"

// ErrDuplicateDay is returned by Create when a record for the same
// (worker, job, calendar day) already exists. The storage-level uniqueness
// constraint makes this authoritative under concurrent check-ins, not just
// the orchestrator's pre-check.
var ErrDuplicateDay = errors.New("attendance already recorded for this worker, job and day")
