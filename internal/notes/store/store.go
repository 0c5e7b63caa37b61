// Package store persists notes. Every backend honors the same contract:
//
//   - Create fails with sentinel.ErrConflict when the id exists
//   - FindByID fails with sentinel.ErrNotFound when absent
//   - List returns notes in snapshot order (see models.SortNotes)
//   - MergeBody upserts: an existing note keeps CreatedAt, a missing one is
//     created with CreatedAt = UpdatedAt
//   - Delete is idempotent and reports whether a row was removed
//   - connection failures wrap sentinel.ErrUnavailable
package store

import "notesync/pkg/platform/sentinel"

// Re-exported so callers can match without importing sentinel.
var (
	ErrNotFound    = sentinel.ErrNotFound
	ErrConflict    = sentinel.ErrConflict
	ErrUnavailable = sentinel.ErrUnavailable
)
