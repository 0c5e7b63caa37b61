package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and feeds return these
// (optionally wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: note does not exist in the store
//   - ErrConflict: a note with the same id already exists
//   - ErrUnavailable: backing database or broker temporarily unavailable
//   - ErrClosed: the feed or subscription has been shut down
//
// For validation errors (bad input, oversized bodies), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
	ErrClosed      = errors.New("closed")
)
