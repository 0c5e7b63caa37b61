// Package client is the note-taking client's sync layer. It mirrors the
// remote collection through a live subscription, tracks which note is being
// edited, and coalesces rapid edits into infrequent remote writes.
package client

import (
	"context"
	"errors"

	"notesync/internal/notes/models"
)

var (
	// ErrNoNote is returned by Edit when the collection is empty.
	ErrNoNote = errors.New("no note selected")
	// ErrWriterClosed is returned by Edit after Close.
	ErrWriterClosed = errors.New("writer closed")
)

// SnapshotEvent is one snapshot delivered by a Remote. Stream changes every
// time the remote (re)connects; revisions only order snapshots within one stream.
type SnapshotEvent struct {
	Stream   uint64
	Snapshot *models.Snapshot
}

// Remote is the document database the client syncs with.
type Remote interface {
	// Subscribe delivers snapshots to onSnapshot, one at a time, until the
	// returned function is called or ctx ends.
	Subscribe(ctx context.Context, onSnapshot func(SnapshotEvent)) (unsubscribe func(), err error)
	Create(ctx context.Context) (*models.Note, error)
	UpdateBody(ctx context.Context, id, body string) (*models.Note, error)
	Delete(ctx context.Context, id string) error
}
