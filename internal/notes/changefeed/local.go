package changefeed

import (
	"context"

	"notesync/internal/notes/models"
)

// Local is a single-process feed: publishing broadcasts directly to the hub.
type Local struct {
	*Hub
}

// NewLocal constructs an in-process feed.
func NewLocal() *Local {
	return &Local{Hub: NewHub()}
}

func (l *Local) Publish(_ context.Context, change models.Change) error {
	if l.Closed() {
		return ErrClosed
	}
	l.Broadcast(change)
	return nil
}

// Run has nothing to pump; it blocks until ctx ends so all backends share a lifecycle.
func (l *Local) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (l *Local) Close() error {
	l.Hub.Close()
	return nil
}
