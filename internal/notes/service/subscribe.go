package service

import (
	"context"

	"notesync/internal/notes/models"
	dErrors "notesync/pkg/domain-errors"
)

// Subscribe streams snapshots of the collection. The first snapshot is sent
// immediately; afterwards one is sent per observed change, with bursts of
// changes collapsing into a single snapshot while the reader is busy. The
// channel is closed when ctx ends or the feed shuts down.
func (s *Service) Subscribe(ctx context.Context) (<-chan *models.Snapshot, error) {
	if s.feed == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "live subscriptions are not configured")
	}
	sub := s.feed.Subscribe()

	first, err := s.List(ctx)
	if err != nil {
		sub.Close()
		return nil, err
	}

	out := make(chan *models.Snapshot, 1)
	out <- first
	s.metrics.SubscriberOpened()
	s.metrics.IncrementSnapshotsSent()
	s.logEvent(ctx, "subscription_opened", "rev", first.Rev, "notes", len(first.Notes))

	go func() {
		defer close(out)
		defer sub.Close()
		defer s.metrics.SubscriberClosed()

		for {
			select {
			case <-ctx.Done():
				return
			case change, ok := <-sub.C():
				if !ok {
					return
				}
				snap, err := s.List(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					s.logger.WarnContext(ctx, "failed to build snapshot after change",
						"note_id", change.NoteID,
						"kind", change.Kind,
						"error", err,
					)
					continue
				}
				select {
				case out <- snap:
					s.metrics.IncrementSnapshotsSent()
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
