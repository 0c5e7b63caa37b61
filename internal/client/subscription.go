package client

import (
	"context"
	"log/slog"
	"sync"

	"notesync/internal/notes/models"
)

// SubscriptionManager mirrors the remote collection into local state. Every
// applied snapshot replaces the mirror wholesale.
type SubscriptionManager struct {
	remote Remote
	logger *slog.Logger

	mu          sync.RWMutex
	notes       []*models.Note
	stream      uint64
	rev         uint64
	applied     bool
	listeners   []func([]*models.Note)
	unsubscribe func()
}

// NewSubscriptionManager constructs a manager for remote.
func NewSubscriptionManager(remote Remote, logger *slog.Logger) *SubscriptionManager {
	return &SubscriptionManager{remote: remote, logger: logger}
}

// OnSnapshot registers fn to run after each applied snapshot. Listeners run
// on the subscription goroutine, one snapshot at a time.
func (m *SubscriptionManager) OnSnapshot(fn func(notes []*models.Note)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Start opens the remote subscription.
func (m *SubscriptionManager) Start(ctx context.Context) error {
	unsubscribe, err := m.remote.Subscribe(ctx, m.apply)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.unsubscribe = unsubscribe
	m.mu.Unlock()
	return nil
}

// Stop closes the remote subscription. The mirror keeps its last state.
func (m *SubscriptionManager) Stop() {
	m.mu.Lock()
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Notes returns a copy of the mirrored collection in snapshot order.
func (m *SubscriptionManager) Notes() []*models.Note {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneNotes(m.notes)
}

// Rev reports the revision of the applied snapshot.
func (m *SubscriptionManager) Rev() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rev
}

// Ready reports whether any snapshot has been applied.
func (m *SubscriptionManager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.applied
}

func (m *SubscriptionManager) apply(ev SnapshotEvent) {
	if ev.Snapshot == nil {
		return
	}
	m.mu.Lock()
	if m.applied && ev.Stream == m.stream && ev.Snapshot.Rev < m.rev {
		m.mu.Unlock()
		m.logger.Debug("ignoring stale snapshot", "rev", ev.Snapshot.Rev, "applied_rev", m.rev)
		return
	}
	m.notes = cloneNotes(ev.Snapshot.Notes)
	m.stream = ev.Stream
	m.rev = ev.Snapshot.Rev
	m.applied = true
	listeners := append([]func([]*models.Note){}, m.listeners...)
	notes := cloneNotes(m.notes)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(notes)
	}
}

func cloneNotes(notes []*models.Note) []*models.Note {
	out := make([]*models.Note, 0, len(notes))
	for _, n := range notes {
		if n != nil {
			out = append(out, n.Clone())
		}
	}
	return out
}
