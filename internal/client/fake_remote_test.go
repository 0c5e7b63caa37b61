package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"notesync/internal/notes/models"
)

type updateCall struct {
	ID   string
	Body string
}

// fakeRemote is an in-memory Remote whose snapshots are pushed by the test.
type fakeRemote struct {
	mu           sync.Mutex
	onSnapshot   func(SnapshotEvent)
	unsubscribed bool
	stream       uint64
	rev          uint64
	nextID       int
	notes        map[string]*models.Note
	updates      []updateCall
	deletes      []string
	updateErr    error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{notes: make(map[string]*models.Note), stream: 1}
}

func (f *fakeRemote) Subscribe(_ context.Context, onSnapshot func(SnapshotEvent)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onSnapshot != nil {
		return nil, errors.New("already subscribed")
	}
	f.onSnapshot = onSnapshot
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.unsubscribed = true
		f.onSnapshot = nil
	}, nil
}

func (f *fakeRemote) Create(_ context.Context) (*models.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	n := &models.Note{ID: fmt.Sprintf("note-%d", f.nextID), Body: models.DefaultBody, CreatedAt: int64(f.nextID), UpdatedAt: int64(f.nextID)}
	f.notes[n.ID] = n
	return n.Clone(), nil
}

func (f *fakeRemote) UpdateBody(_ context.Context, id, body string) (*models.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, updateCall{ID: id, Body: body})
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	n, ok := f.notes[id]
	if !ok {
		n = &models.Note{ID: id}
		f.notes[id] = n
	}
	n.Body = body
	return n.Clone(), nil
}

func (f *fakeRemote) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	delete(f.notes, id)
	return nil
}

// push delivers a snapshot of the given notes with the next revision.
func (f *fakeRemote) push(notes ...*models.Note) {
	f.mu.Lock()
	f.rev++
	fn := f.onSnapshot
	snap := &models.Snapshot{Rev: f.rev, Notes: notes}
	stream := f.stream
	f.mu.Unlock()
	if fn != nil {
		fn(SnapshotEvent{Stream: stream, Snapshot: snap})
	}
}

// pushCurrent delivers the remote's own collection, most recent first.
func (f *fakeRemote) pushCurrent() {
	f.mu.Lock()
	notes := make([]*models.Note, 0, len(f.notes))
	for _, n := range f.notes {
		notes = append(notes, n.Clone())
	}
	f.mu.Unlock()
	models.SortNotes(notes)
	f.push(notes...)
}

func (f *fakeRemote) deliver(ev SnapshotEvent) {
	f.mu.Lock()
	fn := f.onSnapshot
	f.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

func (f *fakeRemote) seed(notes ...*models.Note) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range notes {
		f.notes[n.ID] = n.Clone()
	}
}

func (f *fakeRemote) updateCalls() []updateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]updateCall(nil), f.updates...)
}

func (f *fakeRemote) deleteCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deletes...)
}

func (f *fakeRemote) setUpdateErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateErr = err
}

func note(id, body string, updatedAt int64) *models.Note {
	return &models.Note{ID: id, Body: body, CreatedAt: updatedAt, UpdatedAt: updatedAt}
}
