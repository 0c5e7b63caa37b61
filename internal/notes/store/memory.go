package store

import (
	"context"
	"fmt"
	"sync"

	"notesync/internal/notes/models"
)

// InMemory is a map-backed store for development and tests.
type InMemory struct {
	mu    sync.RWMutex
	notes map[string]*models.Note
}

// NewInMemory constructs an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{notes: make(map[string]*models.Note)}
}

func (s *InMemory) Create(_ context.Context, note *models.Note) error {
	if note == nil {
		return fmt.Errorf("note is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.notes[note.ID]; exists {
		return fmt.Errorf("create note %s: %w", note.ID, ErrConflict)
	}
	s.notes[note.ID] = note.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id string) (*models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return n.Clone(), nil
}

func (s *InMemory) List(_ context.Context) ([]*models.Note, error) {
	s.mu.RLock()
	out := make([]*models.Note, 0, len(s.notes))
	for _, n := range s.notes {
		out = append(out, n.Clone())
	}
	s.mu.RUnlock()
	models.SortNotes(out)
	return out, nil
}

func (s *InMemory) MergeBody(_ context.Context, id, body string, updatedAt int64) (*models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok {
		n = &models.Note{ID: id, CreatedAt: updatedAt}
		s.notes[id] = n
	}
	n.Body = body
	if updatedAt > n.UpdatedAt {
		n.UpdatedAt = updatedAt
	}
	return n.Clone(), nil
}

func (s *InMemory) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.notes[id]
	delete(s.notes, id)
	return ok, nil
}

func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notes), nil
}
