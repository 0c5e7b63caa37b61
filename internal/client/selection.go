package client

import (
	"sync"

	"notesync/internal/notes/models"
)

// Selection tracks which note is active.
type Selection struct {
	mu        sync.RWMutex
	currentID string
	// seen is set once currentID has appeared in a snapshot. A selected note
	// that was seen and then vanished was deleted.
	seen bool
}

// CurrentID is the explicitly selected id, possibly of a note that no longer exists.
func (s *Selection) CurrentID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentID
}

// Select makes id current.
func (s *Selection) Select(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentID = id
	s.seen = false
}

// Reconcile brings the selection in line with a snapshot. Nothing selected
// adopts the first note, and a selected note that has been deleted is
// replaced by the first remaining one. A selection not yet seen in any
// snapshot, such as a note just created, is kept.
func (s *Selection) Reconcile(notes []*models.Note) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentID != "" && contains(notes, s.currentID) {
		s.seen = true
		return
	}
	if s.currentID != "" && !s.seen {
		return
	}
	s.currentID, s.seen = "", false
	if len(notes) > 0 {
		s.currentID, s.seen = notes[0].ID, true
	}
}

func contains(notes []*models.Note, id string) bool {
	for _, n := range notes {
		if n.ID == id {
			return true
		}
	}
	return false
}

// Current resolves the active note: the selected one, else the first, else nil.
func (s *Selection) Current(notes []*models.Note) *models.Note {
	id := s.CurrentID()
	for _, n := range notes {
		if n.ID == id {
			return n
		}
	}
	if len(notes) > 0 {
		return notes[0]
	}
	return nil
}
