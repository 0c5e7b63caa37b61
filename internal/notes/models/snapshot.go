package models

import (
	"cmp"
	"slices"
)

// Snapshot is the whole collection at one revision.
type Snapshot struct {
	Rev   uint64  `json:"rev"`
	Notes []*Note `json:"notes"`
}

// SortNotes orders notes the way snapshots present them: most recently
// updated first, then newest created, then by id so the order is total.
func SortNotes(notes []*Note) {
	slices.SortStableFunc(notes, func(a, b *Note) int {
		if c := cmp.Compare(b.UpdatedAt, a.UpdatedAt); c != 0 {
			return c
		}
		if c := cmp.Compare(b.CreatedAt, a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// Find returns the note with id, or nil.
func (s *Snapshot) Find(id string) *Note {
	for _, n := range s.Notes {
		if n.ID == id {
			return n
		}
	}
	return nil
}
