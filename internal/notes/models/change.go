package models

// ChangeKind names the mutation a Change reports.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// Change is published on the feed after every successful mutation.
// Subscribers only need to learn that the collection moved; they re-read it.
type Change struct {
	Kind   ChangeKind `json:"kind"`
	NoteID string     `json:"noteId"`
	At     int64      `json:"at"`
}
