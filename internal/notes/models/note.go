package models

import (
	"strings"
	"time"
	"unicode/utf8"

	dErrors "notesync/pkg/domain-errors"
)

// DefaultBody is the body every new note starts with.
const DefaultBody = "# Type your markdown note's title here"

// MaxBodyBytes caps a note body.
const MaxBodyBytes = 1 << 20

// UntitledTitle is shown for notes whose first line is blank.
const UntitledTitle = "Untitled"

// Note is a markdown document in the collection.
//
// Invariants:
//   - ID is non-empty and immutable
//   - Body is valid UTF-8 and at most MaxBodyBytes
//   - CreatedAt is set once; UpdatedAt >= CreatedAt
//
// Timestamps are Unix milliseconds, the unit the snapshot wire format uses.
type Note struct {
	ID        string `json:"id"`
	Body      string `json:"body"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// NewNote builds a note with the default body stamped at now.
func NewNote(id string, now time.Time) (*Note, error) {
	if strings.TrimSpace(id) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "note id cannot be empty")
	}
	ms := now.UnixMilli()
	return &Note{
		ID:        id,
		Body:      DefaultBody,
		CreatedAt: ms,
		UpdatedAt: ms,
	}, nil
}

// ValidateBody checks a body against the note invariants.
func ValidateBody(body string) error {
	if len(body) > MaxBodyBytes {
		return dErrors.New(dErrors.CodeValidation, "note body must be 1 MiB or less")
	}
	if !utf8.ValidString(body) {
		return dErrors.New(dErrors.CodeValidation, "note body must be valid UTF-8")
	}
	return nil
}

// ApplyBody replaces the body and bumps UpdatedAt. UpdatedAt never moves
// backwards, so clock skew between writers cannot reorder history.
func (n *Note) ApplyBody(body string, now time.Time) {
	n.Body = body
	if ms := now.UnixMilli(); ms > n.UpdatedAt {
		n.UpdatedAt = ms
	}
}

// Title is the first line of the body with heading markers stripped.
func (n *Note) Title() string {
	return TitleOf(n.Body)
}

// TitleOf derives a sidebar title from a markdown body.
func TitleOf(body string) string {
	first, _, _ := strings.Cut(body, "\n")
	first = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(first), "#"))
	if first == "" {
		return UntitledTitle
	}
	return first
}

// Clone returns a copy safe to hand across goroutines.
func (n *Note) Clone() *Note {
	if n == nil {
		return nil
	}
	c := *n
	return &c
}

// CreatedTime and UpdatedTime convert the stored milliseconds back to time.Time.
func (n *Note) CreatedTime() time.Time { return time.UnixMilli(n.CreatedAt) }

func (n *Note) UpdatedTime() time.Time { return time.UnixMilli(n.UpdatedAt) }
