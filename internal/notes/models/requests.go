package models

// UpdateNoteRequest is the PUT /notes/{id} payload.
type UpdateNoteRequest struct {
	Body *string `json:"body"`
}

// Normalize is a no-op: whitespace in markdown is content.
func (r *UpdateNoteRequest) Normalize() {}

func (r *UpdateNoteRequest) Validate() error {
	if r.Body == nil {
		return errBodyRequired
	}
	return ValidateBody(*r.Body)
}

// NoteResponse is the JSON shape of a single note.
type NoteResponse struct {
	*Note
	Title string `json:"title"`
}

// ToResponse decorates a note with its derived title.
func ToResponse(n *Note) *NoteResponse {
	return &NoteResponse{Note: n, Title: n.Title()}
}

// SnapshotResponse is the JSON shape of GET /notes and of subscription frames.
type SnapshotResponse struct {
	Type  string          `json:"type,omitempty"`
	Rev   uint64          `json:"rev"`
	Notes []*NoteResponse `json:"notes"`
}

// FrameTypeSnapshot tags snapshot frames on the live subscription.
const FrameTypeSnapshot = "snapshot"

// ToSnapshotResponse renders a snapshot for the wire.
func ToSnapshotResponse(s *Snapshot) *SnapshotResponse {
	out := &SnapshotResponse{Rev: s.Rev, Notes: make([]*NoteResponse, 0, len(s.Notes))}
	for _, n := range s.Notes {
		out.Notes = append(out.Notes, ToResponse(n))
	}
	return out
}
