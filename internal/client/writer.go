package client

import (
	"context"
	"sync"
	"time"

	"notesync/internal/notes/models"
)

// DefaultDebounce is the idle period before a pending edit is written.
const DefaultDebounce = 500 * time.Millisecond

// BodyUpdater is the slice of Remote the writer needs.
type BodyUpdater interface {
	UpdateBody(ctx context.Context, id, body string) (*models.Note, error)
}

// DebouncedWriter buffers edits to the current note in a temporary field and
// writes them back once typing has been idle for the debounce period. A write
// is skipped when the text equals the note's known body.
type DebouncedWriter struct {
	remote       BodyUpdater
	debouncer    *Debouncer
	writeTimeout time.Duration
	onError      func(noteID string, err error)

	// writeMu keeps at most one UpdateBody in flight so writes land in edit order.
	writeMu sync.Mutex

	mu     sync.Mutex
	noteID string
	base   string
	temp   string
	dirty  bool
	closed bool
	// inflight is set while UpdateBody runs; temp then holds text the remote
	// has not acknowledged yet.
	inflight bool
	// ackedAt is the UpdatedAt of the newest body known for noteID. Snapshots
	// carrying an older body were built before that write committed.
	ackedAt int64
}

// NewDebouncedWriter constructs a writer that waits delay after the last edit.
func NewDebouncedWriter(remote BodyUpdater, delay time.Duration, onError func(noteID string, err error)) *DebouncedWriter {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	if onError == nil {
		onError = func(string, error) {}
	}
	return &DebouncedWriter{
		remote:       remote,
		debouncer:    NewDebouncer(delay),
		writeTimeout: 10 * time.Second,
		onError:      onError,
	}
}

// Edit replaces the temporary text and restarts the idle timer.
func (w *DebouncedWriter) Edit(text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	if w.noteID == "" {
		return ErrNoNote
	}
	w.temp = text
	w.dirty = true
	w.debouncer.Debounce(w.fire)
	return nil
}

// Text is the editor's current text for the target note.
func (w *DebouncedWriter) Text() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.temp
}

// NoteID is the note edits currently apply to.
func (w *DebouncedWriter) NoteID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.noteID
}

// Pending reports whether an edit is waiting to be written.
func (w *DebouncedWriter) Pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dirty && w.temp != w.base
}

// Retarget points the writer at note. Switching to a different note first
// writes any pending edit for the previous one, then resets the temporary
// text to the new note's body. For the same note the remote body only
// replaces the editor text when nothing is pending or in flight, and bodies
// older than the last acknowledged write are ignored.
func (w *DebouncedWriter) Retarget(ctx context.Context, note *models.Note) error {
	newID, newBody, newAt := "", "", int64(0)
	if note != nil {
		newID, newBody, newAt = note.ID, note.Body, note.UpdatedAt
	}

	w.mu.Lock()
	if newID != "" && newID == w.noteID {
		if newAt >= w.ackedAt {
			w.base = newBody
			w.ackedAt = newAt
			if !w.dirty && !w.inflight {
				w.temp = newBody
			}
		}
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	w.debouncer.Cancel()
	err := w.flush(ctx)

	w.mu.Lock()
	w.noteID = newID
	w.base = newBody
	w.temp = newBody
	w.ackedAt = newAt
	w.dirty = false
	w.mu.Unlock()
	return err
}

// Discard drops a pending edit for id without writing it.
func (w *DebouncedWriter) Discard(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.noteID != id {
		return
	}
	w.debouncer.Cancel()
	w.dirty = false
	w.temp = w.base
}

// Flush writes any pending edit now.
func (w *DebouncedWriter) Flush(ctx context.Context) error {
	w.debouncer.Cancel()
	return w.flush(ctx)
}

// Close flushes and stops accepting edits.
func (w *DebouncedWriter) Close(ctx context.Context) error {
	err := w.Flush(ctx)
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return err
}

func (w *DebouncedWriter) fire() {
	ctx, cancel := context.WithTimeout(context.Background(), w.writeTimeout)
	defer cancel()
	_ = w.flush(ctx)
}

func (w *DebouncedWriter) flush(ctx context.Context) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.mu.Lock()
	if !w.dirty || w.noteID == "" {
		w.mu.Unlock()
		return nil
	}
	id, text := w.noteID, w.temp
	w.dirty = false
	if text == w.base {
		w.mu.Unlock()
		return nil
	}
	w.inflight = true
	w.mu.Unlock()

	note, err := w.remote.UpdateBody(ctx, id, text)

	w.mu.Lock()
	w.inflight = false
	if err != nil {
		// Keep the edit for the next flush unless the user moved on.
		if w.noteID == id && !w.dirty {
			w.dirty = true
		}
		w.mu.Unlock()
		w.onError(id, err)
		return err
	}
	if w.noteID == id && note != nil && note.UpdatedAt >= w.ackedAt {
		w.base = note.Body
		w.ackedAt = note.UpdatedAt
	}
	w.mu.Unlock()
	return nil
}
