package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"notesync/internal/notes/models"
)

// Workspace composes the subscription manager, the selection, the debounced
// writer and the CRUD calls into the state a notes UI renders from.
type Workspace struct {
	remote    Remote
	logger    *slog.Logger
	subs      *SubscriptionManager
	selection *Selection
	writer    *DebouncedWriter
	timeout   time.Duration

	// retargetMu orders writer retargets coming from snapshots and from the user.
	retargetMu sync.Mutex

	mu        sync.Mutex
	listeners []func()
}

type Option func(*workspaceOptions)

type workspaceOptions struct {
	logger   *slog.Logger
	debounce time.Duration
	timeout  time.Duration
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *workspaceOptions) {
		o.logger = logger
	}
}

// WithDebounce sets the idle period before edits are written.
func WithDebounce(d time.Duration) Option {
	return func(o *workspaceOptions) {
		o.debounce = d
	}
}

// WithTimeout bounds writes triggered by snapshots and selection changes.
func WithTimeout(d time.Duration) Option {
	return func(o *workspaceOptions) {
		o.timeout = d
	}
}

// NewWorkspace constructs a workspace over remote. Call Start to begin syncing.
func NewWorkspace(remote Remote, opts ...Option) *Workspace {
	o := workspaceOptions{
		logger:   slog.Default(),
		debounce: DefaultDebounce,
		timeout:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}

	w := &Workspace{
		remote:    remote,
		logger:    o.logger,
		subs:      NewSubscriptionManager(remote, o.logger),
		selection: &Selection{},
		timeout:   o.timeout,
	}
	w.writer = NewDebouncedWriter(remote, o.debounce, func(noteID string, err error) {
		w.logger.Warn("failed to write note", "note_id", noteID, "error", err)
	})
	w.subs.OnSnapshot(w.onSnapshot)
	return w
}

// Start subscribes to the remote collection.
func (w *Workspace) Start(ctx context.Context) error {
	return w.subs.Start(ctx)
}

// OnChange registers fn to run after the notes or the selection change.
func (w *Workspace) OnChange(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Ready reports whether the first snapshot has arrived.
func (w *Workspace) Ready() bool {
	return w.subs.Ready()
}

// Notes returns the mirrored collection in snapshot order. Empty is a valid state.
func (w *Workspace) Notes() []*models.Note {
	return w.subs.Notes()
}

// CurrentNote is the selected note, else the first note, else nil.
func (w *Workspace) CurrentNote() *models.Note {
	return w.selection.Current(w.subs.Notes())
}

// Text is the editor text for the current note, including unsaved edits.
func (w *Workspace) Text() string {
	return w.writer.Text()
}

// Select makes id the current note. A pending edit for the previous note is
// written first.
func (w *Workspace) Select(ctx context.Context, id string) error {
	w.selection.Select(id)
	w.selection.Reconcile(w.subs.Notes())
	err := w.retarget(ctx, w.CurrentNote())
	w.notify()
	return err
}

// Edit records new text for the current note; it is written once typing pauses.
func (w *Workspace) Edit(text string) error {
	return w.writer.Edit(text)
}

// NewNote creates a note remotely and makes it current.
func (w *Workspace) NewNote(ctx context.Context) (*models.Note, error) {
	note, err := w.remote.Create(ctx)
	if err != nil {
		return nil, err
	}
	w.selection.Select(note.ID)
	// The snapshot carrying the new note may not have arrived yet.
	if err := w.retarget(ctx, note); err != nil {
		w.logger.Warn("failed to flush pending edit", "error", err)
	}
	w.notify()
	return note, nil
}

// DeleteNote deletes id remotely. If it was current, the selection moves to
// the first remaining note once the snapshot without it arrives.
func (w *Workspace) DeleteNote(ctx context.Context, id string) error {
	// A pending write would recreate the note.
	w.writer.Discard(id)
	return w.remote.Delete(ctx, id)
}

// Flush writes any pending edit now.
func (w *Workspace) Flush(ctx context.Context) error {
	return w.writer.Flush(ctx)
}

// Close flushes pending edits and ends the subscription.
func (w *Workspace) Close(ctx context.Context) error {
	err := w.writer.Close(ctx)
	w.subs.Stop()
	return err
}

func (w *Workspace) onSnapshot(notes []*models.Note) {
	w.selection.Reconcile(notes)

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if err := w.retarget(ctx, w.selection.Current(notes)); err != nil {
		w.logger.Warn("failed to flush pending edit", "error", err)
	}
	w.notify()
}

func (w *Workspace) retarget(ctx context.Context, note *models.Note) error {
	w.retargetMu.Lock()
	defer w.retargetMu.Unlock()
	return w.writer.Retarget(ctx, note)
}

func (w *Workspace) notify() {
	w.mu.Lock()
	listeners := append([]func(){}, w.listeners...)
	w.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}
