package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"notesync/internal/notes/changefeed"
	"notesync/internal/notes/models"
	"notesync/internal/notes/store"
	"notesync/internal/platform/metrics"
	dErrors "notesync/pkg/domain-errors"
	"notesync/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks NoteStore,ChangeFeed,Renderer

type NoteStore interface {
	Create(ctx context.Context, note *models.Note) error
	FindByID(ctx context.Context, id string) (*models.Note, error)
	List(ctx context.Context) ([]*models.Note, error)
	MergeBody(ctx context.Context, id, body string, updatedAt int64) (*models.Note, error)
	Delete(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context) (int, error)
}

type ChangeFeed interface {
	Publish(ctx context.Context, change models.Change) error
	Subscribe() *changefeed.Subscription
}

type Renderer interface {
	Page(title string, source []byte) (string, error)
}

// Service owns the note collection: CRUD, snapshots and live subscriptions.
type Service struct {
	notes    NoteStore
	feed     ChangeFeed
	renderer Renderer
	logger   *slog.Logger
	metrics  *metrics.Metrics
	clock    func() time.Time
	tracer   trace.Tracer

	// rev numbers every snapshot this process builds.
	rev atomic.Uint64
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithRenderer(r Renderer) Option {
	return func(s *Service) {
		s.renderer = r
	}
}

// WithClock overrides the request-scoped clock, for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// New constructs a Service.
func New(notes NoteStore, feed ChangeFeed, opts ...Option) *Service {
	s := &Service{
		notes:  notes,
		feed:   feed,
		logger: slog.Default(),
		tracer: otel.Tracer("notesync/notes"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create adds a note with the default body.
func (s *Service) Create(ctx context.Context) (_ *models.Note, err error) {
	ctx, span := s.tracer.Start(ctx, "notes.Create")
	defer func() { endSpan(span, err) }()

	note, err := models.NewNote(uuid.NewString(), s.now(ctx))
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("note.id", note.ID))

	start := time.Now()
	err = s.notes.Create(ctx, note)
	s.metrics.ObserveStore("create", start)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "note already exists")
		}
		return nil, storeErr(err, "failed to create note")
	}

	s.committed(ctx, models.ChangeCreated, note.ID, note.UpdatedAt)
	return note, nil
}

// Get returns one note.
func (s *Service) Get(ctx context.Context, id string) (_ *models.Note, err error) {
	ctx, span := s.tracer.Start(ctx, "notes.Get", trace.WithAttributes(attribute.String("note.id", id)))
	defer func() { endSpan(span, err) }()

	if err := validateID(id); err != nil {
		return nil, err
	}

	start := time.Now()
	note, err := s.notes.FindByID(ctx, id)
	s.metrics.ObserveStore("find", start)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "note not found")
		}
		return nil, storeErr(err, "failed to load note")
	}
	return note, nil
}

// List returns the whole collection as a snapshot with a fresh revision.
func (s *Service) List(ctx context.Context) (_ *models.Snapshot, err error) {
	ctx, span := s.tracer.Start(ctx, "notes.List")
	defer func() { endSpan(span, err) }()

	start := time.Now()
	notes, err := s.notes.List(ctx)
	s.metrics.ObserveStore("list", start)
	if err != nil {
		return nil, storeErr(err, "failed to list notes")
	}
	snap := &models.Snapshot{Rev: s.rev.Add(1), Notes: notes}
	span.SetAttributes(attribute.Int64("snapshot.rev", int64(snap.Rev)), attribute.Int("snapshot.size", len(notes)))
	return snap, nil
}

// UpdateBody merge-writes body into the note, creating it when missing.
func (s *Service) UpdateBody(ctx context.Context, id, body string) (_ *models.Note, err error) {
	ctx, span := s.tracer.Start(ctx, "notes.UpdateBody", trace.WithAttributes(attribute.String("note.id", id)))
	defer func() { endSpan(span, err) }()

	if err := validateID(id); err != nil {
		return nil, err
	}
	if err := models.ValidateBody(body); err != nil {
		return nil, err
	}

	start := time.Now()
	note, err := s.notes.MergeBody(ctx, id, body, s.now(ctx).UnixMilli())
	s.metrics.ObserveStore("merge", start)
	if err != nil {
		return nil, storeErr(err, "failed to update note")
	}

	s.committed(ctx, models.ChangeUpdated, note.ID, note.UpdatedAt)
	return note, nil
}

// Delete removes a note. Deleting a missing note succeeds.
func (s *Service) Delete(ctx context.Context, id string) (err error) {
	ctx, span := s.tracer.Start(ctx, "notes.Delete", trace.WithAttributes(attribute.String("note.id", id)))
	defer func() { endSpan(span, err) }()

	if err := validateID(id); err != nil {
		return err
	}

	start := time.Now()
	deleted, err := s.notes.Delete(ctx, id)
	s.metrics.ObserveStore("delete", start)
	if err != nil {
		return storeErr(err, "failed to delete note")
	}
	if deleted {
		s.committed(ctx, models.ChangeDeleted, id, s.now(ctx).UnixMilli())
	}
	return nil
}

// Count reports the collection size.
func (s *Service) Count(ctx context.Context) (int, error) {
	n, err := s.notes.Count(ctx)
	if err != nil {
		return 0, storeErr(err, "failed to count notes")
	}
	return n, nil
}

// Preview renders the note as an HTML page.
func (s *Service) Preview(ctx context.Context, id string) (string, error) {
	if s.renderer == nil {
		return "", dErrors.New(dErrors.CodeUnavailable, "preview is not configured")
	}
	note, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	page, err := s.renderer.Page(note.Title(), []byte(note.Body))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to render note")
	}
	return page, nil
}

// committed logs, counts and publishes a successful mutation. A failed
// publish is logged; the write stands.
func (s *Service) committed(ctx context.Context, kind models.ChangeKind, id string, at int64) {
	s.logEvent(ctx, "note_"+string(kind), "note_id", id)
	s.metrics.IncrementNotesWritten(string(kind))

	if s.feed == nil {
		return
	}
	change := models.Change{Kind: kind, NoteID: id, At: at}
	if err := s.feed.Publish(ctx, change); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish note change",
			"note_id", id,
			"kind", kind,
			"error", err,
		)
	}
}

func (s *Service) logEvent(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	if ip := requestcontext.ClientIP(ctx); ip != "" {
		attributes = append(attributes, "client_ip", ip)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, append(attributes, "event", event)...)
	}
}

// now is the request's pinned time unless a clock was injected.
func (s *Service) now(ctx context.Context) time.Time {
	if s.clock != nil {
		return s.clock()
	}
	return requestcontext.Now(ctx)
}

// storeErr translates a store failure into a domain error.
func storeErr(err error, msg string) error {
	if errors.Is(err, store.ErrUnavailable) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "note store unavailable")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "note id is required")
	}
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, dErrors.MessageOf(err))
	}
	span.End()
}
