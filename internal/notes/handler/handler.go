package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"notesync/internal/notes/models"
	"notesync/internal/platform/config"
	"notesync/internal/platform/metrics"
	"notesync/internal/platform/middleware"
	dErrors "notesync/pkg/domain-errors"
	"notesync/pkg/platform/httputil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service defines the interface for note operations.
type Service interface {
	Create(ctx context.Context) (*models.Note, error)
	Get(ctx context.Context, id string) (*models.Note, error)
	List(ctx context.Context) (*models.Snapshot, error)
	UpdateBody(ctx context.Context, id, body string) (*models.Note, error)
	Delete(ctx context.Context, id string) error
	Preview(ctx context.Context, id string) (string, error)
	Subscribe(ctx context.Context) (<-chan *models.Snapshot, error)
}

const requestTimeout = 30 * time.Second

// Handler serves the notes collection over REST and WebSocket.
type Handler struct {
	logger   *slog.Logger
	notes    Service
	metrics  *metrics.Metrics
	ws       config.WebSocketConfig
	upgrader websocket.Upgrader
}

// New creates a new notes Handler.
func New(notes Service, logger *slog.Logger, metrics *metrics.Metrics, ws config.WebSocketConfig) *Handler {
	if ws.PingInterval <= 0 {
		ws.PingInterval = 30 * time.Second
	}
	if ws.PongWait <= ws.PingInterval {
		ws.PongWait = 2 * ws.PingInterval
	}
	return &Handler{
		logger:  logger,
		notes:   notes,
		metrics: metrics,
		ws:      ws,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Register registers the notes routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	notesRouter := chi.NewRouter()
	notesRouter.Use(middleware.Recovery(h.logger))
	notesRouter.Use(middleware.RequestID)
	notesRouter.Use(middleware.Logger(h.logger))
	notesRouter.Use(middleware.RequestTime)

	// Long-lived; no request timeout or latency histogram.
	notesRouter.Get("/notes/subscribe", h.handleSubscribe)

	notesRouter.Group(func(rest chi.Router) {
		rest.Use(middleware.Timeout(requestTimeout))
		rest.Use(middleware.LatencyMiddleware(h.metrics))
		rest.Use(middleware.ContentTypeJSON)
		rest.Get("/notes", h.handleList)
		rest.Post("/notes", h.handleCreate)
		rest.Get("/notes/{id}", h.handleGet)
		rest.Put("/notes/{id}", h.handleUpdate)
		rest.Delete("/notes/{id}", h.handleDelete)
		rest.Get("/notes/{id}/preview", h.handlePreview)
	})

	r.Mount("/", notesRouter)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snap, err := h.notes.List(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to list notes")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToSnapshotResponse(snap))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	note, err := h.notes.Create(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to create note")
		return
	}
	w.Header().Set("Location", "/notes/"+note.ID)
	httputil.WriteJSON(w, http.StatusCreated, models.ToResponse(note))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	note, err := h.notes.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to get note")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToResponse(note))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.UpdateNoteRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	note, err := h.notes.UpdateBody(ctx, chi.URLParam(r, "id"), *req.Body)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to update note")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToResponse(note))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.notes.Delete(ctx, chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(ctx, w, err, "failed to delete note")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, err := h.notes.Preview(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to render note")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(page))
}

// writeServiceError logs client errors at warn and everything else at error,
// then renders the domain error.
func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	requestID := middleware.GetRequestID(ctx)
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal, dErrors.CodeUnavailable, dErrors.CodeTimeout:
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestID,
			"error", err.Error(),
		)
	default:
		h.logger.WarnContext(ctx, msg,
			"request_id", requestID,
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
