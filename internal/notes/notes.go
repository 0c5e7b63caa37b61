// Package notes wires the notes collection: models, stores, change feed,
// service and HTTP handler.
package notes

import (
	"log/slog"

	"notesync/internal/notes/handler"
	"notesync/internal/notes/service"
	"notesync/internal/platform/config"
	"notesync/internal/platform/metrics"
	"notesync/internal/render"
)

// Service exposes note CRUD and live snapshots.
type Service = service.Service

// Handler wires HTTP endpoints to the notes service.
type Handler = handler.Handler

// NewService constructs the notes service with a markdown renderer attached.
func NewService(notes service.NoteStore, feed service.ChangeFeed, logger *slog.Logger, m *metrics.Metrics) *Service {
	return service.New(notes, feed,
		service.WithLogger(logger),
		service.WithMetrics(m),
		service.WithRenderer(render.NewRenderer()),
	)
}

// NewHandler constructs the HTTP handler for the notes routes.
func NewHandler(s *Service, logger *slog.Logger, m *metrics.Metrics, ws config.WebSocketConfig) *Handler {
	return handler.New(s, logger, m, ws)
}
