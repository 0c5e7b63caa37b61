package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	dErrors "notesync/pkg/domain-errors"
	"notesync/pkg/platform/httputil"
)

type counter interface {
	Count(ctx context.Context) (int, error)
}

type healthResponse struct {
	Status string `json:"status"`
	Notes  int    `json:"notes"`
}

// healthz reports liveness and that the store answers.
func healthz(notes counter, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		n, err := notes.Count(ctx)
		if err != nil {
			log.WarnContext(ctx, "health check failed", "error", err)
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "store unavailable"))
			return
		}
		httputil.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok", Notes: n})
	}
}
