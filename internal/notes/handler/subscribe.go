package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"notesync/internal/notes/models"
	"notesync/internal/platform/middleware"
	dErrors "notesync/pkg/domain-errors"
)

const (
	writeWait = 10 * time.Second
	// Clients only send control frames.
	maxInboundMessage = 512
)

// handleSubscribe upgrades to a WebSocket and pushes a snapshot frame for the
// current collection and again after every change. The server pings every
// PingInterval and drops the connection when no pong arrives within PongWait.
func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		return
	}
	defer conn.Close()

	// The hijacked connection outlives the request context's usefulness;
	// the read loop below is what notices a departed client.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	snaps, err := h.notes.Subscribe(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to open subscription",
			"request_id", requestID,
			"error", err.Error(),
		)
		h.closeWith(conn, websocket.CloseInternalServerErr, dErrors.MessageOf(err))
		return
	}

	h.logger.InfoContext(ctx, "subscriber connected", "request_id", requestID)
	defer h.logger.InfoContext(ctx, "subscriber disconnected", "request_id", requestID)

	conn.SetReadLimit(maxInboundMessage)
	_ = conn.SetReadDeadline(time.Now().Add(h.ws.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.ws.PongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.ws.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeWith(conn, websocket.CloseNormalClosure, "")
			return
		case snap, ok := <-snaps:
			if !ok {
				h.closeWith(conn, websocket.CloseGoingAway, "subscription ended")
				return
			}
			frame := models.ToSnapshotResponse(snap)
			frame.Type = models.FrameTypeSnapshot
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(frame); err != nil {
				h.logger.WarnContext(ctx, "failed to write snapshot frame",
					"request_id", requestID,
					"error", err.Error(),
				)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (h *Handler) closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
