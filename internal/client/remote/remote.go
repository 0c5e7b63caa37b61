// Package remote implements client.Remote against the notesync server: REST
// for CRUD and a WebSocket for live snapshots.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"notesync/internal/client"
	"notesync/internal/notes/models"
	dErrors "notesync/pkg/domain-errors"
	"notesync/pkg/platform/httputil"
)

const (
	// Servers ping every 30s by default.
	readWait  = 90 * time.Second
	writeWait = 10 * time.Second
)

// Client talks to one notesync server.
type Client struct {
	base   *url.URL
	http   *http.Client
	dialer *websocket.Dialer
	logger *slog.Logger

	minBackoff time.Duration
	maxBackoff time.Duration

	streams atomic.Uint64
}

var _ client.Remote = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithBackoff bounds the reconnect delay.
func WithBackoff(min, max time.Duration) Option {
	return func(c *Client) {
		c.minBackoff = min
		c.maxBackoff = max
	}
}

// New constructs a client for the server at serverURL (http or https).
func New(serverURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("server url must be http or https, got %q", serverURL)
	}
	c := &Client{
		base:       base,
		http:       &http.Client{Timeout: 15 * time.Second},
		dialer:     websocket.DefaultDialer,
		logger:     slog.Default(),
		minBackoff: 250 * time.Millisecond,
		maxBackoff: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Create adds a note with the default body.
func (c *Client) Create(ctx context.Context) (*models.Note, error) {
	var resp models.NoteResponse
	if err := c.do(ctx, http.MethodPost, "/notes", nil, http.StatusCreated, &resp); err != nil {
		return nil, err
	}
	return resp.Note, nil
}

// Get fetches one note.
func (c *Client) Get(ctx context.Context, id string) (*models.Note, error) {
	var resp models.NoteResponse
	if err := c.do(ctx, http.MethodGet, notePath(id), nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return resp.Note, nil
}

// List fetches the whole collection once.
func (c *Client) List(ctx context.Context) (*models.Snapshot, error) {
	var resp models.SnapshotResponse
	if err := c.do(ctx, http.MethodGet, "/notes", nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return toSnapshot(&resp), nil
}

// UpdateBody merge-writes body into the note.
func (c *Client) UpdateBody(ctx context.Context, id, body string) (*models.Note, error) {
	var resp models.NoteResponse
	req := models.UpdateNoteRequest{Body: &body}
	if err := c.do(ctx, http.MethodPut, notePath(id), req, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return resp.Note, nil
}

// Delete removes the note. Deleting a missing note succeeds.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, notePath(id), nil, http.StatusNoContent, nil)
}

// Subscribe streams snapshots to onSnapshot until unsubscribe is called or
// ctx ends, reconnecting with exponential backoff. Each connection is a new
// stream. Unsubscribe waits for the stream goroutine to exit.
func (c *Client) Subscribe(ctx context.Context, onSnapshot func(client.SnapshotEvent)) (func(), error) {
	if onSnapshot == nil {
		return nil, fmt.Errorf("onSnapshot is required")
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.subscribeLoop(ctx, onSnapshot)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

func (c *Client) subscribeLoop(ctx context.Context, onSnapshot func(client.SnapshotEvent)) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.minBackoff
	b.MaxInterval = c.maxBackoff
	b.MaxElapsedTime = 0
	b.Reset()

	for {
		err := c.stream(ctx, b, onSnapshot)
		if ctx.Err() != nil {
			return
		}
		wait := b.NextBackOff()
		c.logger.WarnContext(ctx, "subscription dropped, reconnecting",
			"error", err,
			"retry_in", wait.String(),
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// stream runs one WebSocket connection until it fails or ctx ends.
func (c *Client) stream(ctx context.Context, b backoff.BackOff, onSnapshot func(client.SnapshotEvent)) error {
	conn, _, err := c.dialer.DialContext(ctx, c.wsURL(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			_ = conn.Close()
		case <-stop:
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	streamID := c.streams.Add(1)
	connected := false
	for {
		var frame models.SnapshotResponse
		if err := conn.ReadJSON(&frame); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		if frame.Type != models.FrameTypeSnapshot {
			continue
		}
		if !connected {
			connected = true
			b.Reset()
		}
		onSnapshot(client.SnapshotEvent{Stream: streamID, Snapshot: toSnapshot(&frame)})
	}
}

func (c *Client) wsURL() string {
	u := c.base.JoinPath("notes", "subscribe")
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, in any, want int, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	// path is already escaped; JoinPath keeps Path and RawPath consistent.
	u := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "notes server unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// decodeError turns an error envelope back into a domain error.
func decodeError(resp *http.Response) error {
	var env httputil.ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &env); err != nil || env.Error == "" {
		return dErrors.New(dErrors.CodeInternal, fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}
	msg := env.ErrorDescription
	if msg == "" {
		msg = fmt.Sprintf("server returned %d", resp.StatusCode)
	}
	return dErrors.New(dErrors.Code(env.Error), msg)
}

func notePath(id string) string {
	return "/notes/" + url.PathEscape(id)
}

func toSnapshot(resp *models.SnapshotResponse) *models.Snapshot {
	snap := &models.Snapshot{Rev: resp.Rev, Notes: make([]*models.Note, 0, len(resp.Notes))}
	for _, n := range resp.Notes {
		if n != nil && n.Note != nil {
			snap.Notes = append(snap.Notes, n.Note)
		}
	}
	return snap
}
