// Package changefeed fans note mutations out to live subscribers.
//
// A Feed carries models.Change values from the service that performed a
// write to every open subscription, possibly in other server replicas when
// the Redis or Kafka backend is used. Subscribers only need to know that the
// collection moved, so each subscription holds at most one pending change
// and a slow reader never blocks a publisher.
package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"notesync/internal/notes/models"
	"notesync/internal/platform/metrics"
	"notesync/pkg/platform/sentinel"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = sentinel.ErrClosed

// Feed publishes changes and hands out subscriptions.
type Feed interface {
	Publish(ctx context.Context, change models.Change) error
	Subscribe() *Subscription
	// Run pumps changes from the backend into local subscriptions until ctx ends.
	Run(ctx context.Context) error
	Close() error
}

// Option configures a feed backend.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// WithLogger sets the logger used for consume/publish failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics counts feed failures per backend.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func newOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Subscription receives coalesced changes on C until closed.
type Subscription struct {
	ch   chan models.Change
	hub  *Hub
	once sync.Once
}

// C returns the receive side. It is closed when the subscription or the hub closes.
func (s *Subscription) C() <-chan models.Change {
	return s.ch
}

// Close detaches the subscription from its hub. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.remove(s)
}

// Hub is the in-process fan-out shared by every backend.
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a new subscription. Subscribing to a closed hub
// returns a subscription whose channel is already closed.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{ch: make(chan models.Change, 1), hub: h}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.once.Do(func() { close(sub.ch) })
		return sub
	}
	h.subs[sub] = struct{}{}
	return sub
}

// Broadcast delivers change to every subscription. When a subscriber still
// has an unread change, the pending one is replaced by the newer one.
func (h *Hub) Broadcast(change models.Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub.ch <- change:
			continue
		default:
		}
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- change:
		default:
		}
	}
}

// Len reports the number of open subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Closed reports whether Close has been called.
func (h *Hub) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Close closes every subscription channel. Later Subscribe calls get closed channels.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for sub := range h.subs {
		delete(h.subs, sub)
		sub.once.Do(func() { close(sub.ch) })
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, sub)
	sub.once.Do(func() { close(sub.ch) })
}

func encodeChange(change models.Change) ([]byte, error) {
	payload, err := json.Marshal(change)
	if err != nil {
		return nil, fmt.Errorf("encode change: %w", err)
	}
	return payload, nil
}

func decodeChange(payload []byte) (models.Change, error) {
	var change models.Change
	if err := json.Unmarshal(payload, &change); err != nil {
		return models.Change{}, fmt.Errorf("decode change: %w", err)
	}
	if change.Kind == "" {
		return models.Change{}, fmt.Errorf("decode change: missing kind")
	}
	return change, nil
}
