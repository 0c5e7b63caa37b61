package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the notes server.
type Metrics struct {
	NotesWritten    *prometheus.CounterVec
	LiveSubscribers prometheus.Gauge
	SnapshotsSent   prometheus.Counter
	FeedErrors      *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	StoreDuration   *prometheus.HistogramVec
}

// New creates and registers all metrics on reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not collide.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		NotesWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notesync_notes_written_total",
			Help: "Note mutations accepted by the store, by kind",
		}, []string{"kind"}),
		LiveSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "notesync_live_subscribers",
			Help: "Open snapshot subscriptions",
		}),
		SnapshotsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "notesync_snapshots_sent_total",
			Help: "Snapshots delivered to subscribers",
		}),
		FeedErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notesync_feed_errors_total",
			Help: "Change feed publish/consume failures, by backend",
		}, []string{"backend"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notesync_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route pattern",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"method", "route"}),
		StoreDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notesync_store_operation_duration_seconds",
			Help:    "Latency of note store operations",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"op"}),
	}
}

// IncrementNotesWritten records one accepted mutation of the given kind.
func (m *Metrics) IncrementNotesWritten(kind string) {
	if m == nil {
		return
	}
	m.NotesWritten.WithLabelValues(kind).Inc()
}

// SubscriberOpened and SubscriberClosed track live subscriptions.
func (m *Metrics) SubscriberOpened() {
	if m == nil {
		return
	}
	m.LiveSubscribers.Inc()
}

func (m *Metrics) SubscriberClosed() {
	if m == nil {
		return
	}
	m.LiveSubscribers.Dec()
}

// IncrementSnapshotsSent records one delivered snapshot.
func (m *Metrics) IncrementSnapshotsSent() {
	if m == nil {
		return
	}
	m.SnapshotsSent.Inc()
}

// IncrementFeedErrors records a feed failure on backend.
func (m *Metrics) IncrementFeedErrors(backend string) {
	if m == nil {
		return
	}
	m.FeedErrors.WithLabelValues(backend).Inc()
}

// ObserveRequest records the duration of an HTTP request.
// Call with time.Now() at the start of the request.
func (m *Metrics) ObserveRequest(method, route string, start time.Time) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
}

// ObserveStore records the duration of a store operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveStore(op string, start time.Time) {
	if m == nil {
		return
	}
	m.StoreDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
