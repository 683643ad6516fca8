// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"matchday/internal/match"
)

// Metrics with bounded cardinality (no per-match or per-agent labels)
var (
	// Engine metrics
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "match_tick_duration_seconds",
		Help:    "Time spent in one match tick",
		Buckets: []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.005, 0.01},
	})

	eventsCommitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "match_events_committed_total",
		Help: "Events appended to match logs",
	}, []string{"kind"}) // Bounded: EventKind names

	conflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "match_conflicts_total",
		Help: "Ownership claims dropped because another claim won the tick",
	})

	stallsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "match_agent_stalls_total",
		Help: "Agent evaluations that produced no decision due to an error",
	})

	// Pool metrics
	matchesRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "matches_running",
		Help: "Matches currently being simulated",
	})

	matchesQueued = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "matches_queued",
		Help: "Matches waiting for a worker",
	})

	matchesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matches_finished_total",
		Help: "Matches that stopped running",
	}, []string{"outcome"}) // Bounded: "completed", "stopped", "failed"

	matchesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matches_rejected_total",
		Help: "Submissions rejected because the queue was full",
	})

	eventSinkDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "match_event_sink_dropped_total",
		Help: "Events that never reached an NDJSON file",
	})

	// DoS detection metrics - use ONLY bounded label values
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // Bounded: "rate_limit", "origin", "ws_limit"

	// HTTP metrics with bounded labels
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint is the route pattern, not the URL

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	// WebSocket metrics
	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket messages sent",
	})
)

// Observer feeds engine telemetry into the collectors. One value serves
// every match; it carries no per-match state.
type Observer struct{}

var _ match.Observer = Observer{}

func (Observer) TickDone(d time.Duration) { tickDuration.Observe(d.Seconds()) }

func (Observer) Committed(kind match.EventKind) {
	eventsCommitted.WithLabelValues(kind.String()).Inc()
}

func (Observer) Conflict() { conflictsTotal.Inc() }
func (Observer) Stall()    { stallsTotal.Inc() }

// MatchStarted moves a match from the queue to running.
func MatchStarted() {
	matchesQueued.Dec()
	matchesRunning.Inc()
}

// MatchQueued counts an accepted submission.
func MatchQueued() { matchesQueued.Inc() }

// MatchRejected counts a submission refused by a full queue.
func MatchRejected() { matchesRejected.Inc() }

// MatchFinished records how a running match ended.
// outcome must be one of: "completed", "stopped", "failed"
func MatchFinished(outcome string) {
	matchesRunning.Dec()
	matchesFinished.WithLabelValues(outcome).Inc()
}

// SinkDropped adds events lost by a file sink.
func SinkDropped(n uint64) {
	if n > 0 {
		eventSinkDropped.Add(float64(n))
	}
}

// RecordConnectionRejected increments the rejection counter
// reason must be one of: "rate_limit", "origin", "ws_limit"
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

// UpdateWSConnections updates WebSocket connection count
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages increments WebSocket message counter
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}
