package metric

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request handling time in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	wsActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	openRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_open_rooms",
			Help: "Number of rooms with at least one member",
		},
	)

	relayedUpdatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_document_updates_total",
			Help: "Document update frames fanned out to room members",
		},
	)

	droppedUpdatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_dropped_updates_total",
			Help: "Document update frames dropped while a room was restoring",
		},
	)

	presenceUpdatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_presence_updates_total",
			Help: "Presence frames broadcast to room members",
		},
	)

	snapshotsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_snapshots_total",
			Help: "Snapshot captures and restores by outcome",
		},
		[]string{"op", "outcome"},
	)
)

func RecordHTTPMetrics(method, endpoint string, status int, duration time.Duration) {
	strStatus := strconv.Itoa(status)

	httpRequestsTotal.WithLabelValues(method, endpoint, strStatus).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, strStatus).Observe(duration.Seconds())
}

func IncrementWSActiveConnections() {
	wsActiveConnections.Inc()
}

func DecrementWSActiveConnections() {
	wsActiveConnections.Dec()
}

func SetOpenRooms(count int) {
	openRooms.Set(float64(count))
}

func IncrementRelayedUpdates() {
	relayedUpdatesTotal.Inc()
}

func IncrementDroppedUpdates() {
	droppedUpdatesTotal.Inc()
}

func IncrementPresenceUpdates() {
	presenceUpdatesTotal.Inc()
}

func RecordSnapshotOp(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}

	snapshotsTotal.WithLabelValues(op, outcome).Inc()
}
