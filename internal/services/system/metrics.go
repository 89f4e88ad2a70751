// Package system provides system-level services for monitoring and maintenance.
package system

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nanaya/osu-server-spectator/internal/utils"
)

// MetricsService provides application metrics collection functionality. It
// satisfies the multiplayer coordinator's metrics hooks and also carries the
// HTTP and WebSocket transport metrics.
type MetricsService struct {
	logger *utils.Logger

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// WebSocket metrics
	wsConnectionsTotal prometheus.Counter

	// Multiplayer metrics
	roomsOpenedTotal         prometheus.Counter
	roomsClosedTotal         prometheus.Counter
	roomsActive              prometheus.Gauge
	usersJoinedTotal         prometheus.Counter
	usersLeftTotal           prometheus.Counter
	matchesStartedTotal      prometheus.Counter
	matchesCompletedTotal    prometheus.Counter
	playlistItemsQueuedTotal prometheus.Counter
}

// NewMetricsService creates a new metrics service.
func NewMetricsService(logger *utils.Logger) *MetricsService {
	m := &MetricsService{
		logger: logger.Named("metrics_service"),
	}

	m.initHTTPMetrics()
	m.initWebSocketMetrics()
	m.initMultiplayerMetrics()

	return m
}

// Handler returns an HTTP handler for exposing metrics.
func (m *MetricsService) Handler() http.Handler {
	return promhttp.Handler()
}

// initHTTPMetrics initializes HTTP-related metrics.
func (m *MetricsService) initHTTPMetrics() {
	m.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multiplayer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	m.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "multiplayer_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
}

// initWebSocketMetrics initializes WebSocket-related metrics.
func (m *MetricsService) initWebSocketMetrics() {
	m.wsConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "multiplayer_ws_connections_total",
			Help: "Total number of WebSocket connection attempts",
		},
	)
}

// initMultiplayerMetrics initializes room and match metrics.
func (m *MetricsService) initMultiplayerMetrics() {
	m.roomsOpenedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "multiplayer_rooms_opened_total",
			Help: "Total number of rooms brought live on this server",
		},
	)

	m.roomsClosedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "multiplayer_rooms_closed_total",
			Help: "Total number of rooms ended on this server",
		},
	)

	m.roomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "multiplayer_rooms_active",
			Help: "Number of rooms currently live on this server",
		},
	)

	m.usersJoinedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "multiplayer_users_joined_total",
			Help: "Total number of room joins",
		},
	)

	m.usersLeftTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "multiplayer_users_left_total",
			Help: "Total number of room departures",
		},
	)

	m.matchesStartedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "multiplayer_matches_started_total",
			Help: "Total number of matches started",
		},
	)

	m.matchesCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "multiplayer_matches_completed_total",
			Help: "Total number of matches that reached results",
		},
	)

	m.playlistItemsQueuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "multiplayer_playlist_items_queued_total",
			Help: "Total number of playlist items added to queues",
		},
	)
}

// ObserveHTTPRequest records metrics for a completed HTTP request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, path, http.StatusText(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// WSConnectionOpened records an accepted WebSocket connection.
func (m *MetricsService) WSConnectionOpened() {
	m.wsConnectionsTotal.Inc()
}

// RegisterSessionGauges exposes live session and connection counts as gauges.
// The callbacks are sampled at scrape time.
func (m *MetricsService) RegisterSessionGauges(sessions, connections func() int) {
	promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "multiplayer_sessions_active",
			Help: "Number of live user sessions on this server",
		},
		func() float64 { return float64(sessions()) },
	)

	promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "multiplayer_ws_connections_active",
			Help: "Number of open WebSocket connections",
		},
		func() float64 { return float64(connections()) },
	)
}

// RoomOpened records a room becoming live.
func (m *MetricsService) RoomOpened() {
	m.roomsOpenedTotal.Inc()
	m.roomsActive.Inc()
}

// RoomClosed records a room ending.
func (m *MetricsService) RoomClosed() {
	m.roomsClosedTotal.Inc()
	m.roomsActive.Dec()
}

// UserJoined records a user joining a room.
func (m *MetricsService) UserJoined() {
	m.usersJoinedTotal.Inc()
}

// UserLeft records a user leaving a room.
func (m *MetricsService) UserLeft() {
	m.usersLeftTotal.Inc()
}

// MatchStarted records a match entering the load phase.
func (m *MetricsService) MatchStarted() {
	m.matchesStartedTotal.Inc()
}

// MatchCompleted records a match reaching results.
func (m *MetricsService) MatchCompleted() {
	m.matchesCompletedTotal.Inc()
}

// PlaylistItemQueued records a playlist item being added.
func (m *MetricsService) PlaylistItemQueued() {
	m.playlistItemsQueuedTotal.Inc()
}
