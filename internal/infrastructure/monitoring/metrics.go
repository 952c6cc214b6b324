package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Frame directions
const (
	DirectionInbound  = "in"
	DirectionOutbound = "out"
)

// Metrics holds the Prometheus collectors for chat sessions.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	SessionsActive    *prometheus.GaugeVec
	StatusTransitions *prometheus.CounterVec

	// Frame metrics
	Frames         *prometheus.CounterVec
	ProtocolErrors *prometheus.CounterVec
	ServerErrors   *prometheus.CounterVec

	// Connection metrics
	ReconnectAttempts *prometheus.CounterVec
	ReconnectGiveUps  *prometheus.CounterVec
	ConnectTimeouts   *prometheus.CounterVec

	// REST metrics
	RESTDuration *prometheus.HistogramVec
}

// NewMetrics creates collectors on a private registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		SessionsActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chat_sessions_active",
				Help: "Number of sessions with an open connection",
			},
			[]string{"feature"},
		),
		StatusTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_status_transitions_total",
				Help: "Connection status transitions by target status",
			},
			[]string{"feature", "status"},
		),
		Frames: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_frames_total",
				Help: "Frames exchanged with the chat server",
			},
			[]string{"feature", "direction", "type"},
		),
		ProtocolErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_protocol_errors_total",
				Help: "Inbound frames dropped because they could not be decoded",
			},
			[]string{"feature"},
		),
		ServerErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_server_errors_total",
				Help: "Error frames reported by the server",
			},
			[]string{"feature"},
		),
		ReconnectAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_reconnect_attempts_total",
				Help: "Scheduled reconnection attempts",
			},
			[]string{"feature"},
		),
		ReconnectGiveUps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_reconnect_giveups_total",
				Help: "Sessions that exhausted their reconnection budget",
			},
			[]string{"feature"},
		),
		ConnectTimeouts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_connect_timeouts_total",
				Help: "Start calls that never reached connected",
			},
			[]string{"feature"},
		),
		RESTDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chat_rest_request_duration_seconds",
				Help:    "Conversation API request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"operation", "status"},
		),
	}
}

// Registry returns the registry the collectors live on
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the registry in Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordFrame records a frame sent or received
func (m *Metrics) RecordFrame(feature, direction, frameType string) {
	if m == nil {
		return
	}
	m.Frames.WithLabelValues(feature, direction, frameType).Inc()
}

// RecordProtocolError records a dropped inbound frame
func (m *Metrics) RecordProtocolError(feature string) {
	if m == nil {
		return
	}
	m.ProtocolErrors.WithLabelValues(feature).Inc()
}

// RecordServerError records a server error frame
func (m *Metrics) RecordServerError(feature string) {
	if m == nil {
		return
	}
	m.ServerErrors.WithLabelValues(feature).Inc()
}

// RecordStatus records a transition to status
func (m *Metrics) RecordStatus(feature, status string) {
	if m == nil {
		return
	}
	m.StatusTransitions.WithLabelValues(feature, status).Inc()
}

// RecordReconnectAttempt records a scheduled retry
func (m *Metrics) RecordReconnectAttempt(feature string) {
	if m == nil {
		return
	}
	m.ReconnectAttempts.WithLabelValues(feature).Inc()
}

// RecordReconnectGiveUp records an exhausted retry budget
func (m *Metrics) RecordReconnectGiveUp(feature string) {
	if m == nil {
		return
	}
	m.ReconnectGiveUps.WithLabelValues(feature).Inc()
}

// RecordConnectTimeout records a Start that timed out
func (m *Metrics) RecordConnectTimeout(feature string) {
	if m == nil {
		return
	}
	m.ConnectTimeouts.WithLabelValues(feature).Inc()
}

// IncSessionsActive increments active sessions for feature
func (m *Metrics) IncSessionsActive(feature string) {
	if m == nil {
		return
	}
	m.SessionsActive.WithLabelValues(feature).Inc()
}

// DecSessionsActive decrements active sessions for feature
func (m *Metrics) DecSessionsActive(feature string) {
	if m == nil {
		return
	}
	m.SessionsActive.WithLabelValues(feature).Dec()
}

// ObserveREST records a conversation API call
func (m *Metrics) ObserveREST(operation, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RESTDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}
