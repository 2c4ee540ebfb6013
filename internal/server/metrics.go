// Package server exports Prometheus metrics for rooms, sessions, connections
// and event delivery.
package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Tyrowin/roomchat/internal/chat"
)

const metricsNamespace = "roomchat"

// Metrics records server activity. It implements chat.Observer.
type Metrics struct {
	roomsActive      prometheus.Gauge
	sessionsActive   prometheus.Gauge
	connections      prometheus.Gauge
	eventsTotal      *prometheus.CounterVec
	rejectedTotal    *prometheus.CounterVec
	deliveryFailures *prometheus.CounterVec
	framesDropped    *prometheus.CounterVec
}

var _ chat.Observer = (*Metrics)(nil)

// NewMetrics registers the server metrics with registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		roomsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "rooms_active",
			Help:      "Number of rooms currently held by the registry",
		}),
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_active",
			Help:      "Number of live client sessions",
		}),
		connections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "connections_active",
			Help:      "Number of WebSocket connections registered with the hub",
		}),
		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_committed_total",
			Help:      "Room events committed, by kind",
		}, []string{"kind"}),
		rejectedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "operations_rejected_total",
			Help:      "Client operations rejected, by error code",
		}, []string{"code"}),
		deliveryFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "delivery_failures_total",
			Help:      "Events that could not be queued for a recipient, by kind",
		}, []string{"kind"}),
		framesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_dropped_total",
			Help:      "Inbound frames discarded before reaching a room, by reason",
		}, []string{"reason"}),
	}
}

// RoomOpened counts a room added to the registry.
func (m *Metrics) RoomOpened(string) { m.roomsActive.Inc() }

// RoomClosed counts a room removed from the registry.
func (m *Metrics) RoomClosed(string) { m.roomsActive.Dec() }

// SessionOpened counts a new client session.
func (m *Metrics) SessionOpened() { m.sessionsActive.Inc() }

// SessionClosed counts a session torn down on disconnect.
func (m *Metrics) SessionClosed() { m.sessionsActive.Dec() }

// EventCommitted counts a room event by kind.
func (m *Metrics) EventCommitted(kind chat.EventKind) {
	m.eventsTotal.WithLabelValues(string(kind)).Inc()
}

// OperationRejected counts a rejected client operation by error code.
func (m *Metrics) OperationRejected(code string) {
	m.rejectedTotal.WithLabelValues(code).Inc()
}

func (m *Metrics) deliveryFailed(kind chat.EventKind) {
	m.deliveryFailures.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) frameDropped(reason string) {
	m.framesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) connectionOpened() { m.connections.Inc() }

func (m *Metrics) connectionClosed() { m.connections.Dec() }
