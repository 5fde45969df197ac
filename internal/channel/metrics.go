package channel

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the channel. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	state             prometheus.Gauge
	connectionsTotal  prometheus.Counter
	reconnectAttempts prometheus.Counter
	fallbacksTotal    prometheus.Counter
	messagesReceived  *prometheus.CounterVec
	messagesDropped   *prometheus.CounterVec
	pollsTotal        *prometheus.CounterVec
	heartbeatLatency  prometheus.Gauge
}

// NewMetrics creates the channel collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "graphwatch",
			Subsystem: "channel",
			Name:      "state",
			Help:      "Current channel state (0 idle, 1 connecting, 2 open, 3 closed, 4 errored, 5 polling)",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "graphwatch",
			Subsystem: "channel",
			Name:      "connections_total",
			Help:      "Total successful websocket connections",
		}),
		reconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "graphwatch",
			Subsystem: "channel",
			Name:      "reconnect_attempts_total",
			Help:      "Total reconnects scheduled",
		}),
		fallbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "graphwatch",
			Subsystem: "channel",
			Name:      "polling_fallbacks_total",
			Help:      "Total transitions into polling fallback",
		}),
		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graphwatch",
			Subsystem: "channel",
			Name:      "messages_received_total",
			Help:      "Total decoded messages by type",
		}, []string{"type"}),
		messagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graphwatch",
			Subsystem: "channel",
			Name:      "messages_dropped_total",
			Help:      "Total inbound frames dropped",
		}, []string{"reason"}),
		pollsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graphwatch",
			Subsystem: "channel",
			Name:      "polls_total",
			Help:      "Total fallback polls by result",
		}, []string{"result"}),
		heartbeatLatency: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "graphwatch",
			Subsystem: "channel",
			Name:      "heartbeat_latency_seconds",
			Help:      "Round trip of the last ping/pong",
		}),
	}

	reg.MustRegister(
		m.state,
		m.connectionsTotal,
		m.reconnectAttempts,
		m.fallbacksTotal,
		m.messagesReceived,
		m.messagesDropped,
		m.pollsTotal,
		m.heartbeatLatency,
	)
	return m
}

func (m *Metrics) setState(s State) {
	if m != nil {
		m.state.Set(float64(s))
	}
}

func (m *Metrics) connected() {
	if m != nil {
		m.connectionsTotal.Inc()
	}
}

func (m *Metrics) reconnectScheduled() {
	if m != nil {
		m.reconnectAttempts.Inc()
	}
}

func (m *Metrics) fellBack() {
	if m != nil {
		m.fallbacksTotal.Inc()
	}
}

func (m *Metrics) received(t MessageType) {
	if m != nil {
		m.messagesReceived.WithLabelValues(string(t)).Inc()
	}
}

func (m *Metrics) dropped(reason string) {
	if m != nil {
		m.messagesDropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) polled(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.pollsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) latency(seconds float64) {
	if m != nil {
		m.heartbeatLatency.Set(seconds)
	}
}
