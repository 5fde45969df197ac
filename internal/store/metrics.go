package store

import (
	"errors"

	"graphwatch/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the store collectors. A nil *Metrics records nothing.
type Metrics struct {
	nodes         prometheus.Gauge
	connections   prometheus.Gauge
	incidents     prometheus.Gauge
	version       prometheus.Gauge
	replaces      prometheus.Counter
	appliedTotal  *prometheus.CounterVec
	rejectedTotal *prometheus.CounterVec
}

// NewMetrics creates the store collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		nodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "graphwatch", Subsystem: "store", Name: "nodes",
			Help: "Nodes in the live graph",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "graphwatch", Subsystem: "store", Name: "connections",
			Help: "Connections in the live graph",
		}),
		incidents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "graphwatch", Subsystem: "store", Name: "open_incidents",
			Help: "Open incidents in the live graph",
		}),
		version: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "graphwatch", Subsystem: "store", Name: "view_version",
			Help: "Version of the last published view",
		}),
		replaces: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "graphwatch", Subsystem: "store", Name: "replacements_total",
			Help: "Total accepted full graph replacements",
		}),
		appliedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graphwatch", Subsystem: "store", Name: "changes_applied_total",
			Help: "Total incremental changes applied by kind",
		}, []string{"kind"}),
		rejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graphwatch", Subsystem: "store", Name: "changes_rejected_total",
			Help: "Total rejected writes by reason",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.nodes, m.connections, m.incidents, m.version, m.replaces, m.appliedTotal, m.rejectedTotal)
	return m
}

func (m *Metrics) observe(g *domain.Graph) {
	if m == nil {
		return
	}
	m.nodes.Set(float64(len(g.Nodes)))
	m.connections.Set(float64(len(g.Connections)))
	m.incidents.Set(float64(g.Stats.ActiveIncidents))
}

func (m *Metrics) published(v uint64) {
	if m != nil {
		m.version.Set(float64(v))
	}
}

func (m *Metrics) replaced() {
	if m != nil {
		m.replaces.Inc()
	}
}

func (m *Metrics) applied(kind string) {
	if m != nil {
		m.appliedTotal.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) rejected(reason string) {
	if m != nil {
		m.rejectedTotal.WithLabelValues(reason).Inc()
	}
}

func rejectReason(err error) string {
	if errors.Is(err, ErrUnknownTarget) {
		return "unknown_target"
	}
	return "invalid"
}
