package hub

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the hub collectors. A nil *Metrics records nothing.
type Metrics struct {
	clients prometheus.Gauge
	drops   prometheus.Counter
}

// NewMetrics creates the hub collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "graphwatch",
			Subsystem: "sse",
			Name:      "clients",
			Help:      "Connected event stream clients",
		}),
		drops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "graphwatch",
			Subsystem: "sse",
			Name:      "dropped_frames_total",
			Help:      "Frames skipped for slow clients or a full broadcast queue",
		}),
	}
	reg.MustRegister(m.clients, m.drops)
	return m
}

func (m *Metrics) setClients(n int) {
	if m != nil {
		m.clients.Set(float64(n))
	}
}

func (m *Metrics) dropped() {
	if m != nil {
		m.drops.Inc()
	}
}
