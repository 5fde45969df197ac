package timeline

import (
	"context"
	"math/rand/v2"
	"time"

	"graphwatch/internal/domain"
)

// Synthesizer derives a plausible history from the current graph when no
// recorded history exists. Each snapshot is seeded by its timestamp, so the
// same range always yields the same sequence.
type Synthesizer struct {
	// Source returns the graph to vary; it is only read
	Source func() *domain.Graph
	// Seed is mixed into every timestamp seed
	Seed uint64
}

// Name implements Loader
func (s Synthesizer) Name() string { return "synthetic" }

// Load implements Loader
func (s Synthesizer) Load(ctx context.Context, from, to time.Time, interval time.Duration) ([]domain.Snapshot, error) {
	if interval <= 0 || to.Before(from) {
		return nil, ErrInvalidRange
	}
	base := s.Source()
	if base == nil || len(base.Nodes) == 0 {
		return nil, nil
	}

	var out []domain.Snapshot
	for _, ts := range SampleTimes(from, to, interval) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, s.at(base, ts))
	}
	return out, nil
}

// SampleTimes returns the interval-aligned instants within [from, to]
func SampleTimes(from, to time.Time, interval time.Duration) []time.Time {
	if interval <= 0 || to.Before(from) {
		return nil
	}
	t := from.Truncate(interval)
	if t.Before(from) {
		t = t.Add(interval)
	}
	var out []time.Time
	for ; !t.After(to); t = t.Add(interval) {
		out = append(out, t)
	}
	return out
}

var driftStatuses = []domain.NodeStatus{
	domain.NodeStatusActive,
	domain.NodeStatusBusy,
	domain.NodeStatusIdle,
}

func (s Synthesizer) at(base *domain.Graph, ts time.Time) domain.Snapshot {
	rng := rand.New(rand.NewPCG(uint64(ts.Unix()), s.Seed))
	g := base.Clone()

	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.Status.Live() && rng.Float64() < 0.2 {
			n.Status = driftStatuses[rng.IntN(len(driftStatuses))]
		}
		m := &n.Metrics
		m.CPUPercent = clamp(m.CPUPercent*jitter(rng), 0, 100)
		m.MessagesPerSecond *= jitter(rng)
		m.ErrorRate = clamp(m.ErrorRate*jitter(rng), 0, 1)
		m.TasksQueued = max(0, m.TasksQueued+int64(rng.IntN(3))-1)
		if n.Status.Live() {
			m.LastActive = ts
		}
	}
	for i := range g.Connections {
		c := &g.Connections[i]
		c.Traffic.MessagesPerSecond *= jitter(rng)
		c.Traffic.BytesPerSecond *= jitter(rng)
		c.Traffic.LatencyMs *= jitter(rng)
	}

	// only incidents already detected at ts belong to the snapshot
	incidents := g.Incidents[:0]
	for _, inc := range g.Incidents {
		if !inc.DetectedAt.After(ts) {
			incidents = append(incidents, inc)
		}
	}
	g.Incidents = incidents
	g.Refresh()
	return domain.NewSnapshot(g, ts)
}

// jitter returns a factor in [0.8, 1.2)
func jitter(rng *rand.Rand) float64 {
	return 0.8 + 0.4*rng.Float64()
}

func clamp(v, lo, hi float64) float64 {
	return min(hi, max(lo, v))
}
