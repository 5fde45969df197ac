package store

import (
	"fmt"
	"slices"

	"graphwatch/internal/domain"
)

// Delta is an incremental change to one existing node or connection
type Delta interface {
	// Target names the changed entity for logs
	Target() string
	apply(g *domain.Graph, idx *index) error
}

// NodeDelta changes the status or metrics of one node. TasksQueued and
// TasksCompleted adjust the counters relatively and are applied after
// Metrics; the queue never goes below zero.
type NodeDelta struct {
	ID             string
	Status         *domain.NodeStatus
	Metrics        *domain.MetricsPatch
	TasksQueued    int64
	TasksCompleted int64
}

// Target implements Delta
func (d NodeDelta) Target() string { return "node " + d.ID }

func (d NodeDelta) apply(g *domain.Graph, idx *index) error {
	if d.ID == "" {
		return fmt.Errorf("%w: node delta without id", ErrInvalidDelta)
	}
	if d.Status == nil && d.Metrics.Empty() && d.TasksQueued == 0 && d.TasksCompleted == 0 {
		return fmt.Errorf("%w: node delta for %s changes nothing", ErrInvalidDelta, d.ID)
	}
	if d.Status != nil && !d.Status.Valid() {
		return fmt.Errorf("%w: node %s status %q", ErrInvalidDelta, d.ID, *d.Status)
	}
	i, ok := idx.nodes[d.ID]
	if !ok {
		return fmt.Errorf("%w: node %s", ErrUnknownTarget, d.ID)
	}

	n := g.Nodes[i]
	if d.Status != nil {
		n.Status = *d.Status
	}
	m, err := d.Metrics.Apply(n.Metrics)
	if err != nil {
		return fmt.Errorf("%w: node %s: %v", ErrInvalidDelta, d.ID, err)
	}
	m.TasksQueued = max(0, m.TasksQueued+d.TasksQueued)
	m.TasksCompleted = max(0, m.TasksCompleted+d.TasksCompleted)
	n.Metrics = m

	g.Nodes = slices.Clone(g.Nodes)
	g.Nodes[i] = n
	return nil
}

// EdgeDelta changes the traffic or flags of one connection. It is addressed
// by ID or, when ID is empty, by its unordered endpoints.
type EdgeDelta struct {
	ID       string
	SourceID string
	TargetID string
	Traffic  *domain.TrafficPatch
	Active   *bool
	Animated *bool
}

// Target implements Delta
func (d EdgeDelta) Target() string {
	if d.ID != "" {
		return "connection " + d.ID
	}
	return "connection " + domain.NewEdgeKey(d.SourceID, d.TargetID).String()
}

func (d EdgeDelta) apply(g *domain.Graph, idx *index) error {
	if d.Traffic == nil && d.Active == nil && d.Animated == nil {
		return fmt.Errorf("%w: %s changes nothing", ErrInvalidDelta, d.Target())
	}

	var (
		i  int
		ok bool
	)
	switch {
	case d.ID != "":
		i, ok = idx.conns[d.ID]
	case d.SourceID != "" && d.TargetID != "":
		i, ok = idx.pairs[domain.NewEdgeKey(d.SourceID, d.TargetID)]
	default:
		return fmt.Errorf("%w: connection delta without id or endpoints", ErrInvalidDelta)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTarget, d.Target())
	}

	c := g.Connections[i]
	t, err := d.Traffic.Apply(c.Traffic)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidDelta, d.Target(), err)
	}
	c.Traffic = t
	if d.Active != nil {
		c.Active = *d.Active
	}
	if d.Animated != nil {
		c.Animated = *d.Animated
	}

	g.Connections = slices.Clone(g.Connections)
	g.Connections[i] = c
	return nil
}
