package lod

import (
	"math"

	"graphwatch/internal/domain"
)

// Focus is the point of interest revealed nodes gravitate to. With only a
// NodeID the focus sits at that node. Zero Focus means no preference.
type Focus struct {
	NodeID string
	Point  *domain.Position
}

// IsZero reports whether no focus is set
func (f Focus) IsZero() bool {
	return f.NodeID == "" && f.Point == nil
}

// distances measures every node's distance to the focus with one metric for
// the whole graph: euclidean when the focus and every node have positions,
// otherwise hop count from the focus node. A bare point focus over a
// partially positioned graph ranks unpositioned nodes last. Unreachable
// nodes are infinitely far.
func distances(g *domain.Graph, f Focus) map[string]float64 {
	out := make(map[string]float64, len(g.Nodes))
	if f.IsZero() {
		for _, n := range g.Nodes {
			out[n.ID] = 0
		}
		return out
	}

	point := f.Point
	if point == nil && f.NodeID != "" {
		for i := range g.Nodes {
			if g.Nodes[i].ID == f.NodeID {
				point = g.Nodes[i].Position
				break
			}
		}
	}

	var hops map[string]int
	if f.NodeID != "" {
		hops = hopCounts(g, f.NodeID)
	}

	euclidean := point != nil
	for _, n := range g.Nodes {
		if n.Position == nil {
			euclidean = false
			break
		}
	}

	for _, n := range g.Nodes {
		switch {
		case euclidean:
			out[n.ID] = point.Distance(*n.Position)
		case hops != nil:
			if h, ok := hops[n.ID]; ok {
				out[n.ID] = float64(h)
			} else {
				out[n.ID] = math.Inf(1)
			}
		case point != nil && n.Position != nil:
			out[n.ID] = point.Distance(*n.Position)
		default:
			out[n.ID] = math.Inf(1)
		}
	}
	return out
}

// hopCounts runs a breadth-first search over undirected connections
func hopCounts(g *domain.Graph, from string) map[string]int {
	adj := make(map[string][]string, len(g.Nodes))
	for _, c := range g.Connections {
		adj[c.SourceID] = append(adj[c.SourceID], c.TargetID)
		adj[c.TargetID] = append(adj[c.TargetID], c.SourceID)
	}

	hops := map[string]int{from: 0}
	queue := []string{from}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range adj[id] {
			if _, seen := hops[next]; !seen {
				hops[next] = hops[id] + 1
				queue = append(queue, next)
			}
		}
	}
	return hops
}
