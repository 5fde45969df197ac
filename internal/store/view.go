package store

import (
	"time"

	"graphwatch/internal/domain"
)

// View is an immutable published state. Callers must not modify Graph or
// anything reachable from it; clone first.
type View struct {
	Graph   *domain.Graph `json:"graph"`
	Version uint64        `json:"version"`
	Mode    Mode          `json:"mode"`
	// At is the snapshot timestamp in playback and the last change in live mode
	At time.Time `json:"at"`

	idx *index
}

// Node returns the node with the given id
func (v *View) Node(id string) (domain.Node, bool) {
	i, ok := v.idx.nodes[id]
	if !ok {
		return domain.Node{}, false
	}
	return v.Graph.Nodes[i], true
}

// Connection returns the connection with the given id
func (v *View) Connection(id string) (domain.Connection, bool) {
	i, ok := v.idx.conns[id]
	if !ok {
		return domain.Connection{}, false
	}
	return v.Graph.Connections[i], true
}

// Incident returns the incident with the given id
func (v *View) Incident(id string) (domain.Incident, bool) {
	for _, inc := range v.Graph.Incidents {
		if inc.ID == id {
			return inc, true
		}
	}
	return domain.Incident{}, false
}

// index locates nodes and connections by id. It is rebuilt only when the
// graph is replaced; deltas never move entries.
type index struct {
	nodes map[string]int
	conns map[string]int
	pairs map[domain.EdgeKey]int
}

func buildIndex(g *domain.Graph) *index {
	idx := &index{
		nodes: g.NodeIndex(),
		conns: make(map[string]int, len(g.Connections)),
		pairs: make(map[domain.EdgeKey]int, len(g.Connections)),
	}
	for i := range g.Connections {
		c := &g.Connections[i]
		idx.conns[c.ID] = i
		if _, seen := idx.pairs[c.Key()]; !seen {
			idx.pairs[c.Key()] = i
		}
	}
	return idx
}
