package domain

import (
	"fmt"
	"time"
)

// Snapshot is an immutable capture of the whole graph at one instant.
// Loading a snapshot always replaces the displayed state wholesale.
type Snapshot struct {
	ID          string       `json:"id,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
	Nodes       []Node       `json:"nodes"`
	Connections []Connection `json:"connections"`
	Stats       GraphStats   `json:"stats"`
	Incidents   []Incident   `json:"incidents"`
}

// NewSnapshot captures a deep copy of g at ts
func NewSnapshot(g *Graph, ts time.Time) Snapshot {
	c := g.Clone()
	return Snapshot{
		Timestamp:   ts,
		Nodes:       c.Nodes,
		Connections: c.Connections,
		Stats:       c.Stats,
		Incidents:   c.Incidents,
	}
}

// Graph returns a deep copy of the snapshot contents as a Graph
func (s Snapshot) Graph() *Graph {
	g := &Graph{
		Nodes:       s.Nodes,
		Connections: s.Connections,
		Stats:       s.Stats,
		Incidents:   s.Incidents,
	}
	return g.Clone()
}

// ValidateSequence checks that snapshot timestamps are strictly increasing
func ValidateSequence(snaps []Snapshot) error {
	for i := 1; i < len(snaps); i++ {
		if !snaps[i].Timestamp.After(snaps[i-1].Timestamp) {
			return fmt.Errorf("%w: snapshot %d at %s does not follow %s",
				ErrUnorderedSnapshots, i, snaps[i].Timestamp.Format(time.RFC3339), snaps[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}
