package domain

import (
	"fmt"
	"slices"
	"sort"
)

// Graph is the fetched payload: the complete set of agents, connections,
// aggregate stats and incidents at one point in time.
type Graph struct {
	Nodes       []Node       `json:"nodes"`
	Connections []Connection `json:"connections"`
	Stats       GraphStats   `json:"stats"`
	Incidents   []Incident   `json:"incidents,omitempty"`
}

// NewGraph creates an empty graph
func NewGraph() *Graph {
	return &Graph{
		Nodes:       make([]Node, 0),
		Connections: make([]Connection, 0),
		Incidents:   make([]Incident, 0),
	}
}

// AddNode adds a node to the graph
func (g *Graph) AddNode(node Node) {
	g.Nodes = append(g.Nodes, node)
}

// AddConnection adds a connection to the graph
func (g *Graph) AddConnection(conn Connection) {
	g.Connections = append(g.Connections, conn)
}

// Clone returns a deep copy of the graph
func (g *Graph) Clone() *Graph {
	out := &Graph{
		Nodes:       make([]Node, len(g.Nodes)),
		Connections: slices.Clone(g.Connections),
		Stats:       g.Stats.Clone(),
		Incidents:   make([]Incident, len(g.Incidents)),
	}
	for i, n := range g.Nodes {
		out.Nodes[i] = n.Clone()
	}
	for i, inc := range g.Incidents {
		out.Incidents[i] = inc.Clone()
	}
	if out.Connections == nil {
		out.Connections = make([]Connection, 0)
	}
	return out
}

// Validate checks every structural invariant of the graph: unique ids, known
// categories, endpoints that exist, and incidents that reference real nodes.
func (g *Graph) Validate() error {
	nodes := make(map[string]struct{}, len(g.Nodes))
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if err := n.Validate(); err != nil {
			return err
		}
		if _, dup := nodes[n.ID]; dup {
			return fmt.Errorf("%w: duplicate node id %s", ErrInvalidNode, n.ID)
		}
		nodes[n.ID] = struct{}{}
	}

	conns := make(map[string]struct{}, len(g.Connections))
	for i := range g.Connections {
		c := &g.Connections[i]
		if err := c.Validate(); err != nil {
			return err
		}
		if _, dup := conns[c.ID]; dup {
			return fmt.Errorf("%w: duplicate connection id %s", ErrInvalidConnection, c.ID)
		}
		conns[c.ID] = struct{}{}
		if _, ok := nodes[c.SourceID]; !ok {
			return fmt.Errorf("%w: connection %s source %s", ErrDanglingReference, c.ID, c.SourceID)
		}
		if _, ok := nodes[c.TargetID]; !ok {
			return fmt.Errorf("%w: connection %s target %s", ErrDanglingReference, c.ID, c.TargetID)
		}
	}

	incidents := make(map[string]struct{}, len(g.Incidents))
	for i := range g.Incidents {
		inc := &g.Incidents[i]
		if err := inc.Validate(); err != nil {
			return err
		}
		if _, dup := incidents[inc.ID]; dup {
			return fmt.Errorf("%w: duplicate incident id %s", ErrInvalidIncident, inc.ID)
		}
		incidents[inc.ID] = struct{}{}
		for _, id := range inc.AffectedNodes {
			if _, ok := nodes[id]; !ok {
				return fmt.Errorf("%w: incident %s affects %s", ErrDanglingReference, inc.ID, id)
			}
		}
	}
	return nil
}

// DeriveAdjacency rebuilds every node's Connections list from the connection
// set. Neighbour lists are sorted so the result is deterministic.
func (g *Graph) DeriveAdjacency() {
	adj := make(map[string]map[string]struct{}, len(g.Nodes))
	for _, c := range g.Connections {
		if adj[c.SourceID] == nil {
			adj[c.SourceID] = make(map[string]struct{})
		}
		if adj[c.TargetID] == nil {
			adj[c.TargetID] = make(map[string]struct{})
		}
		adj[c.SourceID][c.TargetID] = struct{}{}
		adj[c.TargetID][c.SourceID] = struct{}{}
	}
	for i := range g.Nodes {
		neighbours := make([]string, 0, len(adj[g.Nodes[i].ID]))
		for id := range adj[g.Nodes[i].ID] {
			neighbours = append(neighbours, id)
		}
		sort.Strings(neighbours)
		g.Nodes[i].Connections = neighbours
	}
}

// NodeIndex maps node ids to their position in Nodes
func (g *Graph) NodeIndex() map[string]int {
	idx := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		idx[n.ID] = i
	}
	return idx
}

// Refresh recomputes derived fields (adjacency and stats)
func (g *Graph) Refresh() {
	g.DeriveAdjacency()
	g.Stats = ComputeStats(g.Nodes, g.Connections, g.Incidents)
}
