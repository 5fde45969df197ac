package lod

import (
	"cmp"
	"fmt"
	"slices"

	"graphwatch/internal/domain"
)

// Result is the display-ready subgraph for one level
type Result struct {
	Level       DetailLevel         `json:"level"`
	Focus       string              `json:"focus,omitempty"`
	Nodes       []domain.Node       `json:"nodes"`
	Connections []domain.Connection `json:"connections"`
	Clusters    []Cluster           `json:"clusters"`
	Stats       domain.GraphStats   `json:"stats"`

	owner map[string]string
}

// Representative returns the id of the displayed node that stands for id:
// id itself when revealed, its cluster when collapsed, "" when unknown.
func (r *Result) Representative(id string) string {
	return r.owner[id]
}

// Engine applies a Policy to graphs
type Engine struct {
	policy Policy
}

// NewEngine creates an engine after validating the policy
func NewEngine(p Policy) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Engine{policy: p}, nil
}

// Policy returns the engine's reveal quotas
func (e *Engine) Policy() Policy {
	return e.policy
}

// Reduce derives the subgraph of g for level and focus. g is only read.
func (e *Engine) Reduce(g *domain.Graph, level DetailLevel, focus Focus) (*Result, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLevel, int(level))
	}
	quota := e.policy.quota(level)

	byCategory := make(map[domain.Category][]domain.Node)
	for _, n := range g.Nodes {
		byCategory[n.Category] = append(byCategory[n.Category], n)
	}
	dist := distances(g, focus)

	res := &Result{
		Level:       level,
		Focus:       focus.NodeID,
		Nodes:       make([]domain.Node, 0, len(g.Nodes)),
		Connections: make([]domain.Connection, 0, len(g.Connections)),
		Clusters:    make([]Cluster, 0),
		Stats:       g.Stats.Clone(),
		owner:       make(map[string]string, len(g.Nodes)),
	}

	for cat, members := range byCategory {
		slices.SortFunc(members, func(a, b domain.Node) int {
			if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
				return c
			}
			if c := cmp.Compare(dist[a.ID], dist[b.ID]); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})

		keep := len(members)
		// a cluster of one would just rename the agent
		if quota < len(members)-1 {
			keep = quota
		}
		for _, n := range members[:keep] {
			res.Nodes = append(res.Nodes, n.Clone())
			res.owner[n.ID] = n.ID
		}
		if rest := members[keep:]; len(rest) > 0 {
			cluster := aggregate(cat, rest)
			res.Nodes = append(res.Nodes, cluster)
			res.Clusters = append(res.Clusters, Cluster{ID: cluster.ID, Category: cat, Members: sortedMembers(rest)})
			for _, n := range rest {
				res.owner[n.ID] = cluster.ID
			}
		}
	}

	res.Connections = rewire(g.Connections, res.owner)

	slices.SortFunc(res.Nodes, func(a, b domain.Node) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortFunc(res.Clusters, func(a, b Cluster) int { return cmp.Compare(a.ID, b.ID) })

	view := &domain.Graph{Nodes: res.Nodes, Connections: res.Connections}
	view.DeriveAdjacency()
	return res, nil
}

// rewire maps every connection onto displayed nodes. Connections inside one
// cluster disappear and parallel results merge into one.
func rewire(conns []domain.Connection, owner map[string]string) []domain.Connection {
	ordered := slices.Clone(conns)
	slices.SortFunc(ordered, func(a, b domain.Connection) int { return cmp.Compare(a.ID, b.ID) })

	accs := make(map[domain.EdgeKey]*edgeAcc, len(ordered))
	keys := make([]domain.EdgeKey, 0, len(ordered))
	for _, c := range ordered {
		src, tgt := owner[c.SourceID], owner[c.TargetID]
		if src == "" || tgt == "" || src == tgt {
			continue
		}
		key := domain.NewEdgeKey(src, tgt)
		if acc, ok := accs[key]; ok {
			acc.merge(c, src)
			continue
		}
		accs[key] = newEdgeAcc(c, src, tgt)
		keys = append(keys, key)
	}

	out := make([]domain.Connection, 0, len(keys))
	for _, k := range keys {
		out = append(out, accs[k].result())
	}
	slices.SortFunc(out, func(a, b domain.Connection) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Reduce applies the default policy
func Reduce(g *domain.Graph, level DetailLevel, focus Focus) (*Result, error) {
	e, err := NewEngine(DefaultPolicy())
	if err != nil {
		return nil, err
	}
	return e.Reduce(g, level, focus)
}
