package topology

import (
	"fmt"

	"graphwatch/internal/domain"
)

// Default priorities by role, used when a definition leaves Priority at zero
const (
	PriorityRoot   = 100
	PriorityHead   = 50
	PriorityCore   = 40
	PriorityInfra  = 20
	PriorityMember = 10
)

// edgeSet accumulates connections keyed on the unordered endpoint pair
type edgeSet struct {
	seen  map[domain.EdgeKey]struct{}
	conns []domain.Connection
}

func newEdgeSet(capacity int) *edgeSet {
	return &edgeSet{
		seen:  make(map[domain.EdgeKey]struct{}, capacity),
		conns: make([]domain.Connection, 0, capacity),
	}
}

// add inserts src->tgt unless it is a self-loop or the pair already exists.
// Returns true if the edge was inserted.
func (s *edgeSet) add(src, tgt string, connType domain.ConnectionType) bool {
	key := domain.NewEdgeKey(src, tgt)
	if key.SelfLoop() {
		return false
	}
	if _, dup := s.seen[key]; dup {
		return false
	}
	s.seen[key] = struct{}{}
	s.conns = append(s.conns, *domain.NewConnection(src, tgt, connType))
	return true
}

// Builder derives the baseline graph from a registry
type Builder struct {
	layout Layout
}

// NewBuilder creates a builder with the given layout
func NewBuilder(layout Layout) *Builder {
	return &Builder{layout: layout}
}

// Build derives the baseline graph using the default layout
func Build(reg *Registry) (*domain.Graph, error) {
	return NewBuilder(DefaultLayout()).Build(reg)
}

// Build produces one node per definition and the deduplicated edge set
// connecting every agent to the root.
func (b *Builder) Build(reg *Registry) (*domain.Graph, error) {
	if reg == nil {
		return nil, ErrMissingRoot
	}
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid registry: %w", err)
	}

	var root AgentDef
	for _, a := range reg.Agents {
		if a.Role == RoleRoot {
			root = a
			break
		}
	}
	heads := reg.Heads()

	graph := domain.NewGraph()
	for _, a := range reg.Agents {
		graph.AddNode(*newAgentNode(a))
	}

	edges := newEdgeSet(len(reg.Agents) * 2)

	// root -> core agents
	for _, a := range reg.Agents {
		if a.Category == domain.CategoryCore && a.Role != RoleRoot {
			edges.add(root.ID, a.ID, domain.ConnTypeCommand)
		}
	}

	// root -> category heads, in category order
	for _, c := range domain.Categories {
		if head, ok := heads[c]; ok {
			edges.add(root.ID, head, domain.ConnTypeCommand)
		}
	}

	// members -> their head
	for _, a := range reg.Agents {
		if needsHead(a) {
			edges.add(a.ID, heads[a.Category], domain.ConnTypeMessage)
		}
	}

	// infra -> owner and root
	for _, a := range reg.Agents {
		if a.Role != RoleInfra {
			continue
		}
		edges.add(a.Owner, a.ID, domain.ConnTypeQuery)
		edges.add(a.ID, root.ID, domain.ConnTypeData)
	}

	graph.Connections = edges.conns
	b.layout.Apply(graph, reg)
	graph.Refresh()

	return graph, nil
}

func newAgentNode(a AgentDef) *domain.Node {
	name := a.Name
	if name == "" {
		name = a.ID
	}
	node := domain.NewNode(a.ID, a.Category, name)
	node.Description = a.Description
	if a.Status != "" {
		node.Status = a.Status
	}

	node.Priority = a.Priority
	if node.Priority == 0 {
		node.Priority = defaultPriority(a)
	}

	switch a.Role {
	case RoleRoot:
		node.Size = 3
		// the orchestrator cannot be stopped from the dashboard
		node.Capabilities.CanStop = false
	case RoleHead:
		node.Size = 2
	}
	return node
}

func defaultPriority(a AgentDef) int {
	switch {
	case a.Role == RoleRoot:
		return PriorityRoot
	case a.Role == RoleHead:
		return PriorityHead
	case a.Category == domain.CategoryCore:
		return PriorityCore
	case a.Role == RoleInfra:
		return PriorityInfra
	default:
		return PriorityMember
	}
}
