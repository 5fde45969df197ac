package topology

import (
	"math"

	"graphwatch/internal/domain"
)

// Layout places nodes deterministically in 3D space: root at the origin,
// core agents on an inner ring, category heads on an outer ring and members
// orbiting their head.
type Layout struct {
	CoreRadius   float64
	HeadRadius   float64
	MemberRadius float64
	LayerSpacing float64
}

// DefaultLayout returns the standard ring radii
func DefaultLayout() Layout {
	return Layout{
		CoreRadius:   15,
		HeadRadius:   60,
		MemberRadius: 12,
		LayerSpacing: 8,
	}
}

// Apply sets Position on every node of g from its registry role
func (l Layout) Apply(g *domain.Graph, reg *Registry) {
	positions := l.Positions(reg)
	for i := range g.Nodes {
		if p, ok := positions[g.Nodes[i].ID]; ok {
			pos := p
			g.Nodes[i].Position = &pos
		}
	}
}

// Positions computes the position of every agent in the registry
func (l Layout) Positions(reg *Registry) map[string]domain.Position {
	out := make(map[string]domain.Position, len(reg.Agents))

	var core []string
	members := make(map[domain.Category][]string)
	for _, a := range reg.Agents {
		switch {
		case a.Role == RoleRoot:
			out[a.ID] = domain.Position{}
		case a.Role == RoleHead:
		case a.Category == domain.CategoryCore:
			core = append(core, a.ID)
		default:
			members[a.Category] = append(members[a.Category], a.ID)
		}
	}

	for i, id := range core {
		out[id] = ring(domain.Position{}, l.CoreRadius, i, len(core), 0)
	}

	heads := reg.Heads()
	var ordered []domain.Category
	for _, c := range domain.Categories {
		if _, ok := heads[c]; ok {
			ordered = append(ordered, c)
		}
	}

	for i, c := range ordered {
		z := float64(i%3-1) * l.LayerSpacing
		center := ring(domain.Position{}, l.HeadRadius, i, len(ordered), z)
		out[heads[c]] = center
		for j, id := range members[c] {
			out[id] = ring(center, l.MemberRadius, j, len(members[c]), z)
		}
	}
	return out
}

// ring returns the i-th of n evenly spaced points around center
func ring(center domain.Position, radius float64, i, n int, z float64) domain.Position {
	if n == 0 {
		return center
	}
	angle := 2 * math.Pi * float64(i) / float64(n)
	return domain.Position{
		X: center.X + radius*math.Cos(angle),
		Y: center.Y + radius*math.Sin(angle),
		Z: z,
	}
}
