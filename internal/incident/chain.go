package incident

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"graphwatch/internal/domain"
)

// NodeRef is a chain endpoint ready for display
type NodeRef struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Known bool   `json:"known"`
}

// Step is one rendered causality link
type Step struct {
	From        NodeRef `json:"from"`
	To          NodeRef `json:"to"`
	Probability float64 `json:"probability"`
	ImpactType  string  `json:"impactType"`
}

// RenderChain resolves every link of the incident's chain against g.
// Unknown nodes get a fallback label instead of failing the render.
func RenderChain(g *domain.Graph, inc *domain.Incident) []Step {
	names := make(map[string]string, len(g.Nodes))
	for _, n := range g.Nodes {
		names[n.ID] = n.Name
	}
	ref := func(id string) NodeRef {
		name, ok := names[id]
		if !ok {
			return NodeRef{ID: id, Label: fmt.Sprintf("unknown agent (%s)", id)}
		}
		if name == "" {
			name = id
		}
		return NodeRef{ID: id, Label: name, Known: true}
	}

	steps := make([]Step, len(inc.CausalityChain))
	for i, link := range inc.CausalityChain {
		steps[i] = Step{
			From:        ref(link.FromNodeID),
			To:          ref(link.ToNodeID),
			Probability: link.Probability,
			ImpactType:  link.ImpactType,
		}
	}
	return steps
}

// ValidateChains reports every chain link whose endpoints are not in g.
// Use it where a broken chain is a construction error, such as fixtures and
// imported graphs.
func ValidateChains(g *domain.Graph) error {
	nodes := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes[n.ID] = struct{}{}
	}

	var errs []error
	for _, inc := range g.Incidents {
		for i, link := range inc.CausalityChain {
			for _, id := range []string{link.FromNodeID, link.ToNodeID} {
				if _, ok := nodes[id]; !ok {
					errs = append(errs, fmt.Errorf("%w: incident %s link %d: %s", ErrDanglingReference, inc.ID, i, id))
				}
			}
		}
	}
	return errors.Join(errs...)
}

// Highlights is what the display emphasises for the visible incidents
type Highlights struct {
	// Nodes maps each affected node to the worst severity touching it
	Nodes map[string]domain.Severity `json:"nodes"`
	// Edges are the chain links, deduplicated by unordered pair
	Edges []ChainEdge `json:"edges"`
}

// ChainEdge is a highlighted causality link
type ChainEdge struct {
	From       string          `json:"from"`
	To         string          `json:"to"`
	IncidentID string          `json:"incidentId"`
	Severity   domain.Severity `json:"severity"`
}

func computeHighlights(incs []domain.Incident) Highlights {
	h := Highlights{
		Nodes: make(map[string]domain.Severity),
		Edges: make([]ChainEdge, 0),
	}
	edges := make(map[domain.EdgeKey]int)

	for _, inc := range incs {
		mark := func(id string) {
			if cur, ok := h.Nodes[id]; !ok || inc.Severity.MoreSevere(cur) {
				h.Nodes[id] = inc.Severity
			}
		}
		for _, id := range inc.AffectedNodes {
			mark(id)
		}
		for _, link := range inc.CausalityChain {
			key := domain.NewEdgeKey(link.FromNodeID, link.ToNodeID)
			if key.SelfLoop() {
				continue
			}
			e := ChainEdge{From: link.FromNodeID, To: link.ToNodeID, IncidentID: inc.ID, Severity: inc.Severity}
			if i, ok := edges[key]; ok {
				if inc.Severity.MoreSevere(h.Edges[i].Severity) {
					h.Edges[i] = e
				}
				continue
			}
			edges[key] = len(h.Edges)
			h.Edges = append(h.Edges, e)
		}
	}

	slices.SortFunc(h.Edges, func(a, b ChainEdge) int {
		if c := a.Severity.Rank() - b.Severity.Rank(); c != 0 {
			return c
		}
		return strings.Compare(domain.NewEdgeKey(a.From, a.To).String(), domain.NewEdgeKey(b.From, b.To).String())
	})
	return h
}
