package incident

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"graphwatch/internal/domain"
)

// Resolver forwards a resolve request to the orchestrator
type Resolver interface {
	ResolveIncident(ctx context.Context, id string) (domain.ActionResult, error)
}

// Group is one severity band of open incidents in arrival order
type Group struct {
	Severity  domain.Severity   `json:"severity"`
	Incidents []domain.Incident `json:"incidents"`
}

// Overlay is the triage view over the graph's incidents
type Overlay struct {
	graph    func() *domain.Graph
	resolver Resolver
	logger   *slog.Logger

	mu sync.Mutex
	// hidden maps incidents resolved here to their detection time, so a
	// re-created incident with the same id shows again
	hidden map[string]time.Time
}

// New creates an overlay reading incidents from graph
func New(graph func() *domain.Graph, resolver Resolver, logger *slog.Logger) *Overlay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Overlay{
		graph:    graph,
		resolver: resolver,
		logger:   logger.With("component", "incidents"),
		hidden:   make(map[string]time.Time),
	}
}

// Visible returns the open incidents not resolved through this overlay, in
// arrival order. Hidden ids whose incident is gone, closed or re-created
// are forgotten.
func (o *Overlay) Visible() []domain.Incident {
	g := o.graph()
	o.mu.Lock()
	defer o.mu.Unlock()

	o.pruneLocked(g)
	out := make([]domain.Incident, 0, len(g.Incidents))
	for _, inc := range g.Incidents {
		if _, gone := o.hidden[inc.ID]; gone || !inc.Status.Open() {
			continue
		}
		out = append(out, inc)
	}
	return out
}

func (o *Overlay) pruneLocked(g *domain.Graph) {
	if len(o.hidden) == 0 {
		return
	}
	current := make(map[string]*domain.Incident, len(g.Incidents))
	for i := range g.Incidents {
		current[g.Incidents[i].ID] = &g.Incidents[i]
	}
	for id, detected := range o.hidden {
		inc, ok := current[id]
		if !ok || !inc.Status.Open() || !inc.DetectedAt.Equal(detected) {
			delete(o.hidden, id)
		}
	}
}

// Groups returns the visible incidents by severity, most severe first.
// Empty bands are omitted.
func (o *Overlay) Groups() []Group {
	bands := make([][]domain.Incident, len(domain.Severities))
	for _, inc := range o.Visible() {
		if r := inc.Severity.Rank(); r >= 0 {
			bands[r] = append(bands[r], inc)
		}
	}

	groups := make([]Group, 0, len(bands))
	for r, incs := range bands {
		if len(incs) > 0 {
			groups = append(groups, Group{Severity: domain.Severities[r], Incidents: incs})
		}
	}
	return groups
}

// Resolve asks the orchestrator to resolve an incident. The incident is
// hidden locally only when the orchestrator confirms; a refusal comes back
// as a result with Success false and changes nothing.
func (o *Overlay) Resolve(ctx context.Context, id string) (domain.ActionResult, error) {
	if o.resolver == nil {
		return domain.ActionResult{}, ErrNoResolver
	}
	if !o.isVisible(id) {
		return domain.ActionResult{}, fmt.Errorf("%w: %s", ErrUnknownIncident, id)
	}

	res, err := o.resolver.ResolveIncident(ctx, id)
	if err != nil {
		o.logger.Warn("resolve failed", "incident", id, "error", err)
		return domain.ActionResult{}, fmt.Errorf("failed to resolve incident %s: %w", id, err)
	}
	if !res.Success {
		o.logger.Info("resolve refused", "incident", id, "message", res.Message)
		return res, nil
	}

	o.mu.Lock()
	o.hidden[id] = o.detectedAt(id)
	o.mu.Unlock()
	o.logger.Info("incident resolved", "incident", id)
	return res, nil
}

func (o *Overlay) detectedAt(id string) time.Time {
	for _, inc := range o.graph().Incidents {
		if inc.ID == id {
			return inc.DetectedAt
		}
	}
	return time.Time{}
}

func (o *Overlay) isVisible(id string) bool {
	for _, inc := range o.Visible() {
		if inc.ID == id {
			return true
		}
	}
	return false
}

// Chain renders the causality chain of a visible incident
func (o *Overlay) Chain(id string) ([]Step, error) {
	g := o.graph()
	for i := range g.Incidents {
		if g.Incidents[i].ID == id {
			return RenderChain(g, &g.Incidents[i]), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownIncident, id)
}

// Highlights computes the display highlight set of the visible incidents
func (o *Overlay) Highlights() Highlights {
	return computeHighlights(o.Visible())
}
