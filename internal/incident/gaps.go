package incident

import (
	"fmt"

	"graphwatch/internal/domain"
)

// DetectGaps suggests agents the graph appears to be missing. A category
// whose head agent is down gets a coordinator suggestion; a category with no
// live agent at all gets a worker suggestion with auto-spawn recommended.
// heads maps categories to their head agent id and may be nil. The graph is
// never changed.
func DetectGaps(g *domain.Graph, heads map[domain.Category]string) []domain.DetectedGap {
	type census struct {
		total, live int
	}
	counts := make(map[domain.Category]*census)
	status := make(map[string]domain.NodeStatus, len(g.Nodes))
	for _, n := range g.Nodes {
		c := counts[n.Category]
		if c == nil {
			c = &census{}
			counts[n.Category] = c
		}
		c.total++
		if n.Status.Live() {
			c.live++
		}
		status[n.ID] = n.Status
	}

	var gaps []domain.DetectedGap
	for _, cat := range domain.Categories {
		c := counts[cat]
		head, hasHead := heads[cat]
		if c == nil && !hasHead {
			continue
		}

		if hasHead {
			st, present := status[head]
			switch {
			case !present:
				gaps = append(gaps, domain.DetectedGap{
					SuggestedType: string(cat) + "-coordinator",
					Category:      cat,
					Description:   fmt.Sprintf("head agent %s of %s is missing from the graph", head, cat),
					AutoSpawn:     true,
				})
			case !st.Live():
				gaps = append(gaps, domain.DetectedGap{
					SuggestedType: string(cat) + "-coordinator",
					Category:      cat,
					Description:   fmt.Sprintf("head agent %s of %s is %s", head, cat, st),
				})
			}
		}

		if c != nil && c.live == 0 {
			gaps = append(gaps, domain.DetectedGap{
				SuggestedType: string(cat) + "-worker",
				Category:      cat,
				Description:   fmt.Sprintf("none of the %d %s agents is running", c.total, cat),
				AutoSpawn:     true,
			})
		}
	}
	return gaps
}
