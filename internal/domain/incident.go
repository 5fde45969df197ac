package domain

import (
	"fmt"
	"slices"
	"time"
)

// Severity ranks incidents; lower Rank means more severe
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Severities lists every severity from most to least severe
var Severities = []Severity{
	SeverityCritical,
	SeverityHigh,
	SeverityMedium,
	SeverityLow,
	SeverityInfo,
}

// Rank returns 0 for critical up to 4 for info, or -1 for an unknown severity
func (s Severity) Rank() int {
	return slices.Index(Severities, s)
}

// Valid reports whether s is a known severity
func (s Severity) Valid() bool {
	return s.Rank() >= 0
}

// MoreSevere reports whether s outranks o
func (s Severity) MoreSevere(o Severity) bool {
	return s.Valid() && (!o.Valid() || s.Rank() < o.Rank())
}

// IncidentStatus is the triage state of an incident
type IncidentStatus string

const (
	IncidentActive        IncidentStatus = "active"
	IncidentInvestigating IncidentStatus = "investigating"
	IncidentResolved      IncidentStatus = "resolved"
	IncidentIgnored       IncidentStatus = "ignored"
)

// Open reports whether the incident still needs attention
func (s IncidentStatus) Open() bool {
	return s == IncidentActive || s == IncidentInvestigating
}

// CausalLink is one directed, probability-weighted step of a causality chain
type CausalLink struct {
	FromNodeID  string  `json:"fromNodeId"`
	ToNodeID    string  `json:"toNodeId"`
	Probability float64 `json:"probability"`
	ImpactType  string  `json:"impactType"`
}

// Incident represents an operational problem affecting one or more agents
type Incident struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description,omitempty"`
	Severity       Severity       `json:"severity"`
	Status         IncidentStatus `json:"status"`
	AffectedNodes  []string       `json:"affectedNodes"`
	CausalityChain []CausalLink   `json:"causalityChain,omitempty"`
	Confidence     *float64       `json:"confidence,omitempty"`
	DetectedAt     time.Time      `json:"detectedAt"`
	ResolvedBy     string         `json:"resolvedBy,omitempty"`
	Playbook       string         `json:"recommendedPlaybook,omitempty"`
}

// Validate checks the incident invariants that do not need the node set
func (i *Incident) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidIncident)
	}
	if !i.Severity.Valid() {
		return fmt.Errorf("%w: incident %s has unknown severity %q", ErrInvalidIncident, i.ID, i.Severity)
	}
	if len(i.AffectedNodes) == 0 {
		return fmt.Errorf("%w: incident %s affects no nodes", ErrInvalidIncident, i.ID)
	}
	if i.Confidence != nil && (*i.Confidence < 0 || *i.Confidence > 1) {
		return fmt.Errorf("%w: incident %s confidence outside [0,1]", ErrInvalidIncident, i.ID)
	}
	for _, link := range i.CausalityChain {
		if link.Probability < 0 || link.Probability > 1 {
			return fmt.Errorf("%w: incident %s link %s->%s probability outside [0,1]",
				ErrInvalidIncident, i.ID, link.FromNodeID, link.ToNodeID)
		}
	}
	return nil
}

// Clone returns a deep copy of the incident
func (i Incident) Clone() Incident {
	out := i
	out.AffectedNodes = slices.Clone(i.AffectedNodes)
	out.CausalityChain = slices.Clone(i.CausalityChain)
	if i.Confidence != nil {
		c := *i.Confidence
		out.Confidence = &c
	}
	return out
}

// Predicted reports whether the incident is a forecast rather than an observation
func (i *Incident) Predicted() bool {
	return i.Confidence != nil
}
