package adapter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"graphwatch/internal/domain"
)

var (
	ErrUnknownUpstreamType = errors.New("unknown upstream type")
	ErrUnknownEndpoint     = errors.New("upstream link references unknown node")
	ErrDuplicateUpstream   = errors.New("duplicate upstream node id")
)

// Fallback figures used when the upstream omits traffic data. Links with no
// throughput are drawn as quiet but live.
const (
	DefaultMessagesPerSecond = 1.0
	DefaultBytesPerSecond    = 256.0
	DefaultLatencyMs         = 50.0
	DefaultIntensity         = 0.5
	// IntensityFullScale is the message rate rendered at intensity 1
	IntensityFullScale = 100.0
)

// UpstreamType is the node taxonomy of the pipeline source
type UpstreamType uint8

const (
	UpstreamPage UpstreamType = iota
	UpstreamAPI
	UpstreamDevice
	UpstreamDatabase
	UpstreamWorkflow
	UpstreamService
	numUpstreamTypes
)

var upstreamTypeNames = [...]string{
	UpstreamPage:     "page",
	UpstreamAPI:      "api",
	UpstreamDevice:   "device",
	UpstreamDatabase: "database",
	UpstreamWorkflow: "workflow",
	UpstreamService:  "service",
}

var categoryByUpstreamType = [...]domain.Category{
	UpstreamPage:     domain.CategoryInterface,
	UpstreamAPI:      domain.CategoryIntegration,
	UpstreamDevice:   domain.CategoryDevice,
	UpstreamDatabase: domain.CategoryData,
	UpstreamWorkflow: domain.CategoryAutomation,
	UpstreamService:  domain.CategoryInfrastructure,
}

// Adding an UpstreamType without extending both tables fails to compile.
var (
	_ [len(upstreamTypeNames) - int(numUpstreamTypes)]struct{}
	_ [int(numUpstreamTypes) - len(upstreamTypeNames)]struct{}
	_ [len(categoryByUpstreamType) - int(numUpstreamTypes)]struct{}
	_ [int(numUpstreamTypes) - len(categoryByUpstreamType)]struct{}
)

func (t UpstreamType) String() string {
	if t < numUpstreamTypes {
		return upstreamTypeNames[t]
	}
	return fmt.Sprintf("UpstreamType(%d)", t)
}

// Category returns the unified category for the upstream type
func (t UpstreamType) Category() domain.Category {
	return categoryByUpstreamType[t]
}

// ParseUpstreamType resolves an upstream type name
func ParseUpstreamType(name string) (UpstreamType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range upstreamTypeNames {
		if n == name {
			return UpstreamType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: node type %q", ErrUnknownUpstreamType, name)
}

// UpstreamLinkType is the link taxonomy of the pipeline source
type UpstreamLinkType uint8

const (
	LinkCalls UpstreamLinkType = iota
	LinkReads
	LinkWrites
	LinkTriggers
	LinkStreams
	LinkNotifies
	numLinkTypes
)

var linkTypeNames = [...]string{
	LinkCalls:    "calls",
	LinkReads:    "reads",
	LinkWrites:   "writes",
	LinkTriggers: "triggers",
	LinkStreams:  "streams",
	LinkNotifies: "notifies",
}

var connTypeByLinkType = [...]domain.ConnectionType{
	LinkCalls:    domain.ConnTypeQuery,
	LinkReads:    domain.ConnTypeData,
	LinkWrites:   domain.ConnTypeData,
	LinkTriggers: domain.ConnTypeEvent,
	LinkStreams:  domain.ConnTypeStream,
	LinkNotifies: domain.ConnTypeMessage,
}

var (
	_ [len(linkTypeNames) - int(numLinkTypes)]struct{}
	_ [int(numLinkTypes) - len(linkTypeNames)]struct{}
	_ [len(connTypeByLinkType) - int(numLinkTypes)]struct{}
	_ [int(numLinkTypes) - len(connTypeByLinkType)]struct{}
)

func (t UpstreamLinkType) String() string {
	if t < numLinkTypes {
		return linkTypeNames[t]
	}
	return fmt.Sprintf("UpstreamLinkType(%d)", t)
}

// ConnectionType returns the unified connection type for the link type
func (t UpstreamLinkType) ConnectionType() domain.ConnectionType {
	return connTypeByLinkType[t]
}

// ParseUpstreamLinkType resolves an upstream link type name
func ParseUpstreamLinkType(name string) (UpstreamLinkType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range linkTypeNames {
		if n == name {
			return UpstreamLinkType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: link type %q", ErrUnknownUpstreamType, name)
}

// statusVocabulary maps the upstream status words onto the unified set.
// Anything missing maps to active.
var statusVocabulary = map[string]domain.NodeStatus{
	"online":     domain.NodeStatusActive,
	"running":    domain.NodeStatusActive,
	"healthy":    domain.NodeStatusActive,
	"active":     domain.NodeStatusActive,
	"processing": domain.NodeStatusBusy,
	"busy":       domain.NodeStatusBusy,
	"idle":       domain.NodeStatusIdle,
	"paused":     domain.NodeStatusIdle,
	"standby":    domain.NodeStatusIdle,
	"offline":    domain.NodeStatusOffline,
	"stopped":    domain.NodeStatusOffline,
	"down":       domain.NodeStatusOffline,
	"failed":     domain.NodeStatusError,
	"error":      domain.NodeStatusError,
	"degraded":   domain.NodeStatusError,
}

// MapStatus translates an upstream status word, defaulting to active
func MapStatus(status string) domain.NodeStatus {
	if s, ok := statusVocabulary[strings.ToLower(strings.TrimSpace(status))]; ok {
		return s
	}
	return domain.NodeStatusActive
}

// PipelinePayload is the upstream pipeline document
type PipelinePayload struct {
	GeneratedAt time.Time      `json:"generatedAt"`
	Nodes       []UpstreamNode `json:"nodes"`
	Links       []UpstreamLink `json:"links"`
}

// UpstreamNode is a node in the pipeline taxonomy
type UpstreamNode struct {
	ID       string           `json:"id"`
	Label    string           `json:"label"`
	Type     string           `json:"type"`
	Status   string           `json:"status"`
	Metrics  *UpstreamMetrics `json:"metrics,omitempty"`
	Position *domain.Position `json:"position,omitempty"`
	Priority int              `json:"priority,omitempty"`
}

// UpstreamMetrics are the optional figures the pipeline reports per node
type UpstreamMetrics struct {
	RequestsPerSecond float64 `json:"requestsPerSecond"`
	ErrorRate         float64 `json:"errorRate"`
	CPUPercent        float64 `json:"cpu"`
	MemoryMB          float64 `json:"memoryMb"`
	Queue             int64   `json:"queue"`
	Processed         int64   `json:"processed"`
	UptimeSeconds     int64   `json:"uptime"`
}

// UpstreamLink is a directed link in the pipeline taxonomy
type UpstreamLink struct {
	Source     string   `json:"source"`
	Target     string   `json:"target"`
	Type       string   `json:"type"`
	Throughput *float64 `json:"throughput,omitempty"`
	Bytes      *float64 `json:"bytes,omitempty"`
	LatencyMs  *float64 `json:"latencyMs,omitempty"`
	ErrorRate  *float64 `json:"errorRate,omitempty"`
}

// MapPipeline translates a pipeline payload into the unified graph. It has no
// side effects. Undeclared node or link types are an error; unknown status
// words are not. A reversed duplicate link marks the existing connection
// bidirectional instead of producing a second edge.
func MapPipeline(p *PipelinePayload) (*domain.Graph, error) {
	graph := domain.NewGraph()
	if p == nil {
		return graph, nil
	}

	ids := make(map[string]struct{}, len(p.Nodes))
	for _, un := range p.Nodes {
		if _, dup := ids[un.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateUpstream, un.ID)
		}
		ids[un.ID] = struct{}{}

		node, err := mapNode(un, p.GeneratedAt)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", un.ID, err)
		}
		graph.AddNode(*node)
	}

	byKey := make(map[domain.EdgeKey]int, len(p.Links))
	for _, ul := range p.Links {
		if _, ok := ids[ul.Source]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownEndpoint, ul.Source)
		}
		if _, ok := ids[ul.Target]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownEndpoint, ul.Target)
		}

		key := domain.NewEdgeKey(ul.Source, ul.Target)
		if i, seen := byKey[key]; seen {
			existing := &graph.Connections[i]
			if existing.SourceID != ul.Source {
				existing.Bidirectional = true
			}
			continue
		}

		conn, err := mapLink(ul)
		if err != nil {
			return nil, fmt.Errorf("link %s->%s: %w", ul.Source, ul.Target, err)
		}
		if err := conn.Validate(); err != nil {
			return nil, err
		}
		byKey[key] = len(graph.Connections)
		graph.AddConnection(*conn)
	}

	graph.Refresh()
	return graph, nil
}

func mapNode(un UpstreamNode, generatedAt time.Time) (*domain.Node, error) {
	t, err := ParseUpstreamType(un.Type)
	if err != nil {
		return nil, err
	}

	label := un.Label
	if label == "" {
		label = un.ID
	}
	node := domain.NewNode(un.ID, t.Category(), label)
	node.Status = MapStatus(un.Status)
	node.Priority = un.Priority
	node.Description = t.String()
	if un.Position != nil {
		pos := *un.Position
		node.Position = &pos
	}

	node.Metrics.LastActive = generatedAt
	if m := un.Metrics; m != nil {
		node.Metrics.MessagesPerSecond = m.RequestsPerSecond
		node.Metrics.ErrorRate = m.ErrorRate
		node.Metrics.CPUPercent = m.CPUPercent
		node.Metrics.MemoryMB = m.MemoryMB
		node.Metrics.TasksQueued = m.Queue
		node.Metrics.TasksCompleted = m.Processed
		node.Metrics.UptimeSeconds = m.UptimeSeconds
	}
	if err := node.Validate(); err != nil {
		return nil, err
	}
	return node, nil
}

func mapLink(ul UpstreamLink) (*domain.Connection, error) {
	t, err := ParseUpstreamLinkType(ul.Type)
	if err != nil {
		return nil, err
	}

	conn := domain.NewConnection(ul.Source, ul.Target, t.ConnectionType())
	conn.Traffic = domain.Traffic{
		MessagesPerSecond: orDefault(ul.Throughput, DefaultMessagesPerSecond),
		BytesPerSecond:    orDefault(ul.Bytes, DefaultBytesPerSecond),
		LatencyMs:         orDefault(ul.LatencyMs, DefaultLatencyMs),
		ErrorRate:         orDefault(ul.ErrorRate, 0),
	}
	conn.Intensity = DefaultIntensity
	if ul.Throughput != nil {
		conn.Intensity = min(1, conn.Traffic.MessagesPerSecond/IntensityFullScale)
	}
	conn.Animated = conn.Traffic.MessagesPerSecond > 0
	return conn, nil
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
