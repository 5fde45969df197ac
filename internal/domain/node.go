package domain

import (
	"fmt"
	"slices"
	"time"
)

// Category is the closed set of agent families shown on the dashboard
type Category string

const (
	CategoryCore           Category = "core"
	CategoryFinancial      Category = "financial"
	CategoryMycology       Category = "mycology"
	CategoryResearch       Category = "research"
	CategoryDAO            Category = "dao"
	CategoryCommunication  Category = "communication"
	CategoryData           Category = "data"
	CategoryInfrastructure Category = "infrastructure"
	CategorySimulation     Category = "simulation"
	CategorySecurity       Category = "security"
	CategoryIntegration    Category = "integration"
	CategoryDevice         Category = "device"
	CategoryInterface      Category = "interface"
	CategoryAutomation     Category = "automation"
)

// Categories lists every valid category in display order
var Categories = []Category{
	CategoryCore,
	CategoryFinancial,
	CategoryMycology,
	CategoryResearch,
	CategoryDAO,
	CategoryCommunication,
	CategoryData,
	CategoryInfrastructure,
	CategorySimulation,
	CategorySecurity,
	CategoryIntegration,
	CategoryDevice,
	CategoryInterface,
	CategoryAutomation,
}

// Valid reports whether c is one of the enumerated categories
func (c Category) Valid() bool {
	return slices.Contains(Categories, c)
}

// Index returns the display position of the category, or -1 if unknown
func (c Category) Index() int {
	return slices.Index(Categories, c)
}

// NodeStatus represents the operational status of an agent
type NodeStatus string

const (
	NodeStatusActive  NodeStatus = "active"
	NodeStatusBusy    NodeStatus = "busy"
	NodeStatusIdle    NodeStatus = "idle"
	NodeStatusOffline NodeStatus = "offline"
	NodeStatusError   NodeStatus = "error"
)

// Valid reports whether s is a known status
func (s NodeStatus) Valid() bool {
	switch s {
	case NodeStatusActive, NodeStatusBusy, NodeStatusIdle, NodeStatusOffline, NodeStatusError:
		return true
	}
	return false
}

// Live reports whether the status counts as a running agent
func (s NodeStatus) Live() bool {
	return s == NodeStatusActive || s == NodeStatusBusy || s == NodeStatusIdle
}

// NodeMetrics holds the runtime figures reported for an agent
type NodeMetrics struct {
	CPUPercent        float64   `json:"cpuPercent"`
	MemoryMB          float64   `json:"memoryMb"`
	TasksCompleted    int64     `json:"tasksCompleted"`
	TasksQueued       int64     `json:"tasksQueued"`
	MessagesPerSecond float64   `json:"messagesPerSecond"`
	ErrorRate         float64   `json:"errorRate"`
	UptimeSeconds     int64     `json:"uptimeSeconds"`
	LastActive        time.Time `json:"lastActiveTimestamp"`
}

// Validate checks that metrics are non-negative and the error rate is a ratio
func (m NodeMetrics) Validate() error {
	if m.CPUPercent < 0 || m.MemoryMB < 0 || m.MessagesPerSecond < 0 {
		return fmt.Errorf("%w: negative metric", ErrInvalidMetrics)
	}
	if m.TasksCompleted < 0 || m.TasksQueued < 0 || m.UptimeSeconds < 0 {
		return fmt.Errorf("%w: negative counter", ErrInvalidMetrics)
	}
	if m.ErrorRate < 0 || m.ErrorRate > 1 {
		return fmt.Errorf("%w: error rate %v outside [0,1]", ErrInvalidMetrics, m.ErrorRate)
	}
	return nil
}

// Capabilities are the operator actions an agent accepts
type Capabilities struct {
	CanStart     bool `json:"canStart"`
	CanStop      bool `json:"canStop"`
	CanRestart   bool `json:"canRestart"`
	CanConfigure bool `json:"canConfigure"`
}

// Allows reports whether the capability set permits the given action
func (c Capabilities) Allows(action ActionType) bool {
	switch action {
	case ActionStart:
		return c.CanStart
	case ActionStop:
		return c.CanStop
	case ActionRestart:
		return c.CanRestart
	case ActionConfigure:
		return c.CanConfigure
	}
	// spawn and task are orchestrator-level actions
	return true
}

// Node represents an agent in the graph
type Node struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Category     Category     `json:"category"`
	Status       NodeStatus   `json:"status"`
	Metrics      NodeMetrics  `json:"metrics"`
	Position     *Position    `json:"position,omitempty"`
	Connections  []string     `json:"connections"`
	Size         float64      `json:"size"`
	Priority     int          `json:"priority"`
	Capabilities Capabilities `json:"capabilities"`
	Description  string       `json:"description,omitempty"`
}

// NewNode creates a new node with initialized collections
func NewNode(id string, category Category, name string) *Node {
	return &Node{
		ID:          id,
		Name:        name,
		Category:    category,
		Status:      NodeStatusIdle,
		Connections: make([]string, 0),
		Size:        1,
		Capabilities: Capabilities{
			CanStart:     true,
			CanStop:      true,
			CanRestart:   true,
			CanConfigure: true,
		},
	}
}

// Validate checks the node invariants
func (n *Node) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidNode)
	}
	if !n.Category.Valid() {
		return fmt.Errorf("%w: node %s has unknown category %q", ErrInvalidNode, n.ID, n.Category)
	}
	if !n.Status.Valid() {
		return fmt.Errorf("%w: node %s has unknown status %q", ErrInvalidNode, n.ID, n.Status)
	}
	if err := n.Metrics.Validate(); err != nil {
		return fmt.Errorf("node %s: %w", n.ID, err)
	}
	return nil
}

// Clone returns a deep copy of the node
func (n Node) Clone() Node {
	out := n
	out.Connections = slices.Clone(n.Connections)
	if n.Position != nil {
		p := *n.Position
		out.Position = &p
	}
	return out
}

// ConnectedTo reports whether id is in the node's adjacency list
func (n *Node) ConnectedTo(id string) bool {
	return slices.Contains(n.Connections, id)
}
