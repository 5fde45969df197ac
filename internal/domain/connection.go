package domain

import "fmt"

// ConnectionType indicates the purpose of a link between agents
type ConnectionType string

const (
	ConnTypeData    ConnectionType = "data"
	ConnTypeQuery   ConnectionType = "query"
	ConnTypeStream  ConnectionType = "stream"
	ConnTypeMessage ConnectionType = "message"
	ConnTypeCommand ConnectionType = "command"
	ConnTypeEvent   ConnectionType = "event"
)

// Valid reports whether t is a known connection type
func (t ConnectionType) Valid() bool {
	switch t {
	case ConnTypeData, ConnTypeQuery, ConnTypeStream, ConnTypeMessage, ConnTypeCommand, ConnTypeEvent:
		return true
	}
	return false
}

// Traffic holds the live figures for a connection
type Traffic struct {
	MessagesPerSecond float64 `json:"messagesPerSecond"`
	BytesPerSecond    float64 `json:"bytesPerSecond"`
	LatencyMs         float64 `json:"latencyMs"`
	ErrorRate         float64 `json:"errorRate"`
}

// Validate checks that traffic figures are non-negative
func (t Traffic) Validate() error {
	if t.MessagesPerSecond < 0 || t.BytesPerSecond < 0 || t.LatencyMs < 0 || t.ErrorRate < 0 {
		return fmt.Errorf("%w: negative traffic figure", ErrInvalidMetrics)
	}
	return nil
}

// Connection represents a link between two agents
type Connection struct {
	ID            string         `json:"id"`
	SourceID      string         `json:"sourceId"`
	TargetID      string         `json:"targetId"`
	Type          ConnectionType `json:"type"`
	Traffic       Traffic        `json:"traffic"`
	Active        bool           `json:"active"`
	Animated      bool           `json:"animated"`
	Bidirectional bool           `json:"bidirectional"`
	Intensity     float64        `json:"intensity"`
}

// NewConnection creates a connection with a deterministic ID
func NewConnection(sourceID, targetID string, connType ConnectionType) *Connection {
	return &Connection{
		ID:        ConnectionID(sourceID, targetID),
		SourceID:  sourceID,
		TargetID:  targetID,
		Type:      connType,
		Active:    true,
		Intensity: 0.5,
	}
}

// Validate checks the connection invariants that do not need the node set
func (c *Connection) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidConnection)
	}
	if c.SourceID == "" || c.TargetID == "" {
		return fmt.Errorf("%w: connection %s has an empty endpoint", ErrInvalidConnection, c.ID)
	}
	if c.SourceID == c.TargetID {
		return fmt.Errorf("%w: connection %s is a self-loop", ErrInvalidConnection, c.ID)
	}
	if !c.Type.Valid() {
		return fmt.Errorf("%w: connection %s has unknown type %q", ErrInvalidConnection, c.ID, c.Type)
	}
	if c.Intensity < 0 || c.Intensity > 1 {
		return fmt.Errorf("%w: connection %s intensity %v outside [0,1]", ErrInvalidConnection, c.ID, c.Intensity)
	}
	if err := c.Traffic.Validate(); err != nil {
		return fmt.Errorf("connection %s: %w", c.ID, err)
	}
	return nil
}

// Involves checks if this connection involves the given node ID
func (c *Connection) Involves(nodeID string) bool {
	return c.SourceID == nodeID || c.TargetID == nodeID
}

// OtherEnd returns the node ID on the other end of this connection
func (c *Connection) OtherEnd(nodeID string) string {
	if c.SourceID == nodeID {
		return c.TargetID
	}
	return c.SourceID
}

// Key returns the canonical unordered pair key of the connection
func (c *Connection) Key() EdgeKey {
	return NewEdgeKey(c.SourceID, c.TargetID)
}
