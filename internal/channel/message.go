package channel

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"graphwatch/internal/domain"
)

var (
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrMalformedMessage   = errors.New("malformed message")
)

// MessageType discriminates inbound and outbound envelopes
type MessageType string

const (
	TypeAgentUpdate      MessageType = "agent_update"
	TypeAgentEvent       MessageType = "agent_event"
	TypeMetricUpdate     MessageType = "metric_update"
	TypeConnectionUpdate MessageType = "connection_update"
	TypeIncidentCreated  MessageType = "incident_created"
	TypeIncidentUpdated  MessageType = "incident_updated"
	TypeIncidentResolved MessageType = "incident_resolved"
	TypeTaskAssigned     MessageType = "task_assigned"
	TypeTaskCompleted    MessageType = "task_completed"
	TypePong             MessageType = "pong"

	TypeSubscribe        MessageType = "subscribe"
	TypePing             MessageType = "ping"
	TypeSubscribeAgent   MessageType = "subscribe_agent"
	TypeUnsubscribeAgent MessageType = "unsubscribe_agent"
)

// Envelope is the wire frame for every message
type Envelope struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// Message is a decoded inbound message. The concrete type is one of the
// payload structs below.
type Message interface {
	MessageType() MessageType
}

// AgentUpdate changes an agent's status and optionally its metrics
type AgentUpdate struct {
	AgentID string               `json:"agentId"`
	Status  *domain.NodeStatus   `json:"status,omitempty"`
	Metrics *domain.MetricsPatch `json:"metrics,omitempty"`
}

// AgentEvent is a lifecycle event reported by an agent
type AgentEvent struct {
	AgentID   string             `json:"agentId"`
	Event     string             `json:"event"`
	Status    *domain.NodeStatus `json:"status,omitempty"`
	Message   string             `json:"message,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// MetricUpdate carries fresh metrics for one agent
type MetricUpdate struct {
	AgentID string              `json:"agentId"`
	Metrics domain.MetricsPatch `json:"metrics"`
}

// ConnectionUpdate changes the traffic or active flag of one connection.
// The connection is addressed by id or, if the id is empty, by endpoints.
type ConnectionUpdate struct {
	ConnectionID string               `json:"connectionId,omitempty"`
	SourceID     string               `json:"sourceId,omitempty"`
	TargetID     string               `json:"targetId,omitempty"`
	Traffic      *domain.TrafficPatch `json:"traffic,omitempty"`
	Active       *bool                `json:"active,omitempty"`
	Animated     *bool                `json:"animated,omitempty"`
}

// IncidentChanged carries a created or updated incident
type IncidentChanged struct {
	Kind     MessageType     `json:"-"`
	Incident domain.Incident `json:"incident"`
}

// IncidentResolved closes an incident
type IncidentResolved struct {
	IncidentID string `json:"incidentId"`
	ResolvedBy string `json:"resolvedBy,omitempty"`
}

// TaskEvent is a task assignment or completion for one agent
type TaskEvent struct {
	Kind    MessageType `json:"-"`
	AgentID string      `json:"agentId"`
	TaskID  string      `json:"taskId,omitempty"`
}

// Pong answers a heartbeat ping and echoes its timestamp
type Pong struct {
	Timestamp int64 `json:"timestamp"`
}

func (AgentUpdate) MessageType() MessageType { return TypeAgentUpdate }
func (AgentEvent) MessageType() MessageType { return TypeAgentEvent }
func (MetricUpdate) MessageType() MessageType { return TypeMetricUpdate }
func (ConnectionUpdate) MessageType() MessageType { return TypeConnectionUpdate }
func (m IncidentChanged) MessageType() MessageType { return m.Kind }
func (IncidentResolved) MessageType() MessageType { return TypeIncidentResolved }
func (m TaskEvent) MessageType() MessageType { return m.Kind }
func (Pong) MessageType() MessageType { return TypePong }

type decodeFunc func(env Envelope) (Message, error)

// decoders is the dispatch table for inbound types. Anything not listed is
// ErrUnknownMessageType.
var decoders = map[MessageType]decodeFunc{
	TypeAgentUpdate: func(env Envelope) (Message, error) {
		var m AgentUpdate
		if err := decodePayload(env, &m); err != nil {
			return nil, err
		}
		if m.Status != nil && !m.Status.Valid() {
			return nil, fmt.Errorf("%w: status %q", ErrMalformedMessage, *m.Status)
		}
		return m, requireAgent(m.AgentID)
	},
	TypeAgentEvent: func(env Envelope) (Message, error) {
		var m AgentEvent
		if err := decodePayload(env, &m); err != nil {
			return nil, err
		}
		if m.Status != nil && !m.Status.Valid() {
			return nil, fmt.Errorf("%w: status %q", ErrMalformedMessage, *m.Status)
		}
		return m, requireAgent(m.AgentID)
	},
	TypeMetricUpdate: func(env Envelope) (Message, error) {
		var m MetricUpdate
		if err := decodePayload(env, &m); err != nil {
			return nil, err
		}
		return m, requireAgent(m.AgentID)
	},
	TypeConnectionUpdate: func(env Envelope) (Message, error) {
		var m ConnectionUpdate
		if err := decodePayload(env, &m); err != nil {
			return nil, err
		}
		if m.ConnectionID == "" && (m.SourceID == "" || m.TargetID == "") {
			return nil, fmt.Errorf("%w: connection update without id or endpoints", ErrMalformedMessage)
		}
		return m, nil
	},
	TypeIncidentCreated:  decodeIncident(TypeIncidentCreated),
	TypeIncidentUpdated:  decodeIncident(TypeIncidentUpdated),
	TypeIncidentResolved: func(env Envelope) (Message, error) {
		var m IncidentResolved
		if err := decodePayload(env, &m); err != nil {
			return nil, err
		}
		if m.IncidentID == "" {
			return nil, fmt.Errorf("%w: incident_resolved without incidentId", ErrMalformedMessage)
		}
		return m, nil
	},
	TypeTaskAssigned:  decodeTask(TypeTaskAssigned),
	TypeTaskCompleted: decodeTask(TypeTaskCompleted),
	TypePong: func(env Envelope) (Message, error) {
		m := Pong{Timestamp: env.Timestamp}
		if len(env.Payload) > 0 {
			if err := decodePayload(env, &m); err != nil {
				return nil, err
			}
		}
		return m, nil
	},
}

func decodeIncident(kind MessageType) decodeFunc {
	return func(env Envelope) (Message, error) {
		m := IncidentChanged{Kind: kind}
		if err := decodePayload(env, &m); err != nil {
			return nil, err
		}
		// bare incident payloads are accepted too
		if m.Incident.ID == "" {
			if err := decodePayload(env, &m.Incident); err != nil {
				return nil, err
			}
		}
		if err := m.Incident.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		return m, nil
	}
}

func decodeTask(kind MessageType) decodeFunc {
	return func(env Envelope) (Message, error) {
		m := TaskEvent{Kind: kind}
		if err := decodePayload(env, &m); err != nil {
			return nil, err
		}
		return m, requireAgent(m.AgentID)
	}
}

func decodePayload(env Envelope, v any) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("%w: %s has no payload", ErrMalformedMessage, env.Type)
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrMalformedMessage, env.Type, err)
	}
	return nil
}

func requireAgent(id string) error {
	if id == "" {
		return fmt.Errorf("%w: missing agentId", ErrMalformedMessage)
	}
	return nil
}

// Decode parses one frame into a typed message
func Decode(data []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}
	decode, ok := decoders[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, env.Type)
	}
	msg, err := decode(env)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// outbound frames

type subscribeFrame struct {
	Type   MessageType `json:"type"`
	Topics []string    `json:"topics"`
}

type pingFrame struct {
	Type      MessageType `json:"type"`
	Timestamp int64       `json:"timestamp"`
}

type agentFrame struct {
	Type    MessageType `json:"type"`
	Payload struct {
		AgentID string `json:"agentId"`
	} `json:"payload"`
}

func newAgentFrame(t MessageType, agentID string) agentFrame {
	f := agentFrame{Type: t}
	f.Payload.AgentID = agentID
	return f
}
