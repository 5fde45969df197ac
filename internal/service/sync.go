package service

import (
	"errors"
	"log/slog"

	"graphwatch/internal/channel"
	"graphwatch/internal/store"
)

// Synchroniser turns live channel messages into store changes. Every
// message is an incremental change; full replacements only come from
// adapter syncs and snapshot loads.
type Synchroniser struct {
	store  *store.Store
	bus    *EventBus
	logger *slog.Logger
}

var _ channel.Handler = (*Synchroniser)(nil)

// NewSynchroniser creates a handler applying messages to st
func NewSynchroniser(st *store.Store, bus *EventBus, logger *slog.Logger) *Synchroniser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchroniser{
		store:  st,
		bus:    bus,
		logger: logger.With("component", "sync"),
	}
}

// HandleMessage implements channel.Handler. Messages for entities the graph
// does not know are ignored; invalid ones are logged and dropped.
func (s *Synchroniser) HandleMessage(msg channel.Message) {
	if err := s.apply(msg); err != nil {
		if errors.Is(err, store.ErrUnknownTarget) {
			s.logger.Debug("ignoring message for unknown target", "type", msg.MessageType(), "error", err)
			return
		}
		s.logger.Warn("rejected live message", "type", msg.MessageType(), "error", err)
	}
}

func (s *Synchroniser) apply(msg channel.Message) error {
	switch m := msg.(type) {
	case channel.AgentUpdate:
		return s.store.ApplyDelta(store.NodeDelta{ID: m.AgentID, Status: m.Status, Metrics: m.Metrics})

	case channel.AgentEvent:
		if m.Status == nil {
			s.logger.Debug("agent event", "agent", m.AgentID, "event", m.Event, "message", m.Message)
			return nil
		}
		return s.store.ApplyDelta(store.NodeDelta{ID: m.AgentID, Status: m.Status})

	case channel.MetricUpdate:
		metrics := m.Metrics
		return s.store.ApplyDelta(store.NodeDelta{ID: m.AgentID, Metrics: &metrics})

	case channel.ConnectionUpdate:
		return s.store.ApplyDelta(store.EdgeDelta{
			ID:       m.ConnectionID,
			SourceID: m.SourceID,
			TargetID: m.TargetID,
			Traffic:  m.Traffic,
			Active:   m.Active,
			Animated: m.Animated,
		})

	case channel.TaskEvent:
		d := store.NodeDelta{ID: m.AgentID}
		switch m.Kind {
		case channel.TypeTaskAssigned:
			d.TasksQueued = 1
		case channel.TypeTaskCompleted:
			d.TasksQueued = -1
			d.TasksCompleted = 1
		}
		return s.store.ApplyDelta(d)

	case channel.IncidentChanged:
		if err := s.store.ApplyIncident(m.Incident); err != nil {
			return err
		}
		s.publishIncident(m.Kind, m.Incident.ID)
		return nil

	case channel.IncidentResolved:
		by := m.ResolvedBy
		if by == "" {
			by = "orchestrator"
		}
		if err := s.store.ResolveIncident(m.IncidentID, by); err != nil {
			return err
		}
		s.publishIncident(channel.TypeIncidentResolved, m.IncidentID)
		return nil

	case channel.Pong:
		// latency is recorded by the channel itself
		return nil
	}

	s.logger.Warn("unhandled message type", "type", msg.MessageType())
	return nil
}

func (s *Synchroniser) publishIncident(kind channel.MessageType, id string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(Event{
		Type:    EventIncidentsChanged,
		Payload: map[string]string{"incident_id": id, "change": string(kind)},
	})
}
