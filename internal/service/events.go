package service

import (
	"sync"
	"sync/atomic"
)

// EventType defines the type of event
type EventType string

const (
	EventGraphUpdated      EventType = "graph_updated"
	EventGraphReplaced     EventType = "graph_replaced"
	EventChannelStatus     EventType = "channel_status"
	EventIncidentsChanged  EventType = "incidents_changed"
	EventHighlightsChanged EventType = "highlights_changed"
	EventTimelineState     EventType = "timeline_state"
	EventActionCompleted   EventType = "action_completed"
	EventSnapshotRecorded  EventType = "snapshot_recorded"
)

// Event represents an event that occurred in the system
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

// EventBus allows publishing and subscribing to events
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[uint64]chan Event
	nextID      uint64
	dropped     atomic.Uint64
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[uint64]chan Event),
	}
}

// Subscribe registers a subscriber with the given buffer size. The returned
// function unsubscribes and closes the channel; it is safe to call twice.
func (eb *EventBus) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	eb.mu.Lock()
	id := eb.nextID
	eb.nextID++
	eb.subscribers[id] = ch
	eb.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			eb.mu.Lock()
			delete(eb.subscribers, id)
			eb.mu.Unlock()
			close(ch)
		})
	}
}

// Publish sends an event to all subscribers without blocking
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber is slow, skip
			eb.dropped.Add(1)
		}
	}
}

// Dropped returns how many deliveries were skipped for slow subscribers
func (eb *EventBus) Dropped() uint64 {
	return eb.dropped.Load()
}

// SubscriberCount returns the number of active subscribers
func (eb *EventBus) SubscriberCount() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}
