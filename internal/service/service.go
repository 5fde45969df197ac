package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"graphwatch/internal/adapter"
	"graphwatch/internal/channel"
	"graphwatch/internal/domain"
	"graphwatch/internal/incident"
	"graphwatch/internal/lod"
	"graphwatch/internal/store"
	"graphwatch/internal/timeline"
)

var (
	// ErrUnknownAgent is returned for actions on agents not in the graph
	ErrUnknownAgent = errors.New("unknown agent")
	// ErrActionNotAllowed is returned when an agent's capabilities forbid the action
	ErrActionNotAllowed = errors.New("action not allowed")
	// ErrUnavailable is returned when the collaborator an operation needs was not configured
	ErrUnavailable = errors.New("not available")
)

// ActionClient forwards operator actions to the orchestrator
type ActionClient interface {
	Do(ctx context.Context, req domain.ActionRequest) (domain.ActionResult, error)
}

// LiveChannel is the part of the live update channel the service drives
type LiveChannel interface {
	Connect()
	Disconnect()
	Status() channel.Status
	OnStatus(fn func(channel.Status))
	SubscribeAgent(agentID string) error
	UnsubscribeAgent(agentID string) error
}

// Deps are the collaborators of a GraphService. Channel, Adapters and
// Actions may be nil when running without an orchestrator.
type Deps struct {
	Store        *store.Store
	Engine       *lod.Engine
	DefaultLevel lod.DetailLevel
	Overlay      *incident.Overlay
	Player       *timeline.Player
	Channel      LiveChannel
	Adapters     *adapter.Registry
	Reconciler   *Reconciler
	Actions      ActionClient
	// Resolver backs the default overlay when Overlay is nil
	Resolver incident.Resolver
	// Fallback is shown until the first successful sync
	Fallback *domain.Graph
	// Heads maps categories to their head agent for gap detection
	Heads    map[domain.Category]string
	EventBus *EventBus
	Logger   *slog.Logger
}

// GraphService is the dashboard core the gateway talks to
type GraphService struct {
	store        *store.Store
	engine       *lod.Engine
	defaultLevel lod.DetailLevel
	overlay      *incident.Overlay
	player       *timeline.Player
	channel      LiveChannel
	adapters     *adapter.Registry
	reconciler   *Reconciler
	actions      ActionClient
	fallback     *domain.Graph
	heads        map[domain.Category]string
	eventBus     *EventBus
	logger       *slog.Logger

	mu         sync.Mutex
	highlights incident.Highlights
}

// NewGraphService wires the components together. It registers listeners on
// the store, channel and player that publish to the event bus.
func NewGraphService(d Deps) (*GraphService, error) {
	if d.Store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrUnavailable)
	}
	if d.Engine == nil {
		e, err := lod.NewEngine(lod.DefaultPolicy())
		if err != nil {
			return nil, err
		}
		d.Engine = e
	}
	if d.EventBus == nil {
		d.EventBus = NewEventBus()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Reconciler == nil {
		d.Reconciler = NewReconciler(d.Store, d.EventBus, d.Logger)
	}

	s := &GraphService{
		store:        d.Store,
		engine:       d.Engine,
		defaultLevel: d.DefaultLevel,
		overlay:      d.Overlay,
		player:       d.Player,
		channel:      d.Channel,
		adapters:     d.Adapters,
		reconciler:   d.Reconciler,
		actions:      d.Actions,
		fallback:     d.Fallback,
		heads:        d.Heads,
		eventBus:     d.EventBus,
		logger:       d.Logger.With("component", "service"),
	}
	if s.overlay == nil {
		s.overlay = incident.New(s.displayed, d.Resolver, d.Logger)
	}
	s.highlights = s.overlay.Highlights()

	s.store.OnChange(s.viewChanged)
	if s.channel != nil {
		s.channel.OnStatus(func(st channel.Status) {
			s.eventBus.Publish(Event{Type: EventChannelStatus, Payload: st})
		})
	}
	if s.player != nil {
		s.player.OnChange(func(st timeline.State) {
			s.eventBus.Publish(Event{Type: EventTimelineState, Payload: st})
		})
	}
	return s, nil
}

// EventBus returns the bus the service publishes to
func (s *GraphService) EventBus() *EventBus {
	return s.eventBus
}

// Timeline returns the snapshot player, or nil without history
func (s *GraphService) Timeline() *timeline.Player {
	return s.player
}

func (s *GraphService) displayed() *domain.Graph {
	return s.store.View().Graph
}

// ViewNote is the payload of EventGraphUpdated
type ViewNote struct {
	Version uint64     `json:"version"`
	Mode    store.Mode `json:"mode"`
	At      time.Time  `json:"at"`
}

// viewChanged runs under the store lock; it only reads and publishes
func (s *GraphService) viewChanged(v *store.View) {
	s.eventBus.Publish(Event{
		Type:    EventGraphUpdated,
		Payload: ViewNote{Version: v.Version, Mode: v.Mode, At: v.At},
	})
	s.refreshHighlights()
}

func (s *GraphService) refreshHighlights() {
	h := s.overlay.Highlights()

	s.mu.Lock()
	same := reflect.DeepEqual(h, s.highlights)
	s.highlights = h
	s.mu.Unlock()

	if !same {
		s.eventBus.Publish(Event{Type: EventHighlightsChanged, Payload: h})
	}
}

// Start shows the fallback graph, runs the first sync and opens the live
// channel. A failed first sync is logged; the fallback stays on screen and
// the channel's polling takes over.
func (s *GraphService) Start(ctx context.Context) error {
	if s.fallback != nil && len(s.store.Live().Nodes) == 0 {
		if err := s.store.ReplaceAll(s.fallback); err != nil {
			return fmt.Errorf("invalid fallback graph: %w", err)
		}
	}
	if s.adapters != nil {
		if err := s.adapters.Start(ctx); err != nil {
			return fmt.Errorf("start adapters: %w", err)
		}
		if err := s.adapters.TriggerSyncAll(ctx); err != nil {
			s.logger.Warn("initial sync failed, showing last known graph", "error", err)
		}
	}
	if s.channel != nil {
		s.channel.Connect()
	}
	return nil
}

// Stop closes the channel, halts playback and stops the adapters
func (s *GraphService) Stop() {
	if s.channel != nil {
		s.channel.Disconnect()
	}
	if s.player != nil {
		s.player.Stop()
	}
	if s.adapters != nil {
		if err := s.adapters.Stop(); err != nil {
			s.logger.Warn("stop adapters", "error", err)
		}
	}
}

// Sync pulls a full refresh from every enabled source
func (s *GraphService) Sync(ctx context.Context) error {
	if s.adapters == nil {
		return fmt.Errorf("%w: no sources configured", ErrUnavailable)
	}
	return s.adapters.TriggerSyncAll(ctx)
}

// Import replaces the live graph with an uploaded one. The next sync or
// poll from a remote source replaces it again.
func (s *GraphService) Import(ctx context.Context, source string, g *domain.Graph) error {
	return s.reconciler.ReconcileGraph(ctx, source, g)
}

// View returns the currently displayed state
func (s *GraphService) View() *store.View {
	return s.store.View()
}

// DefaultLevel is the level used when a request names none
func (s *GraphService) DefaultLevel() lod.DetailLevel {
	return s.defaultLevel
}

// Graph reduces the displayed graph to the requested level of detail
func (s *GraphService) Graph(level lod.DetailLevel, focus lod.Focus) (*lod.Result, error) {
	return s.engine.Reduce(s.displayed(), level, focus)
}

// StatusReport summarises what the dashboard is showing and how it is fed
type StatusReport struct {
	Mode     store.Mode            `json:"mode"`
	Version  uint64                `json:"version"`
	At       time.Time             `json:"at"`
	Stats    domain.GraphStats     `json:"stats"`
	Channel  *channel.Status       `json:"channel,omitempty"`
	Timeline *timeline.State       `json:"timeline,omitempty"`
	Adapters []adapter.AdapterInfo `json:"adapters,omitempty"`
}

// Status reports the current display and connectivity state
func (s *GraphService) Status() StatusReport {
	v := s.store.View()
	r := StatusReport{
		Mode:    v.Mode,
		Version: v.Version,
		At:      v.At,
		Stats:   v.Graph.Stats,
	}
	if s.channel != nil {
		st := s.channel.Status()
		r.Channel = &st
	}
	if s.player != nil {
		st := s.player.State()
		r.Timeline = &st
	}
	if s.adapters != nil {
		r.Adapters = s.adapters.ListAdapters()
	}
	return r
}

// Incidents returns the open incidents grouped by severity
func (s *GraphService) Incidents() []incident.Group {
	return s.overlay.Groups()
}

// IncidentChain renders the causality chain of one incident
func (s *GraphService) IncidentChain(id string) ([]incident.Step, error) {
	return s.overlay.Chain(id)
}

// Highlights returns the current incident highlight set
func (s *GraphService) Highlights() incident.Highlights {
	return s.overlay.Highlights()
}

// ResolveIncident asks the orchestrator to resolve an incident and hides it
// once confirmed
func (s *GraphService) ResolveIncident(ctx context.Context, id string) (domain.ActionResult, error) {
	res, err := s.overlay.Resolve(ctx, id)
	if err != nil {
		return res, err
	}
	if res.Success {
		s.eventBus.Publish(Event{
			Type:    EventIncidentsChanged,
			Payload: map[string]string{"incident_id": id, "change": "hidden"},
		})
		s.refreshHighlights()
	}
	return res, nil
}

// Gaps lists agents the live graph appears to be missing
func (s *GraphService) Gaps() []domain.DetectedGap {
	gaps := incident.DetectGaps(s.store.Live(), s.heads)
	if gaps == nil {
		return []domain.DetectedGap{}
	}
	return gaps
}

// Action forwards an operator action after checking the agent exists and
// accepts it. A refusal by the orchestrator is a result, not an error.
func (s *GraphService) Action(ctx context.Context, req domain.ActionRequest) (domain.ActionResult, error) {
	if s.actions == nil {
		return domain.ActionResult{}, fmt.Errorf("%w: actions need an orchestrator", ErrUnavailable)
	}
	if !req.Action.Valid() {
		return domain.ActionResult{}, fmt.Errorf("%w: unknown action %q", ErrActionNotAllowed, req.Action)
	}

	node, ok := s.liveNode(req.AgentID)
	if !ok && req.Action != domain.ActionSpawn {
		return domain.ActionResult{}, fmt.Errorf("%w: %s", ErrUnknownAgent, req.AgentID)
	}
	if ok && !node.Capabilities.Allows(req.Action) {
		return domain.ActionResult{}, fmt.Errorf("%w: %s on %s", ErrActionNotAllowed, req.Action, req.AgentID)
	}

	res, err := s.actions.Do(ctx, req)
	if err != nil {
		return domain.ActionResult{}, err
	}
	s.logger.Info("action completed", "agent", req.AgentID, "action", req.Action, "success", res.Success)
	s.eventBus.Publish(Event{
		Type: EventActionCompleted,
		Payload: map[string]any{
			"agentId": req.AgentID,
			"action":  req.Action,
			"success": res.Success,
			"message": res.Message,
		},
	})
	return res, nil
}

func (s *GraphService) liveNode(id string) (domain.Node, bool) {
	for _, n := range s.store.Live().Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return domain.Node{}, false
}

// WatchAgent asks the orchestrator for detailed updates of one agent
func (s *GraphService) WatchAgent(id string) error {
	if s.channel == nil {
		return fmt.Errorf("%w: no live channel", ErrUnavailable)
	}
	if _, ok := s.liveNode(id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, id)
	}
	return s.channel.SubscribeAgent(id)
}

// UnwatchAgent stops detailed updates of one agent
func (s *GraphService) UnwatchAgent(id string) error {
	if s.channel == nil {
		return fmt.Errorf("%w: no live channel", ErrUnavailable)
	}
	return s.channel.UnsubscribeAgent(id)
}
