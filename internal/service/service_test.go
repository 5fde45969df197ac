package service

import (
	"context"
	"errors"
	"testing"

	"graphwatch/internal/channel"
	"graphwatch/internal/domain"
	"graphwatch/internal/incident"
	"graphwatch/internal/lod"
	"graphwatch/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func testGraph() *domain.Graph {
	g := domain.NewGraph()
	api := domain.NewNode("api", domain.CategoryCommunication, "API gateway")
	api.Status = domain.NodeStatusActive
	db := domain.NewNode("db", domain.CategoryData, "Database agent")
	db.Status = domain.NodeStatusActive
	db.Capabilities.CanStop = false
	g.AddNode(*api)
	g.AddNode(*db)
	g.AddConnection(*domain.NewConnection("api", "db", domain.ConnTypeQuery))
	return g
}

func drain(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case e := <-ch:
			out = append(out, e)
		default:
			return out
		}
	}
}

func types(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func TestEventBus(t *testing.T) {
	bus := NewEventBus()
	a, unsubA := bus.Subscribe(1)
	b, unsubB := bus.Subscribe(4)
	defer unsubB()
	assert.Equal(t, 2, bus.SubscriberCount())

	bus.Publish(Event{Type: EventGraphUpdated})
	bus.Publish(Event{Type: EventGraphReplaced})

	assert.Equal(t, []EventType{EventGraphUpdated}, types(drain(a)))
	assert.Equal(t, []EventType{EventGraphUpdated, EventGraphReplaced}, types(drain(b)))
	assert.Equal(t, uint64(1), bus.Dropped(), "full buffer drops instead of blocking")

	unsubA()
	unsubA()
	_, open := <-a
	assert.False(t, open)
	assert.Equal(t, 1, bus.SubscriberCount())
}

func TestSynchroniser(t *testing.T) {
	tests := []struct {
		name  string
		msg   channel.Message
		check func(t *testing.T, v *store.View)
	}{
		{
			name: "agent update",
			msg:  channel.AgentUpdate{AgentID: "api", Status: ptr(domain.NodeStatusBusy)},
			check: func(t *testing.T, v *store.View) {
				n, _ := v.Node("api")
				assert.Equal(t, domain.NodeStatusBusy, n.Status)
			},
		},
		{
			name: "agent event with status",
			msg:  channel.AgentEvent{AgentID: "db", Event: "crashed", Status: ptr(domain.NodeStatusError)},
			check: func(t *testing.T, v *store.View) {
				n, _ := v.Node("db")
				assert.Equal(t, domain.NodeStatusError, n.Status)
			},
		},
		{
			name: "metric update",
			msg:  channel.MetricUpdate{AgentID: "db", Metrics: domain.MetricsPatch{CPUPercent: ptr(55.0)}},
			check: func(t *testing.T, v *store.View) {
				n, _ := v.Node("db")
				assert.Equal(t, 55.0, n.Metrics.CPUPercent)
			},
		},
		{
			name: "connection update by endpoints",
			msg:  channel.ConnectionUpdate{SourceID: "api", TargetID: "db", Active: ptr(false)},
			check: func(t *testing.T, v *store.View) {
				assert.False(t, v.Graph.Connections[0].Active)
			},
		},
		{
			name: "task assigned then completed",
			msg:  channel.TaskEvent{Kind: channel.TypeTaskCompleted, AgentID: "api"},
			check: func(t *testing.T, v *store.View) {
				n, _ := v.Node("api")
				assert.Zero(t, n.Metrics.TasksQueued)
				assert.Equal(t, int64(1), n.Metrics.TasksCompleted)
			},
		},
		{
			name: "incident created",
			msg: channel.IncidentChanged{Kind: channel.TypeIncidentCreated, Incident: domain.Incident{
				ID: "i1", Title: "slow queries", Severity: domain.SeverityHigh, AffectedNodes: []string{"db"},
			}},
			check: func(t *testing.T, v *store.View) {
				inc, ok := v.Incident("i1")
				require.True(t, ok)
				assert.Equal(t, domain.IncidentActive, inc.Status)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.New(store.Options{})
			require.NoError(t, st.ReplaceAll(testGraph()))
			h := NewSynchroniser(st, NewEventBus(), nil)

			if tk, ok := tt.msg.(channel.TaskEvent); ok {
				h.HandleMessage(channel.TaskEvent{Kind: channel.TypeTaskAssigned, AgentID: tk.AgentID})
			}
			before := st.View().Version
			h.HandleMessage(tt.msg)

			v := st.View()
			assert.Greater(t, v.Version, before)
			tt.check(t, v)
		})
	}
}

func TestSynchroniserResolvesIncidents(t *testing.T) {
	st := store.New(store.Options{})
	g := testGraph()
	g.Incidents = []domain.Incident{{ID: "i1", Severity: domain.SeverityLow, AffectedNodes: []string{"api"}}}
	require.NoError(t, st.ReplaceAll(g))

	bus := NewEventBus()
	events, unsub := bus.Subscribe(8)
	defer unsub()

	NewSynchroniser(st, bus, nil).HandleMessage(channel.IncidentResolved{IncidentID: "i1"})

	inc, ok := st.View().Incident("i1")
	require.True(t, ok)
	assert.Equal(t, domain.IncidentResolved, inc.Status)
	assert.Equal(t, "orchestrator", inc.ResolvedBy)

	got := drain(events)
	require.Len(t, got, 1)
	assert.Equal(t, EventIncidentsChanged, got[0].Type)
}

func TestSynchroniserIgnoresUnknownTargets(t *testing.T) {
	st := store.New(store.Options{})
	require.NoError(t, st.ReplaceAll(testGraph()))
	before := st.View()

	s := NewSynchroniser(st, nil, nil)
	s.HandleMessage(channel.AgentUpdate{AgentID: "ghost", Status: ptr(domain.NodeStatusBusy)})
	s.HandleMessage(channel.IncidentResolved{IncidentID: "nope"})
	s.HandleMessage(channel.Pong{Timestamp: 1})
	s.HandleMessage(channel.AgentEvent{AgentID: "api", Event: "heartbeat"})

	assert.Same(t, before, st.View())
}

func TestReconcileGraph(t *testing.T) {
	st := store.New(store.Options{})
	bus := NewEventBus()
	events, unsub := bus.Subscribe(8)
	defer unsub()
	r := NewReconciler(st, bus, nil)

	require.NoError(t, r.ReconcileGraph(context.Background(), "graph-api", testGraph()))
	assert.Len(t, st.Live().Nodes, 2)

	got := drain(events)
	require.Len(t, got, 1)
	note, ok := got[0].Payload.(ReplaceNote)
	require.True(t, ok)
	assert.Equal(t, "graph-api", note.Source)
	assert.Equal(t, 2, note.Stats.TotalNodes)

	bad := testGraph()
	bad.AddConnection(*domain.NewConnection("api", "ghost", domain.ConnTypeData))
	err := r.ReconcileGraph(context.Background(), "graph-api", bad)
	assert.ErrorIs(t, err, store.ErrInvalidGraph)
	assert.Len(t, st.Live().Connections, 1, "last known graph kept")

	assert.Error(t, r.ReconcileGraph(context.Background(), "graph-api", nil))
}

type fakeActions struct {
	calls  []domain.ActionRequest
	result domain.ActionResult
	err    error
}

func (f *fakeActions) Do(_ context.Context, req domain.ActionRequest) (domain.ActionResult, error) {
	f.calls = append(f.calls, req)
	return f.result, f.err
}

type fakeResolver struct{ ok bool }

func (f fakeResolver) ResolveIncident(context.Context, string) (domain.ActionResult, error) {
	return domain.ActionResult{Success: f.ok}, nil
}

type fakeChannel struct {
	connected  bool
	watched    []string
	onStatus   func(channel.Status)
	subscribeE error
}

func (f *fakeChannel) Connect() { f.connected = true }
func (f *fakeChannel) Disconnect() { f.connected = false }
func (f *fakeChannel) Status() channel.Status { return channel.Status{Connected: f.connected} }
func (f *fakeChannel) OnStatus(fn func(channel.Status)) { f.onStatus = fn }
func (f *fakeChannel) UnsubscribeAgent(string) error { return nil }
func (f *fakeChannel) SubscribeAgent(id string) error {
	f.watched = append(f.watched, id)
	return f.subscribeE
}

func newService(t *testing.T, d Deps) *GraphService {
	t.Helper()
	if d.Store == nil {
		d.Store = store.New(store.Options{})
		require.NoError(t, d.Store.ReplaceAll(testGraph()))
	}
	svc, err := NewGraphService(d)
	require.NoError(t, err)
	return svc
}

func TestNewGraphServiceRequiresStore(t *testing.T) {
	_, err := NewGraphService(Deps{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestAction(t *testing.T) {
	actions := &fakeActions{result: domain.ActionResult{Success: true, Message: "restarting"}}
	svc := newService(t, Deps{Actions: actions})
	events, unsub := svc.EventBus().Subscribe(8)
	defer unsub()
	ctx := context.Background()

	res, err := svc.Action(ctx, domain.ActionRequest{AgentID: "api", Action: domain.ActionRestart})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []EventType{EventActionCompleted}, types(drain(events)))

	_, err = svc.Action(ctx, domain.ActionRequest{AgentID: "ghost", Action: domain.ActionRestart})
	assert.ErrorIs(t, err, ErrUnknownAgent)

	_, err = svc.Action(ctx, domain.ActionRequest{AgentID: "db", Action: domain.ActionStop})
	assert.ErrorIs(t, err, ErrActionNotAllowed)

	_, err = svc.Action(ctx, domain.ActionRequest{AgentID: "db", Action: "explode"})
	assert.ErrorIs(t, err, ErrActionNotAllowed)

	// spawn targets an agent that does not exist yet
	_, err = svc.Action(ctx, domain.ActionRequest{AgentID: "new-worker", Action: domain.ActionSpawn})
	require.NoError(t, err)
	assert.Len(t, actions.calls, 2)

	t.Run("refusal is a result", func(t *testing.T) {
		actions.result = domain.ActionResult{Success: false, Message: "busy"}
		res, err := svc.Action(ctx, domain.ActionRequest{AgentID: "api", Action: domain.ActionStart})
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, "busy", res.Message)
	})

	t.Run("transport error", func(t *testing.T) {
		actions.err = errors.New("connection refused")
		_, err := svc.Action(ctx, domain.ActionRequest{AgentID: "api", Action: domain.ActionStart})
		assert.Error(t, err)
	})

	t.Run("no orchestrator", func(t *testing.T) {
		_, err := newService(t, Deps{}).Action(ctx, domain.ActionRequest{AgentID: "api", Action: domain.ActionStart})
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}

func TestStartShowsFallback(t *testing.T) {
	st := store.New(store.Options{})
	ch := &fakeChannel{}
	svc := newService(t, Deps{Store: st, Channel: ch, Fallback: testGraph()})

	require.NoError(t, svc.Start(context.Background()))
	assert.Len(t, svc.View().Graph.Nodes, 2)
	assert.True(t, ch.connected)
	assert.True(t, svc.Status().Channel.Connected)

	svc.Stop()
	assert.False(t, ch.connected)

	assert.ErrorIs(t, svc.Sync(context.Background()), ErrUnavailable)
}

func TestChannelStatusIsPublished(t *testing.T) {
	ch := &fakeChannel{}
	svc := newService(t, Deps{Channel: ch})
	events, unsub := svc.EventBus().Subscribe(4)
	defer unsub()

	require.NotNil(t, ch.onStatus)
	ch.onStatus(channel.Status{State: channel.StatePollingFallback, Polling: true})

	got := drain(events)
	require.Len(t, got, 1)
	assert.Equal(t, EventChannelStatus, got[0].Type)
	assert.True(t, got[0].Payload.(channel.Status).Polling)
}

func TestHighlightsFollowIncidents(t *testing.T) {
	st := store.New(store.Options{})
	require.NoError(t, st.ReplaceAll(testGraph()))
	svc := newService(t, Deps{
		Store:   st,
		Overlay: incident.New(func() *domain.Graph { return st.View().Graph }, fakeResolver{ok: true}, nil),
	})
	events, unsub := svc.EventBus().Subscribe(16)
	defer unsub()

	require.NoError(t, st.ApplyIncident(domain.Incident{
		ID: "i1", Severity: domain.SeverityCritical, AffectedNodes: []string{"db"},
	}))
	assert.Equal(t, []EventType{EventGraphUpdated, EventHighlightsChanged}, types(drain(events)))
	assert.Equal(t, domain.SeverityCritical, svc.Highlights().Nodes["db"])

	// a status change does not move the highlights
	require.NoError(t, st.ApplyDelta(store.NodeDelta{ID: "api", Status: ptr(domain.NodeStatusBusy)}))
	assert.Equal(t, []EventType{EventGraphUpdated}, types(drain(events)))

	res, err := svc.ResolveIncident(context.Background(), "i1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []EventType{EventIncidentsChanged, EventHighlightsChanged}, types(drain(events)))
	assert.Empty(t, svc.Incidents())
	assert.Empty(t, svc.Highlights().Nodes)
}

func TestGraphAtLevel(t *testing.T) {
	svc := newService(t, Deps{DefaultLevel: lod.LevelFull})

	res, err := svc.Graph(svc.DefaultLevel(), lod.Focus{})
	require.NoError(t, err)
	assert.Len(t, res.Nodes, 2)
	assert.Equal(t, lod.LevelFull, res.Level)
}

func TestWatchAgent(t *testing.T) {
	ch := &fakeChannel{}
	svc := newService(t, Deps{Channel: ch})

	require.NoError(t, svc.WatchAgent("db"))
	assert.Equal(t, []string{"db"}, ch.watched)
	assert.ErrorIs(t, svc.WatchAgent("ghost"), ErrUnknownAgent)
	require.NoError(t, svc.UnwatchAgent("db"))

	assert.ErrorIs(t, newService(t, Deps{}).WatchAgent("db"), ErrUnavailable)
}

func TestGapsNeverNil(t *testing.T) {
	svc := newService(t, Deps{})
	assert.NotNil(t, svc.Gaps())
}
