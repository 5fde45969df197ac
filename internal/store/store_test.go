package store

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"graphwatch/internal/domain"
	"graphwatch/internal/topology"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func sampleGraph() *domain.Graph {
	g := domain.NewGraph()
	for _, id := range []string{"x", "y", "z"} {
		n := domain.NewNode(id, domain.CategoryData, "agent "+id)
		n.Status = domain.NodeStatusActive
		n.Metrics.TasksQueued = 1
		g.AddNode(*n)
	}
	g.AddConnection(*domain.NewConnection("x", "y", domain.ConnTypeData))
	g.AddConnection(*domain.NewConnection("y", "z", domain.ConnTypeQuery))
	return g
}

func newTestStore(t *testing.T) (*Store, *testingclock.FakeClock) {
	t.Helper()
	fc := testingclock.NewFakeClock(t0)
	s := New(Options{Clock: fc})
	require.NoError(t, s.ReplaceAll(sampleGraph()))
	return s, fc
}

func TestNewStoreIsEmpty(t *testing.T) {
	s := New(Options{})
	v := s.View()
	require.NotNil(t, v)
	assert.Empty(t, v.Graph.Nodes)
	assert.Equal(t, ModeLive, v.Mode)
	assert.Zero(t, v.Version)
}

func TestReplaceAll(t *testing.T) {
	s, _ := newTestStore(t)
	v := s.View()

	assert.Len(t, v.Graph.Nodes, 3)
	assert.Len(t, v.Graph.Connections, 2)
	assert.Equal(t, uint64(1), v.Version)
	assert.Equal(t, []string{"x", "z"}, mustNode(t, v, "y").Connections, "adjacency is derived")
	assert.Equal(t, 3, v.Graph.Stats.ActiveNodes)

	t.Run("invalid graph keeps last known", func(t *testing.T) {
		bad := sampleGraph()
		bad.AddConnection(*domain.NewConnection("x", "ghost", domain.ConnTypeData))

		err := s.ReplaceAll(bad)
		assert.ErrorIs(t, err, ErrInvalidGraph)
		assert.ErrorIs(t, err, domain.ErrDanglingReference)
		assert.Same(t, v, s.View())
	})

	t.Run("duplicate ids rejected", func(t *testing.T) {
		bad := sampleGraph()
		bad.AddNode(bad.Nodes[0])
		assert.ErrorIs(t, s.ReplaceAll(bad), ErrInvalidGraph)
		assert.ErrorIs(t, s.ReplaceAll(nil), ErrInvalidGraph)
	})

	t.Run("caller keeps ownership of input", func(t *testing.T) {
		in := sampleGraph()
		require.NoError(t, s.ReplaceAll(in))
		in.Nodes[0].Status = domain.NodeStatusError
		assert.Equal(t, domain.NodeStatusActive, mustNode(t, s.View(), "x").Status)
	})
}

func mustNode(t *testing.T, v *View, id string) domain.Node {
	t.Helper()
	n, ok := v.Node(id)
	require.True(t, ok, "node %s", id)
	return n
}

func TestApplyDeltaChangesOnlyStatus(t *testing.T) {
	s, _ := newTestStore(t)
	before := s.View()

	require.NoError(t, s.ApplyDelta(NodeDelta{ID: "x", Status: ptr(domain.NodeStatusBusy)}))
	after := s.View()

	want := before.Graph.Clone()
	want.Nodes[0].Status = domain.NodeStatusBusy
	if diff := cmp.Diff(want.Nodes, after.Graph.Nodes); diff != "" {
		t.Errorf("nodes mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, before.Graph.Connections, after.Graph.Connections)
	assert.Equal(t, before.Version+1, after.Version)

	// the old view is untouched
	assert.Equal(t, domain.NodeStatusActive, mustNode(t, before, "x").Status)
}

func TestApplyDelta(t *testing.T) {
	tests := []struct {
		name    string
		delta   Delta
		wantErr error
		check   func(t *testing.T, v *View)
	}{
		{
			name:  "metrics patch",
			delta: NodeDelta{ID: "y", Metrics: &domain.MetricsPatch{CPUPercent: ptr(42.0), ErrorRate: ptr(0.1)}},
			check: func(t *testing.T, v *View) {
				n := mustNode(t, v, "y")
				assert.Equal(t, 42.0, n.Metrics.CPUPercent)
				assert.Equal(t, int64(1), n.Metrics.TasksQueued)
				assert.InDelta(t, 0.1/3, v.Graph.Stats.AvgErrorRate, 1e-9)
			},
		},
		{
			name:  "task completion",
			delta: NodeDelta{ID: "z", TasksQueued: -1, TasksCompleted: 1},
			check: func(t *testing.T, v *View) {
				n := mustNode(t, v, "z")
				assert.Zero(t, n.Metrics.TasksQueued)
				assert.Equal(t, int64(1), n.Metrics.TasksCompleted)
				assert.Equal(t, int64(2), v.Graph.Stats.TasksQueued)
			},
		},
		{
			name:  "queue never negative",
			delta: NodeDelta{ID: "z", TasksQueued: -5},
			check: func(t *testing.T, v *View) {
				assert.Zero(t, mustNode(t, v, "z").Metrics.TasksQueued)
			},
		},
		{
			name:  "edge by reversed endpoints",
			delta: EdgeDelta{SourceID: "y", TargetID: "x", Traffic: &domain.TrafficPatch{LatencyMs: ptr(12.0)}, Active: ptr(false)},
			check: func(t *testing.T, v *View) {
				c, ok := v.Connection(domain.ConnectionID("x", "y"))
				require.True(t, ok)
				assert.Equal(t, 12.0, c.Traffic.LatencyMs)
				assert.False(t, c.Active)
				assert.Equal(t, 1, v.Graph.Stats.ActiveConnections)
			},
		},
		{
			name:  "edge by id",
			delta: EdgeDelta{ID: domain.ConnectionID("y", "z"), Animated: ptr(true)},
			check: func(t *testing.T, v *View) {
				c, _ := v.Connection(domain.ConnectionID("y", "z"))
				assert.True(t, c.Animated)
			},
		},
		{name: "unknown node", delta: NodeDelta{ID: "ghost", Status: ptr(domain.NodeStatusBusy)}, wantErr: ErrUnknownTarget},
		{name: "unknown edge", delta: EdgeDelta{SourceID: "x", TargetID: "z", Active: ptr(true)}, wantErr: ErrUnknownTarget},
		{name: "empty node delta", delta: NodeDelta{ID: "x"}, wantErr: ErrInvalidDelta},
		{name: "empty edge delta", delta: EdgeDelta{ID: "abc"}, wantErr: ErrInvalidDelta},
		{name: "unaddressed edge", delta: EdgeDelta{SourceID: "x", Active: ptr(true)}, wantErr: ErrInvalidDelta},
		{name: "bad status", delta: NodeDelta{ID: "x", Status: ptr(domain.NodeStatus("asleep"))}, wantErr: ErrInvalidDelta},
		{name: "bad metrics", delta: NodeDelta{ID: "x", Metrics: &domain.MetricsPatch{ErrorRate: ptr(3.0)}}, wantErr: ErrInvalidDelta},
		{name: "bad traffic", delta: EdgeDelta{ID: domain.ConnectionID("x", "y"), Traffic: &domain.TrafficPatch{LatencyMs: ptr(-1.0)}}, wantErr: ErrInvalidDelta},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestStore(t)
			before := s.View()

			err := s.ApplyDelta(tt.delta)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Same(t, before, s.View(), "rejected delta publishes nothing")
				return
			}
			require.NoError(t, err)
			tt.check(t, s.View())
		})
	}
}

func TestDeltasNeverChangeCounts(t *testing.T) {
	reg, err := topology.DefaultRegistry()
	require.NoError(t, err)
	g, err := topology.Build(reg)
	require.NoError(t, err)

	s := New(Options{})
	require.NoError(t, s.ReplaceAll(g))
	nodes, conns := len(g.Nodes), len(g.Connections)

	statuses := []domain.NodeStatus{
		domain.NodeStatusActive, domain.NodeStatusBusy, domain.NodeStatusIdle,
		domain.NodeStatusOffline, domain.NodeStatusError,
	}
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 500; i++ {
		var d Delta
		if rng.IntN(2) == 0 {
			n := g.Nodes[rng.IntN(nodes)]
			d = NodeDelta{ID: n.ID, Status: ptr(statuses[rng.IntN(len(statuses))]), TasksQueued: int64(rng.IntN(3) - 1)}
		} else {
			c := g.Connections[rng.IntN(conns)]
			d = EdgeDelta{ID: c.ID, Traffic: &domain.TrafficPatch{MessagesPerSecond: ptr(rng.Float64() * 50)}}
		}
		require.NoError(t, s.ApplyDelta(d))

		v := s.View()
		require.Len(t, v.Graph.Nodes, nodes)
		require.Len(t, v.Graph.Connections, conns)
		require.Equal(t, nodes, v.Graph.Stats.TotalNodes)
	}
}

func TestIncidents(t *testing.T) {
	s, _ := newTestStore(t)

	inc := domain.Incident{
		ID:            "inc-1",
		Title:         "queue backlog",
		Severity:      domain.SeverityHigh,
		AffectedNodes: []string{"y"},
		DetectedAt:    t0,
	}
	require.NoError(t, s.ApplyIncident(inc))

	got, ok := s.View().Incident("inc-1")
	require.True(t, ok)
	assert.Equal(t, domain.IncidentActive, got.Status, "status defaults to active")
	assert.Equal(t, 1, s.View().Graph.Stats.IncidentsBySeverity[domain.SeverityHigh])

	inc.Severity = domain.SeverityCritical
	require.NoError(t, s.ApplyIncident(inc))
	assert.Len(t, s.View().Graph.Incidents, 1, "update in place")
	assert.Equal(t, 1, s.View().Graph.Stats.IncidentsBySeverity[domain.SeverityCritical])

	require.NoError(t, s.ResolveIncident("inc-1", "operator"))
	got, _ = s.View().Incident("inc-1")
	assert.Equal(t, domain.IncidentResolved, got.Status)
	assert.Equal(t, "operator", got.ResolvedBy)
	assert.Zero(t, s.View().Graph.Stats.ActiveIncidents)

	assert.ErrorIs(t, s.ResolveIncident("nope", ""), ErrUnknownTarget)

	dangling := inc
	dangling.ID = "inc-2"
	dangling.AffectedNodes = []string{"ghost"}
	err := s.ApplyIncident(dangling)
	assert.ErrorIs(t, err, ErrInvalidDelta)
	assert.ErrorIs(t, err, domain.ErrDanglingReference)

	empty := inc
	empty.AffectedNodes = nil
	assert.ErrorIs(t, s.ApplyIncident(empty), domain.ErrInvalidIncident)
}

func TestPlayback(t *testing.T) {
	s, fc := newTestStore(t)

	snapAt := t0.Add(-time.Hour)
	old := sampleGraph()
	old.Nodes[0].Status = domain.NodeStatusOffline
	require.NoError(t, s.ShowSnapshot(domain.NewSnapshot(old, snapAt)))

	v := s.View()
	assert.Equal(t, ModePlayback, v.Mode)
	assert.Equal(t, snapAt, v.At)
	assert.Equal(t, domain.NodeStatusOffline, mustNode(t, v, "x").Status)

	// live deltas keep applying out of sight
	fc.Step(time.Minute)
	require.NoError(t, s.ApplyDelta(NodeDelta{ID: "x", Status: ptr(domain.NodeStatusBusy)}))
	assert.Same(t, v, s.View())
	assert.Equal(t, domain.NodeStatusBusy, s.Live().Nodes[0].Status)

	s.EnterLive()
	v = s.View()
	assert.Equal(t, ModeLive, v.Mode)
	assert.Equal(t, domain.NodeStatusBusy, mustNode(t, v, "x").Status)
	assert.Equal(t, t0.Add(time.Minute), v.At)

	version := v.Version
	s.EnterLive()
	assert.Equal(t, version, s.View().Version, "EnterLive in live mode is a no-op")

	bad := domain.NewSnapshot(sampleGraph(), t0)
	bad.Nodes[0].Category = "astrology"
	assert.ErrorIs(t, s.ShowSnapshot(bad), ErrInvalidGraph)
	assert.Equal(t, ModeLive, s.Mode())
}

func TestListenersSeeEveryVersionInOrder(t *testing.T) {
	s, _ := newTestStore(t)

	var (
		mu       sync.Mutex
		versions []uint64
	)
	s.OnChange(func(v *View) {
		mu.Lock()
		defer mu.Unlock()
		versions = append(versions, v.Version)
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = s.ApplyDelta(NodeDelta{ID: "x", Metrics: &domain.MetricsPatch{CPUPercent: ptr(float64(i*10 + j))}})
			}
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, versions, 80)
	for i := range versions {
		assert.Equal(t, uint64(i+2), versions[i])
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	s := New(Options{Metrics: m})

	require.NoError(t, s.ReplaceAll(sampleGraph()))
	_ = s.ApplyDelta(NodeDelta{ID: "ghost", Status: ptr(domain.NodeStatusBusy)})
	require.NoError(t, s.ApplyDelta(NodeDelta{ID: "x", Status: ptr(domain.NodeStatusBusy)}))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.nodes))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.connections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.appliedTotal.WithLabelValues("delta")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejectedTotal.WithLabelValues("unknown_target")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.version))

	assert.Nil(t, NewMetrics(nil))
}

func ExampleStore_ApplyDelta() {
	s := New(Options{})
	_ = s.ReplaceAll(sampleGraph())
	busy := domain.NodeStatusBusy
	_ = s.ApplyDelta(NodeDelta{ID: "x", Status: &busy})

	n, _ := s.View().Node("x")
	fmt.Println(n.Status, s.View().Version)
	// Output: busy 2
}
