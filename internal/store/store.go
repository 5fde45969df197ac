package store

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"graphwatch/internal/domain"

	"k8s.io/utils/clock"
)

// Options are the collaborators of a Store. Zero values get defaults.
type Options struct {
	Clock   clock.PassiveClock
	Logger  *slog.Logger
	Metrics *Metrics
}

// Store is the single source of truth for the displayed graph
type Store struct {
	clock   clock.PassiveClock
	logger  *slog.Logger
	metrics *Metrics

	mu          sync.Mutex
	live        *domain.Graph
	liveIdx     *index
	liveUpdated time.Time
	mode        Mode
	snapshot    *domain.Graph
	snapshotIdx *index
	snapshotAt  time.Time
	version     uint64
	listeners   []func(*View)

	view atomic.Pointer[View]
}

// New creates a store holding an empty live graph
func New(opts Options) *Store {
	s := &Store{
		clock:   opts.Clock,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
	if s.clock == nil {
		s.clock = clock.RealClock{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "store")

	g := domain.NewGraph()
	g.Refresh()
	s.live = g
	s.liveIdx = buildIndex(g)
	s.liveUpdated = s.clock.Now()
	s.view.Store(&View{Graph: g, Mode: ModeLive, At: s.liveUpdated, idx: s.liveIdx})
	return s
}

// View returns the currently published state. It never blocks on writers.
func (s *Store) View() *View {
	return s.view.Load()
}

// Live returns the live graph even while a snapshot is shown. The result is
// shared and must not be modified.
func (s *Store) Live() *domain.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// Mode reports whether the store is showing live data or a snapshot
func (s *Store) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// OnChange registers fn to receive every newly published view. fn runs
// while the store is locked and must not write to the store.
func (s *Store) OnChange(fn func(*View)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// ReplaceAll validates g and makes a copy of it the live graph. An invalid
// graph is rejected and the last known graph stays in place. Adjacency and
// stats are always recomputed from the new collections.
func (s *Store) ReplaceAll(g *domain.Graph) error {
	if g == nil {
		return fmt.Errorf("%w: nil graph", ErrInvalidGraph)
	}
	if err := g.Validate(); err != nil {
		s.metrics.rejected("invalid_graph")
		return fmt.Errorf("%w: %w", ErrInvalidGraph, err)
	}
	next := g.Clone()
	next.Refresh()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = next
	s.liveIdx = buildIndex(next)
	s.liveUpdated = s.clock.Now()
	s.metrics.replaced()
	s.metrics.observe(next)
	s.logger.Debug("graph replaced", "nodes", len(next.Nodes), "connections", len(next.Connections),
		"incidents", len(next.Incidents))
	if s.mode == ModeLive {
		s.publishLocked()
	}
	return nil
}

// ApplyDelta applies one incremental change to the live graph. Node and
// connection counts never change. A rejected delta leaves the graph as is.
func (s *Store) ApplyDelta(d Delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := *s.live
	if err := d.apply(&next, s.liveIdx); err != nil {
		s.metrics.rejected(rejectReason(err))
		return err
	}
	s.commitLocked(&next, "delta")
	return nil
}

// ApplyIncident creates or updates an incident. Every affected node must
// exist in the live graph.
func (s *Store) ApplyIncident(inc domain.Incident) error {
	if err := inc.Validate(); err != nil {
		s.metrics.rejected("invalid")
		return fmt.Errorf("%w: %w", ErrInvalidDelta, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range inc.AffectedNodes {
		if _, ok := s.liveIdx.nodes[id]; !ok {
			s.metrics.rejected("invalid")
			return fmt.Errorf("%w: incident %s: %w: %s", ErrInvalidDelta, inc.ID, domain.ErrDanglingReference, id)
		}
	}
	if inc.Status == "" {
		inc.Status = domain.IncidentActive
	}

	next := *s.live
	next.Incidents = slices.Clone(next.Incidents)
	i := slices.IndexFunc(next.Incidents, func(e domain.Incident) bool { return e.ID == inc.ID })
	if i >= 0 {
		next.Incidents[i] = inc.Clone()
	} else {
		next.Incidents = append(next.Incidents, inc.Clone())
	}
	s.commitLocked(&next, "incident")
	return nil
}

// ResolveIncident marks an incident resolved
func (s *Store) ResolveIncident(id, resolvedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.live.Incidents, func(e domain.Incident) bool { return e.ID == id })
	if i < 0 {
		s.metrics.rejected("unknown_target")
		return fmt.Errorf("%w: incident %s", ErrUnknownTarget, id)
	}

	next := *s.live
	next.Incidents = slices.Clone(next.Incidents)
	inc := next.Incidents[i].Clone()
	inc.Status = domain.IncidentResolved
	inc.ResolvedBy = resolvedBy
	next.Incidents[i] = inc
	s.commitLocked(&next, "incident")
	return nil
}

// ShowSnapshot publishes a captured snapshot in place of the live graph.
// Deltas keep updating the live graph until EnterLive.
func (s *Store) ShowSnapshot(snap domain.Snapshot) error {
	g := snap.Graph()
	if err := g.Validate(); err != nil {
		return fmt.Errorf("%w: snapshot %s: %w", ErrInvalidGraph, snap.Timestamp.Format(time.RFC3339), err)
	}
	g.Refresh()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = ModePlayback
	s.snapshot = g
	s.snapshotIdx = buildIndex(g)
	s.snapshotAt = snap.Timestamp
	s.publishLocked()
	return nil
}

// EnterLive leaves playback and publishes the live graph, including every
// delta received meanwhile. It is a no-op in live mode.
func (s *Store) EnterLive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == ModeLive {
		return
	}
	s.mode = ModeLive
	s.snapshot, s.snapshotIdx = nil, nil
	s.snapshotAt = time.Time{}
	s.publishLocked()
}

func (s *Store) commitLocked(next *domain.Graph, kind string) {
	next.Stats = domain.ComputeStats(next.Nodes, next.Connections, next.Incidents)
	s.live = next
	s.liveUpdated = s.clock.Now()
	s.metrics.applied(kind)
	s.metrics.observe(next)
	if s.mode == ModeLive {
		s.publishLocked()
	}
}

func (s *Store) publishLocked() {
	s.version++
	v := &View{Version: s.version, Mode: s.mode}
	if s.mode == ModePlayback {
		v.Graph, v.idx, v.At = s.snapshot, s.snapshotIdx, s.snapshotAt
	} else {
		v.Graph, v.idx, v.At = s.live, s.liveIdx, s.liveUpdated
	}
	s.view.Store(v)
	s.metrics.published(v.Version)

	for _, fn := range s.listeners {
		fn(v)
	}
}
