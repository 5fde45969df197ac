package timeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"graphwatch/internal/domain"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleTimes(t *testing.T) {
	from := t0.Add(-12 * time.Minute)
	got := SampleTimes(from, t0, 5*time.Minute)
	assert.Equal(t, []time.Time{
		t0.Add(-10 * time.Minute),
		t0.Add(-5 * time.Minute),
		t0,
	}, got)

	assert.Nil(t, SampleTimes(t0, from, time.Minute))
	assert.Nil(t, SampleTimes(from, t0, 0))
}

func TestSynthesizer(t *testing.T) {
	base := smallGraph()
	base.Incidents = append(base.Incidents, domain.Incident{
		ID:            "late",
		Severity:      domain.SeverityLow,
		Status:        domain.IncidentActive,
		AffectedNodes: []string{"a"},
		DetectedAt:    t0.Add(-30 * time.Minute),
	})
	syn := Synthesizer{Source: func() *domain.Graph { return base }, Seed: 7}

	snaps, err := syn.Load(context.Background(), t0.Add(-time.Hour), t0, 5*time.Minute)
	require.NoError(t, err)
	require.Len(t, snaps, 13)
	require.NoError(t, domain.ValidateSequence(snaps))

	for _, s := range snaps {
		g := s.Graph()
		require.NoError(t, g.Validate(), "snapshot at %s", s.Timestamp)
		assert.Len(t, g.Nodes, 2)
		assert.Len(t, g.Connections, 1)
		if s.Timestamp.Before(t0.Add(-30 * time.Minute)) {
			assert.Empty(t, g.Incidents, "incident not yet detected at %s", s.Timestamp)
		} else {
			assert.Len(t, g.Incidents, 1)
		}
	}

	again, err := syn.Load(context.Background(), t0.Add(-time.Hour), t0, 5*time.Minute)
	require.NoError(t, err)
	if diff := cmp.Diff(snaps, again); diff != "" {
		t.Errorf("synthesis not deterministic:\n%s", diff)
	}
	assert.Len(t, base.Incidents, 1, "source graph untouched")

	empty := Synthesizer{Source: func() *domain.Graph { return domain.NewGraph() }}
	snaps, err = empty.Load(context.Background(), t0.Add(-time.Hour), t0, 5*time.Minute)
	assert.NoError(t, err)
	assert.Empty(t, snaps)

	_, err = syn.Load(context.Background(), t0, t0.Add(-time.Hour), time.Minute)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestChainLoader(t *testing.T) {
	ctx := context.Background()
	good := &staticLoader{name: "good", snaps: sequence(2, t0, time.Minute)}
	empty := &staticLoader{name: "empty"}
	broken := &staticLoader{name: "broken", err: errors.New("connection refused")}

	snaps, err := ChainLoader{Loaders: []Loader{broken, empty, good}}.Load(ctx, t0, t0, time.Minute)
	require.NoError(t, err)
	assert.Len(t, snaps, 2)

	_, err = ChainLoader{Loaders: []Loader{broken, empty}}.Load(ctx, t0, t0, time.Minute)
	assert.ErrorContains(t, err, "broken: connection refused")

	snaps, err = ChainLoader{Loaders: []Loader{empty}}.Load(ctx, t0, t0, time.Minute)
	assert.NoError(t, err)
	assert.Empty(t, snaps)

	_, err = ChainLoader{}.Load(ctx, t0, t0, time.Minute)
	assert.ErrorIs(t, err, ErrNoLoader)
}

func TestChainLoaderSkipsSparseHistory(t *testing.T) {
	ctx := context.Background()
	from, to := t0.Add(-time.Hour), t0
	repo := RepositoryLoader{Repo: &memRepo{snaps: sequence(1, t0.Add(-time.Minute), time.Minute)}}
	remote := &staticLoader{name: "remote", snaps: sequence(12, t0.Add(-55*time.Minute), 5*time.Minute)}

	snaps, err := ChainLoader{Loaders: []Loader{repo, remote}}.Load(ctx, from, to, 5*time.Minute)
	require.NoError(t, err)
	require.Len(t, snaps, 12)
	assert.Equal(t, t0.Add(-55*time.Minute), snaps[0].Timestamp)
	assert.Equal(t, t0, snaps[11].Timestamp)

	t.Run("longest partial wins when nothing covers", func(t *testing.T) {
		gappy := &staticLoader{name: "gappy", snaps: []domain.Snapshot{
			domain.NewSnapshot(smallGraph(), from),
			domain.NewSnapshot(smallGraph(), t0.Add(-30*time.Minute)),
			domain.NewSnapshot(smallGraph(), to),
		}}
		snaps, err := ChainLoader{Loaders: []Loader{repo, gappy}}.Load(ctx, from, to, 5*time.Minute)
		require.NoError(t, err)
		assert.Len(t, snaps, 3)
	})
}

func TestCovers(t *testing.T) {
	from, to := t0.Add(-time.Hour), t0
	full := sequence(13, from, 5*time.Minute)
	assert.True(t, Covers(full, from, to, 5*time.Minute))
	assert.True(t, Covers(full[1:], from, to, 5*time.Minute), "first sample within one interval")
	assert.False(t, Covers(full[2:], from, to, 5*time.Minute), "starts late")
	assert.False(t, Covers(full[:10], from, to, 5*time.Minute), "ends early")

	holed := append(append([]domain.Snapshot{}, full[:5]...), full[7:]...)
	assert.False(t, Covers(holed, from, to, 5*time.Minute), "missing samples")
	assert.False(t, Covers(nil, from, to, 5*time.Minute))
}

type memRepo struct {
	mu    sync.Mutex
	snaps []domain.Snapshot
	err   error
}

func (r *memRepo) SaveSnapshot(ctx context.Context, s domain.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.snaps = append(r.snaps, s)
	return nil
}

func (r *memRepo) ListSnapshots(ctx context.Context, from, to time.Time) ([]domain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Snapshot
	for _, s := range r.snaps {
		if !s.Timestamp.Before(from) && !s.Timestamp.After(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func TestRepositoryLoaderThins(t *testing.T) {
	repo := &memRepo{snaps: sequence(10, t0, time.Minute)}

	snaps, err := RepositoryLoader{Repo: repo}.Load(context.Background(), t0, t0.Add(time.Hour), 3*time.Minute)
	require.NoError(t, err)

	var got []time.Time
	for _, s := range snaps {
		got = append(got, s.Timestamp)
	}
	assert.Equal(t, []time.Time{t0, t0.Add(3 * time.Minute), t0.Add(6 * time.Minute), t0.Add(9 * time.Minute)}, got)
	assert.Equal(t, 10, repo.count(), "repository contents untouched")
}

func TestRecorder(t *testing.T) {
	fc := newClock(t0.Add(30 * time.Second))
	repo := &memRepo{}
	g := smallGraph()
	rec := NewRecorder(func() *domain.Graph { return g }, repo, 5*time.Minute, fc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx) }()

	require.Eventually(t, func() bool { return repo.count() == 1 }, waitFor, tick)
	require.Eventually(t, fc.HasWaiters, waitFor, tick)
	fc.Step(5 * time.Minute)
	require.Eventually(t, func() bool { return repo.count() == 2 }, waitFor, tick)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("recorder did not stop")
	}

	repo.mu.Lock()
	assert.Equal(t, t0, repo.snaps[0].Timestamp, "stamped at the interval boundary")
	assert.Equal(t, t0.Add(5*time.Minute), repo.snaps[1].Timestamp)
	repo.mu.Unlock()

	repo.err = errors.New("disk full")
	assert.ErrorContains(t, rec.Capture(context.Background()), "disk full")

	empty := NewRecorder(func() *domain.Graph { return domain.NewGraph() }, repo, time.Minute, fc, nil)
	assert.NoError(t, empty.Capture(context.Background()))
}
