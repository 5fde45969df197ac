package timeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"graphwatch/internal/domain"

	"k8s.io/utils/clock"
)

const (
	DefaultSampleInterval = 5 * time.Minute
	DefaultFrameDuration  = time.Second
)

// Display shows snapshots in place of live data. The graph store
// implements it.
type Display interface {
	ShowSnapshot(snap domain.Snapshot) error
	EnterLive()
}

// Options configure a Player. Zero values get defaults.
type Options struct {
	Clock clock.WithDelayedExecution
	// SampleInterval is the spacing of loaded snapshots
	SampleInterval time.Duration
	// FrameDuration is how long one snapshot is shown at 1x
	FrameDuration time.Duration
	Logger        *slog.Logger
}

// State is the observable player state
type State struct {
	Live     bool      `json:"live"`
	Playing  bool      `json:"playing"`
	Speed    Speed     `json:"speed"`
	Index    int       `json:"index"`
	Length   int       `json:"length"`
	Current  time.Time `json:"current,omitzero"`
	RangeLow time.Time `json:"from,omitzero"`
	RangeHi  time.Time `json:"to,omitzero"`
}

// Player steps through a loaded snapshot sequence
type Player struct {
	loader   Loader
	display  Display
	clock    clock.WithDelayedExecution
	interval time.Duration
	frame    time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	snaps     []domain.Snapshot
	index     int
	live      bool
	playing   bool
	speed     Speed
	gen       uint64
	timer     clock.Timer
	listeners []func(State)
	changed   bool
}

// NewPlayer creates a player in live mode with nothing loaded
func NewPlayer(loader Loader, display Display, opts Options) *Player {
	p := &Player{
		loader:   loader,
		display:  display,
		clock:    opts.Clock,
		interval: opts.SampleInterval,
		frame:    opts.FrameDuration,
		logger:   opts.Logger,
		live:     true,
		speed:    1,
	}
	if p.clock == nil {
		p.clock = clock.RealClock{}
	}
	if p.interval <= 0 {
		p.interval = DefaultSampleInterval
	}
	if p.frame <= 0 {
		p.frame = DefaultFrameDuration
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.logger = p.logger.With("component", "timeline")
	return p
}

// OnChange registers fn to be called after every state change, outside the
// player lock.
func (p *Player) OnChange(fn func(State)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// LoadRange loads the sequence covering the last span. Playback stops. In
// live mode the display is not touched until Play or a seek; while a
// snapshot is on screen the new sequence takes over at the snapshot nearest
// to the one shown, or live data returns when it is empty. A sequence that is not
// strictly increasing or holds an invalid graph is rejected and the previous
// sequence stays loaded.
func (p *Player) LoadRange(ctx context.Context, span time.Duration) error {
	if span <= 0 {
		return fmt.Errorf("%w: span %s", ErrInvalidRange, span)
	}
	to := p.clock.Now()
	from := to.Add(-span)

	snaps, err := p.loader.Load(ctx, from, to, p.interval)
	if err != nil {
		return fmt.Errorf("failed to load snapshots: %w", err)
	}
	if err := domain.ValidateSequence(snaps); err != nil {
		return err
	}
	for i := range snaps {
		if err := snaps[i].Graph().Validate(); err != nil {
			return fmt.Errorf("snapshot %d: %w", i, err)
		}
	}

	p.mu.Lock()
	defer p.unlock()
	p.stopLocked()
	var shown time.Time
	if len(p.snaps) > 0 {
		shown = p.snaps[p.index].Timestamp
	}
	p.snaps = snaps
	p.index = 0
	p.changed = true
	switch {
	case p.live:
	case len(snaps) == 0:
		p.live = true
		p.display.EnterLive()
	default:
		p.index = indexAt(snaps, shown)
		p.showLocked()
	}
	p.logger.Info("timeline loaded", "from", from, "to", to, "snapshots", len(snaps), "source", p.loader.Name())
	return nil
}

// Play shows the current snapshot and advances one snapshot per frame until
// the end of the sequence. Playing at the end restarts from the beginning.
// It is a no-op on an empty sequence.
func (p *Player) Play() {
	p.mu.Lock()
	defer p.unlock()
	if len(p.snaps) == 0 || p.playing {
		return
	}
	if p.index == len(p.snaps)-1 {
		p.index = 0
	}
	p.playing = true
	p.changed = true
	p.showLocked()
	p.scheduleLocked()
}

// Pause stops advancing and keeps the current snapshot on screen
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.unlock()
	if p.playing {
		p.stopLocked()
		p.changed = true
	}
}

// SetSpeed changes the multiplier; a running playback picks it up on the
// next frame.
func (p *Player) SetSpeed(s Speed) error {
	if !s.Valid() {
		return fmt.Errorf("%w: %g", ErrInvalidSpeed, float64(s))
	}
	p.mu.Lock()
	defer p.unlock()
	if p.speed == s {
		return nil
	}
	p.speed = s
	p.changed = true
	if p.playing {
		p.stopTimerLocked()
		p.scheduleLocked()
	}
	return nil
}

// Seek shows the snapshot at index, clamped to the sequence
func (p *Player) Seek(index int) {
	p.mu.Lock()
	defer p.unlock()
	if len(p.snaps) == 0 {
		return
	}
	p.seekLocked(min(max(index, 0), len(p.snaps)-1))
}

// SeekTime shows the latest snapshot taken at or before t, or the first
// snapshot when t precedes the sequence.
func (p *Player) SeekTime(t time.Time) {
	p.mu.Lock()
	defer p.unlock()
	if len(p.snaps) == 0 {
		return
	}
	p.seekLocked(indexAt(p.snaps, t))
}

// indexAt returns the index of the greatest timestamp <= t, or 0
func indexAt(snaps []domain.Snapshot, t time.Time) int {
	i := sort.Search(len(snaps), func(i int) bool { return snaps[i].Timestamp.After(t) })
	return max(i-1, 0)
}

// SkipToStart shows the first snapshot
func (p *Player) SkipToStart() {
	p.mu.Lock()
	defer p.unlock()
	if len(p.snaps) > 0 {
		p.seekLocked(0)
	}
}

// SkipToEnd shows the last snapshot
func (p *Player) SkipToEnd() {
	p.mu.Lock()
	defer p.unlock()
	if len(p.snaps) > 0 {
		p.seekLocked(len(p.snaps) - 1)
	}
}

// EnterLiveMode cancels playback and hands the display back to live data.
// The loaded sequence is kept.
func (p *Player) EnterLiveMode() {
	p.mu.Lock()
	defer p.unlock()
	p.stopLocked()
	if !p.live {
		p.live = true
		p.display.EnterLive()
		p.logger.Info("live mode")
	}
	p.changed = true
}

// Stop cancels the playback timer; used on shutdown
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.unlock()
	p.stopLocked()
}

// State returns the current player state
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked()
}

func (p *Player) seekLocked(i int) {
	p.index = i
	p.changed = true
	p.showLocked()
	if p.playing {
		p.stopTimerLocked()
		p.scheduleLocked()
	}
}

func (p *Player) showLocked() {
	snap := p.snaps[p.index]
	if err := p.display.ShowSnapshot(snap); err != nil {
		p.logger.Error("snapshot rejected by display", "index", p.index, "at", snap.Timestamp, "error", err)
		return
	}
	p.live = false
}

func (p *Player) scheduleLocked() {
	gen := p.gen
	p.timer = p.clock.AfterFunc(p.speed.period(p.frame), func() { p.advance(gen) })
}

func (p *Player) advance(gen uint64) {
	p.mu.Lock()
	defer p.unlock()
	if gen != p.gen || !p.playing {
		return
	}
	if p.index >= len(p.snaps)-1 {
		p.stopLocked()
		p.changed = true
		return
	}
	p.index++
	p.changed = true
	p.showLocked()
	if p.index == len(p.snaps)-1 {
		p.stopLocked()
		return
	}
	p.scheduleLocked()
}

func (p *Player) stopLocked() {
	p.playing = false
	p.stopTimerLocked()
}

func (p *Player) stopTimerLocked() {
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *Player) stateLocked() State {
	st := State{
		Live:    p.live,
		Playing: p.playing,
		Speed:   p.speed,
		Index:   p.index,
		Length:  len(p.snaps),
	}
	if n := len(p.snaps); n > 0 {
		st.Current = p.snaps[p.index].Timestamp
		st.RangeLow = p.snaps[0].Timestamp
		st.RangeHi = p.snaps[n-1].Timestamp
	}
	return st
}

func (p *Player) unlock() {
	var (
		st        State
		listeners []func(State)
	)
	if p.changed {
		p.changed = false
		st = p.stateLocked()
		listeners = p.listeners
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(st)
	}
}
