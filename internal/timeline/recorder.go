package timeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"graphwatch/internal/domain"

	"k8s.io/utils/clock"
)

// SnapshotSaver persists captured snapshots
type SnapshotSaver interface {
	SaveSnapshot(ctx context.Context, snap domain.Snapshot) error
}

// Recorder captures the live graph into a SnapshotSaver on every interval
type Recorder struct {
	source   func() *domain.Graph
	saver    SnapshotSaver
	clock    clock.WithTicker
	interval time.Duration
	logger   *slog.Logger
}

// NewRecorder creates a recorder. A nil clock means the real clock.
func NewRecorder(source func() *domain.Graph, saver SnapshotSaver, interval time.Duration, clk clock.WithTicker, logger *slog.Logger) *Recorder {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		source:   source,
		saver:    saver,
		clock:    clk,
		interval: interval,
		logger:   logger.With("component", "recorder"),
	}
}

// Capture saves one snapshot stamped with the current interval boundary.
// An empty graph is skipped.
func (r *Recorder) Capture(ctx context.Context) error {
	g := r.source()
	if g == nil || len(g.Nodes) == 0 {
		return nil
	}
	ts := r.clock.Now().Truncate(r.interval)
	if err := r.saver.SaveSnapshot(ctx, domain.NewSnapshot(g, ts)); err != nil {
		return fmt.Errorf("failed to save snapshot at %s: %w", ts.Format(time.RFC3339), err)
	}
	r.logger.Debug("snapshot captured", "at", ts, "nodes", len(g.Nodes))
	return nil
}

// Run captures immediately and then on every tick until ctx is done.
// Failed captures are logged and retried on the next tick.
func (r *Recorder) Run(ctx context.Context) error {
	if err := r.Capture(ctx); err != nil {
		r.logger.Warn("capture failed", "error", err)
	}

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			if err := r.Capture(ctx); err != nil {
				r.logger.Warn("capture failed", "error", err)
			}
		}
	}
}
