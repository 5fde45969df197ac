package timeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"graphwatch/internal/domain"
)

// Loader produces snapshots covering [from, to], roughly one per interval,
// in strictly increasing timestamp order.
type Loader interface {
	Name() string
	Load(ctx context.Context, from, to time.Time, interval time.Duration) ([]domain.Snapshot, error)
}

// SnapshotLister reads captured snapshots from storage
type SnapshotLister interface {
	ListSnapshots(ctx context.Context, from, to time.Time) ([]domain.Snapshot, error)
}

// HistoryFetcher asks the orchestrator for its own history
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, from, to time.Time, interval time.Duration) ([]domain.Snapshot, error)
}

// RepositoryLoader serves snapshots the Recorder captured, thinned to the
// requested interval.
type RepositoryLoader struct {
	Repo SnapshotLister
}

// Name implements Loader
func (l RepositoryLoader) Name() string { return "repository" }

// Load implements Loader
func (l RepositoryLoader) Load(ctx context.Context, from, to time.Time, interval time.Duration) ([]domain.Snapshot, error) {
	snaps, err := l.Repo.ListSnapshots(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return thin(snaps, interval), nil
}

// thin keeps the first snapshot and then every snapshot at least interval
// after the last kept one
func thin(snaps []domain.Snapshot, interval time.Duration) []domain.Snapshot {
	if interval <= 0 || len(snaps) == 0 {
		return snaps
	}
	out := snaps[:1:1]
	for _, s := range snaps[1:] {
		if s.Timestamp.Sub(out[len(out)-1].Timestamp) >= interval {
			out = append(out, s)
		}
	}
	return out
}

// RemoteLoader fetches history from the orchestrator API
type RemoteLoader struct {
	Client HistoryFetcher
}

// Name implements Loader
func (l RemoteLoader) Name() string { return "remote" }

// Load implements Loader
func (l RemoteLoader) Load(ctx context.Context, from, to time.Time, interval time.Duration) ([]domain.Snapshot, error) {
	return l.Client.FetchHistory(ctx, from, to, interval)
}

// ChainLoader tries loaders in order and returns the first sequence that
// covers the requested range. When none does, the longest partial sequence
// is returned. Failing loaders are skipped; their errors are returned only
// when no loader produced anything.
type ChainLoader struct {
	Loaders []Loader
	Logger  *slog.Logger
}

// Name implements Loader
func (c ChainLoader) Name() string { return "chain" }

// Load implements Loader
func (c ChainLoader) Load(ctx context.Context, from, to time.Time, interval time.Duration) ([]domain.Snapshot, error) {
	if len(c.Loaders) == 0 {
		return nil, ErrNoLoader
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		errs    []error
		partial []domain.Snapshot
		source  string
	)
	for _, l := range c.Loaders {
		snaps, err := l.Load(ctx, from, to, interval)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("snapshot source failed", "component", "timeline", "source", l.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", l.Name(), err))
			continue
		}
		if len(snaps) == 0 {
			continue
		}
		if Covers(snaps, from, to, interval) {
			logger.Debug("snapshots loaded", "component", "timeline", "source", l.Name(), "count", len(snaps))
			return snaps, nil
		}
		logger.Debug("snapshot source does not cover range", "component", "timeline", "source", l.Name(), "count", len(snaps))
		if len(snaps) > len(partial) {
			partial, source = snaps, l.Name()
		}
	}
	if len(partial) > 0 {
		logger.Info("no source covers the range, using partial history", "component", "timeline", "source", source, "count", len(partial))
		return partial, nil
	}
	return nil, errors.Join(errs...)
}

// Covers reports whether snaps spans [from, to] with no missing sample: the
// first snapshot is within one interval of from, the last within one
// interval of to, and no two neighbours are two intervals or more apart.
func Covers(snaps []domain.Snapshot, from, to time.Time, interval time.Duration) bool {
	if len(snaps) == 0 {
		return false
	}
	if interval <= 0 {
		return true
	}
	if snaps[0].Timestamp.Sub(from) > interval || to.Sub(snaps[len(snaps)-1].Timestamp) > interval {
		return false
	}
	for i := 1; i < len(snaps); i++ {
		if snaps[i].Timestamp.Sub(snaps[i-1].Timestamp) >= 2*interval {
			return false
		}
	}
	return true
}
