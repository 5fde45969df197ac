package repository

import (
	"context"
	"errors"
	"time"

	"graphwatch/internal/domain"
)

var (
	// ErrNotFound is returned when no snapshot matches
	ErrNotFound = errors.New("snapshot not found")
	// ErrCorrupt is returned when a stored payload no longer matches its digest
	ErrCorrupt = errors.New("snapshot payload does not match digest")
)

// SnapshotRepository persists timeline snapshots
type SnapshotRepository interface {
	// SaveSnapshot stores a snapshot keyed by its timestamp. Saving the same
	// content at the same timestamp again is a no-op.
	SaveSnapshot(ctx context.Context, snap domain.Snapshot) error

	// ListSnapshots returns the snapshots in [from, to] in timestamp order
	ListSnapshots(ctx context.Context, from, to time.Time) ([]domain.Snapshot, error)

	// LatestSnapshot returns the most recent snapshot or ErrNotFound
	LatestSnapshot(ctx context.Context) (*domain.Snapshot, error)

	// PruneBefore deletes snapshots older than t and reports how many went
	PruneBefore(ctx context.Context, t time.Time) (int64, error)

	// Close releases resources
	Close() error
}
