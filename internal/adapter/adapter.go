package adapter

import (
	"context"

	"graphwatch/internal/domain"
)

// AdapterType defines how an adapter interacts with its data source
type AdapterType string

const (
	// AdapterTypeOneShot - synced on demand (cold start, polling fallback ticks)
	AdapterTypeOneShot AdapterType = "oneshot"
)

// AdapterConfig holds configuration for an adapter instance
type AdapterConfig struct {
	// Enabled determines if the adapter should run
	Enabled bool `json:"enabled"`
	// Priority orders syncs; higher priority sources run last so their
	// replacement wins
	Priority int `json:"priority"`
}

// Adapter is a source of complete graph payloads. Every successful Sync is
// a full replacement of the displayed graph, never a delta.
type Adapter interface {
	// Name returns the unique identifier for this adapter
	Name() string

	// Type returns how this adapter interacts with its source
	Type() AdapterType

	// Start initializes the adapter (called once on startup)
	Start(ctx context.Context) error

	// Stop gracefully shuts down the adapter
	Stop() error

	// Sync pulls a complete graph from the source
	Sync(ctx context.Context) (*domain.Graph, error)
}
