package adapter

import (
	"context"
	"fmt"

	"graphwatch/internal/domain"
	"graphwatch/internal/topology"
)

// TopologySource builds the default topology from an agent registry file.
// The file is re-read on every sync so edits show up on the next reload.
type TopologySource struct {
	path string
}

// NewTopologySource creates a source for the registry at path. An empty
// path uses the built-in registry.
func NewTopologySource(path string) *TopologySource {
	return &TopologySource{path: path}
}

func (s *TopologySource) Name() string { return "topology" }
func (s *TopologySource) Type() AdapterType { return AdapterTypeOneShot }
func (s *TopologySource) Start(ctx context.Context) error { return nil }
func (s *TopologySource) Stop() error { return nil }

// Path returns the registry file, or "" for the built-in registry
func (s *TopologySource) Path() string { return s.path }

// Sync loads the registry and builds its graph
func (s *TopologySource) Sync(ctx context.Context) (*domain.Graph, error) {
	reg, err := topology.LoadRegistry(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}
	return topology.Build(reg)
}
