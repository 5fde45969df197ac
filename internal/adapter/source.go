package adapter

import (
	"context"
	"fmt"

	"graphwatch/internal/domain"
)

// GraphFetcher returns the upstream's unified graph payload
type GraphFetcher interface {
	FetchGraph(ctx context.Context) (*domain.Graph, error)
}

// PipelineFetcher returns the upstream's pipeline payload
type PipelineFetcher interface {
	FetchPipeline(ctx context.Context) (*PipelinePayload, error)
}

// GraphSource syncs from an endpoint that already speaks the unified schema
type GraphSource struct {
	fetcher GraphFetcher
}

// NewGraphSource creates a source backed by fetcher
func NewGraphSource(fetcher GraphFetcher) *GraphSource {
	return &GraphSource{fetcher: fetcher}
}

func (s *GraphSource) Name() string { return "graph" }
func (s *GraphSource) Type() AdapterType { return AdapterTypeOneShot }
func (s *GraphSource) Start(ctx context.Context) error { return nil }
func (s *GraphSource) Stop() error { return nil }

// Sync fetches the graph and derives adjacency and stats
func (s *GraphSource) Sync(ctx context.Context) (*domain.Graph, error) {
	g, err := s.fetcher.FetchGraph(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch graph: %w", err)
	}
	if g != nil {
		g.Refresh()
	}
	return g, nil
}

// PipelineSource syncs from the pipeline endpoint and maps its taxonomy
type PipelineSource struct {
	fetcher PipelineFetcher
}

// NewPipelineSource creates a source backed by fetcher
func NewPipelineSource(fetcher PipelineFetcher) *PipelineSource {
	return &PipelineSource{fetcher: fetcher}
}

func (s *PipelineSource) Name() string { return "pipeline" }
func (s *PipelineSource) Type() AdapterType { return AdapterTypeOneShot }
func (s *PipelineSource) Start(ctx context.Context) error { return nil }
func (s *PipelineSource) Stop() error { return nil }

// Sync fetches the pipeline payload and maps it to the unified schema
func (s *PipelineSource) Sync(ctx context.Context) (*domain.Graph, error) {
	p, err := s.fetcher.FetchPipeline(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pipeline: %w", err)
	}
	return MapPipeline(p)
}
