package config

// Source selects where the live graph is synced from
type Source string

const (
	SourceGraph    Source = "graph"    // endpoint already speaks the unified schema
	SourcePipeline Source = "pipeline" // pipeline taxonomy mapped on sync
	SourceTopology Source = "topology" // built-in default topology only, no upstream
)

// ParseSource converts a string to Source, defaulting to SourceGraph
func ParseSource(s string) Source {
	switch s {
	case "graph":
		return SourceGraph
	case "pipeline":
		return SourcePipeline
	case "topology":
		return SourceTopology
	default:
		return SourceGraph
	}
}

// Valid reports whether s is a known source
func (s Source) Valid() bool {
	switch s {
	case SourceGraph, SourcePipeline, SourceTopology:
		return true
	}
	return false
}

// Remote reports whether the source needs the orchestrator API
func (s Source) Remote() bool {
	return s != SourceTopology
}
