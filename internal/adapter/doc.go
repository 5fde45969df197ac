// Package adapter turns upstream payloads into complete unified graphs.
//
// Two upstream shapes are supported. GraphSource reads an endpoint that
// already returns the unified schema. PipelineSource reads the pipeline
// endpoint, whose nodes use a different taxonomy (page, api, device,
// database, workflow, service) and status vocabulary, and translates it with
// MapPipeline.
//
// # Mapping tables
//
// Upstream node and link types are enums indexing fixed-size arrays. Each
// table carries a pair of array-length assertions, so adding an enum value
// without a mapping is a compile error rather than a silent drop at runtime.
// A type name that is not declared at all is rejected with
// ErrUnknownUpstreamType. Status words are more forgiving: anything outside
// the vocabulary maps to active.
//
// # Registry
//
// Registry owns the adapter lifecycle. Its Poll method is the live channel's
// polling fallback: one full refresh from every enabled source, applied in
// ascending priority so the most authoritative source wins.
package adapter
