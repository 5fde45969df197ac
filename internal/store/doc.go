// Package store holds the authoritative in-memory agent graph.
//
// Writers are serialised; every successful write publishes a new immutable
// View, so readers never observe a half-applied change. Deltas update
// mutable fields of existing nodes and connections and never change counts.
// ReplaceAll swaps the whole graph after validating it.
//
// During timeline playback the published view is a snapshot while the live
// graph keeps absorbing deltas out of sight; EnterLive shows it again.
package store
