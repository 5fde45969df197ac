// Package repository defines the persistence interface for timeline
// snapshots.
//
// The Recorder writes one snapshot per sampling interval and the timeline's
// RepositoryLoader reads ranges back for playback. The sqlite subpackage is
// the only implementation. It stores each snapshot as a JSON payload with a
// BLAKE2b-256 digest that is verified on every read.
package repository
