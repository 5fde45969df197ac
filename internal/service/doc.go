// Package service coordinates the dashboard core: the graph store, the level
// of detail engine, the incident overlay, the snapshot player and the live
// update channel.
//
// # Services
//
// GraphService is what the HTTP gateway talks to. It reduces the displayed
// graph to a detail level, reports connectivity and playback state, forwards
// operator actions after checking the agent's capabilities, and resolves
// incidents through the orchestrator.
//
// Synchroniser applies live channel messages to the store as incremental
// changes. Reconciler applies the full graphs produced by adapter syncs and
// polling.
//
// # Event System
//
// Changes are published on an EventBus for the gateway's Server-Sent Events
// stream. Publishing never blocks; slow subscribers miss events and catch up
// from the next full view.
package service
