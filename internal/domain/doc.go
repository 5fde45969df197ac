// Package domain defines the core types for the graphwatch agent graph model.
//
// This package contains the entities and value objects shared by every other
// package: agents (nodes), connections between them, incidents with their
// causality chains, and immutable snapshots of the whole graph.
//
// # Core Types
//
// Node represents an agent with a category, an operational status, runtime
// metrics, an optional 3D position and the capability flags the operator
// console uses to offer start/stop/restart/configure actions.
//
// Connection represents a directed link between two agents with a typed
// relationship (data, query, stream, message, command, event) and live
// traffic figures.
//
// Graph is the fetched payload shape: nodes, connections, aggregate stats and
// optional incidents. Snapshot is an immutable, timestamped Graph used for
// historical playback.
//
// # Incidents
//
// Incident groups affected agents under a severity and, optionally, a
// causality chain of probability-weighted links explaining how the failure
// propagated. DetectedGap is an advisory suggestion for a missing agent; it
// never mutates the graph.
//
// # Design Principles
//
// - Value types, copied rather than shared
// - No database or transport dependencies
// - Closed enumerations with explicit validation
package domain
