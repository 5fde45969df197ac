// Package lod reduces a graph to a display budget.
//
// Each category keeps a number of individually revealed agents that grows
// with the detail level; the rest of the category collapses into one
// cluster node placed at the centroid of its members. Agents are revealed by
// priority, then by closeness to the focus, then by id, so the same inputs
// always give the same output.
package lod
