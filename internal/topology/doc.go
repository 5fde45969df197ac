// Package topology builds the cold-start agent graph from a static registry.
//
// The registry lists every agent with its category and role. Build turns it
// into a connected graph rooted at a single orchestrator:
//
//	root -> every core agent
//	root -> every category head
//	member -> its category head
//	infra -> its owning service and root
//
// Edges are deduplicated on the unordered endpoint pair, and self-loops are
// rejected. Structural problems in the registry (a category with members but
// no head, duplicate ids, unknown owners) are returned from Build rather than
// silently dropping agents.
package topology
