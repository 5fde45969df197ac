package domain

import (
	"crypto/sha256"
	"fmt"
)

// EdgeKey is the canonical key of an unordered node pair.
// A and B are sorted so (x,y) and (y,x) produce the same key.
type EdgeKey struct {
	A string
	B string
}

// NewEdgeKey creates a canonical key for the pair
func NewEdgeKey(a, b string) EdgeKey {
	if a > b {
		a, b = b, a
	}
	return EdgeKey{A: a, B: b}
}

// SelfLoop reports whether both ends are the same node
func (k EdgeKey) SelfLoop() bool {
	return k.A == k.B
}

// String renders the key as "a~b"
func (k EdgeKey) String() string {
	return k.A + "~" + k.B
}

// ConnectionID creates a deterministic ID for a connection based on its endpoints.
// The same pair always gets the same ID regardless of direction.
func ConnectionID(sourceID, targetID string) string {
	key := NewEdgeKey(sourceID, targetID)
	hash := sha256.Sum256([]byte(key.String()))
	return fmt.Sprintf("%x", hash[:8])
}
