package sqlite

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"graphwatch/internal/domain"
	"graphwatch/internal/repository"

	"golang.org/x/crypto/blake2b"
)

// toMillis converts a timestamp to the stored taken_at column value
func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// digest returns the hex BLAKE2b-256 of data
func digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// encodePayload serializes a snapshot without its ID, which lives in its
// own column
func encodePayload(snap domain.Snapshot) ([]byte, string, error) {
	snap.ID = ""
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, digest(data), nil
}

// decodePayload verifies data against want and unmarshals it
func decodePayload(data []byte, want string) (*domain.Snapshot, error) {
	if got := digest(data); got != want {
		return nil, fmt.Errorf("%w: stored %s, computed %s", repository.ErrCorrupt, want, got)
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}
