package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"graphwatch/internal/domain"
	"graphwatch/internal/repository"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Repository implements repository.SnapshotRepository using SQLite
type Repository struct {
	db *sql.DB
}

var _ repository.SnapshotRepository = (*Repository)(nil)

// New opens (creating if needed) the database at dbPath.
// ":memory:" gives a private in-memory database.
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; also keeps an in-memory database on a single connection
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func dsn(dbPath string) string {
	if dbPath == ":memory:" {
		return dbPath
	}
	return "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		taken_at INTEGER NOT NULL UNIQUE,
		digest TEXT NOT NULL,
		node_count INTEGER NOT NULL,
		edge_count INTEGER NOT NULL,
		incident_count INTEGER NOT NULL DEFAULT 0,
		payload JSON NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_taken_at ON snapshots(taken_at);
	`

	_, err := r.db.Exec(schema)
	return err
}

// SaveSnapshot inserts a snapshot, or replaces the payload stored at the
// same timestamp when the content differs. An empty ID gets a fresh UUID;
// the ID of an existing row is kept.
func (r *Repository) SaveSnapshot(ctx context.Context, snap domain.Snapshot) error {
	if snap.Timestamp.IsZero() {
		return fmt.Errorf("snapshot timestamp is required")
	}
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}

	payload, digest, err := encodePayload(snap)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, taken_at, digest, node_count, edge_count, incident_count, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(taken_at) DO UPDATE SET
			digest = excluded.digest,
			node_count = excluded.node_count,
			edge_count = excluded.edge_count,
			incident_count = excluded.incident_count,
			payload = excluded.payload
		WHERE snapshots.digest != excluded.digest
	`, snap.ID, toMillis(snap.Timestamp), digest, len(snap.Nodes), len(snap.Connections), len(snap.Incidents), string(payload))

	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// ListSnapshots loads the snapshots whose timestamps fall in [from, to]
func (r *Repository) ListSnapshots(ctx context.Context, from, to time.Time) ([]domain.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, digest, payload
		FROM snapshots
		WHERE taken_at >= ? AND taken_at <= ?
		ORDER BY taken_at
	`, toMillis(from), toMillis(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	snaps := make([]domain.Snapshot, 0)
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, *snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return snaps, nil
}

// LatestSnapshot loads the most recent snapshot
func (r *Repository) LatestSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, digest, payload
		FROM snapshots
		ORDER BY taken_at DESC
		LIMIT 1
	`)

	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// PruneBefore deletes snapshots taken strictly before t
func (r *Repository) PruneBefore(ctx context.Context, t time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM snapshots WHERE taken_at < ?`, toMillis(t))
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned snapshots: %w", err)
	}
	return n, nil
}

// Count returns the number of stored snapshots
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return n, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(s scanner) (*domain.Snapshot, error) {
	var (
		id, digest string
		payload    []byte
	)
	if err := s.Scan(&id, &digest, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}

	snap, err := decodePayload(payload, digest)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", id, err)
	}
	snap.ID = id
	return snap, nil
}
