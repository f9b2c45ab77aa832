// Package history persists tool invocation outcomes in SQLite.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/petal-labs/opensearch-mcp/tool"
)

const schema = `
CREATE TABLE IF NOT EXISTS invocations (
	id TEXT PRIMARY KEY,
	tool TEXT NOT NULL,
	cluster TEXT NOT NULL DEFAULT '',
	success INTEGER NOT NULL,
	kind TEXT NOT NULL DEFAULT '',
	message TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS invocations_created_at ON invocations (created_at);`

const (
	defaultDir  = ".opensearch-mcp"
	defaultFile = "history.db"
)

// Record is one stored invocation.
type Record struct {
	ID         string    `json:"id"`
	Tool       string    `json:"tool"`
	Cluster    string    `json:"cluster,omitempty"`
	Success    bool      `json:"success"`
	Kind       tool.Kind `json:"kind,omitempty"`
	Message    string    `json:"message,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// RecordFromObservation converts a dispatch observation.
func RecordFromObservation(observation tool.InvocationObservation, at time.Time) Record {
	return Record{
		ID:         observation.InvocationID,
		Tool:       observation.ToolName,
		Cluster:    observation.Cluster,
		Success:    observation.Success,
		Kind:       observation.Kind,
		Message:    observation.Message,
		DurationMS: observation.DurationMS,
		CreatedAt:  at.UTC(),
	}
}

// Store is a SQLite-backed invocation log.
type Store struct {
	db *sql.DB
}

// DefaultPath returns ~/.opensearch-mcp/history.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("history: resolve user home: %w", err)
	}
	return filepath.Join(home, defaultDir, defaultFile), nil
}

// Open opens (or creates) the store at dsn.
func Open(dsn string) (*Store, error) {
	clean := strings.TrimSpace(dsn)
	if clean == "" {
		return nil, errors.New("history: sqlite dsn is required")
	}
	if !strings.HasPrefix(clean, "file:") && clean != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(clean), 0o750); err != nil {
			return nil, fmt.Errorf("history: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", clean)
	if err != nil {
		return nil, fmt.Errorf("history: sqlite open: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: sqlite set WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: sqlite create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Insert stores one record. Missing IDs and timestamps are filled in.
func (s *Store) Insert(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return errors.New("history: store is nil")
	}
	if strings.TrimSpace(rec.Tool) == "" {
		return errors.New("history: record tool is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO invocations (id, tool, cluster, success, kind, message, duration_ms, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Tool, rec.Cluster, boolToInt(rec.Success), string(rec.Kind), rec.Message,
		rec.DurationMS, rec.CreatedAt.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("history: sqlite insert: %w", err)
	}
	return nil
}

// List returns up to limit records, newest first. A non-positive limit
// returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, errors.New("history: store is nil")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, tool, cluster, success, kind, message, duration_ms, created_at
FROM invocations
ORDER BY created_at DESC, id ASC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: sqlite list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec     Record
			success int
			kind    string
			created int64
		)
		if err := rows.Scan(&rec.ID, &rec.Tool, &rec.Cluster, &success, &kind, &rec.Message, &rec.DurationMS, &created); err != nil {
			return nil, fmt.Errorf("history: sqlite scan: %w", err)
		}
		rec.Success = success != 0
		rec.Kind = tool.Kind(kind)
		rec.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: sqlite rows: %w", err)
	}
	return out, nil
}

// Prune deletes records created before the cutoff and reports how many were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.db == nil {
		return 0, errors.New("history: store is nil")
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM invocations WHERE created_at < ?`, before.UTC().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("history: sqlite prune: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("history: sqlite prune rows: %w", err)
	}
	return removed, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
