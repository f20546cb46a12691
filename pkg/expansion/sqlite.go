package expansion

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dshills/runwatch/pkg/domain/types"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore implements Store on a SQLite database file, so toggles made by
// `runwatch expand` are seen by a running watcher on its next pass.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (creating if needed) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite works best with single connection
	db.SetMaxIdleConns(1)

	if err := InitializeDatabase(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Set implements Store.
func (s *SQLiteStore) Set(ctx context.Context, runID types.RunID, nodeID types.NodeID, expanded bool) error {
	if runID.IsZero() || nodeID == "" {
		return fmt.Errorf("run ID and node ID cannot be empty")
	}

	query := `
		INSERT INTO node_expansion (run_id, node_id, expanded, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, node_id) DO UPDATE SET
			expanded = excluded.expanded,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, runID.String(), string(nodeID), expanded, s.now().UTC()); err != nil {
		return fmt.Errorf("failed to save expansion state: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, runID types.RunID) (map[types.NodeID]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT node_id, expanded FROM node_expansion WHERE run_id = ?", runID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query expansion state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[types.NodeID]bool)
	for rows.Next() {
		var nodeID string
		var expanded bool
		if err := rows.Scan(&nodeID, &expanded); err != nil {
			return nil, fmt.Errorf("failed to scan expansion state: %w", err)
		}
		out[types.NodeID(nodeID)] = expanded
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expansion state: %w", err)
	}
	return out, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, runID types.RunID) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM node_expansion WHERE run_id = ?", runID.String()); err != nil {
		return fmt.Errorf("failed to delete expansion state: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
