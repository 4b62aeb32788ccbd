// Package store persists circuit-run history to SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

// schemaV1 is the initial schema for the run store.
const schemaV1 = `
-- One row per circuit execution (denormalized for single-query listing)
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    created_at TEXT NOT NULL,

    -- Circuit structure
    digest TEXT NOT NULL,
    nqubits INTEGER NOT NULL,
    ngates INTEGER NOT NULL,
    density_matrix INTEGER NOT NULL DEFAULT 0,
    gate_counts TEXT,  -- JSON map name -> count

    -- Execution parameters
    backend TEXT NOT NULL,
    device TEXT NOT NULL,
    nshots INTEGER NOT NULL DEFAULT 0,
    seed INTEGER,

    -- Outcome
    frequencies TEXT,  -- JSON map bitstring -> count, null when no sampling
    elapsed_ms INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_digest ON runs(digest);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);

-- Schema bookkeeping
CREATE TABLE IF NOT EXISTS schema_info (
    version INTEGER PRIMARY KEY
);
`

// InitSchema creates the run-store tables if they do not exist.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_info (version) VALUES (?)`, SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}
