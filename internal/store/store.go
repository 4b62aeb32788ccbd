package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

// Run is one persisted circuit execution.
type Run struct {
	ID            string         `json:"id"`
	CreatedAt     time.Time      `json:"created_at"`
	Digest        string         `json:"digest"`
	NQubits       int            `json:"nqubits"`
	NGates        int            `json:"ngates"`
	DensityMatrix bool           `json:"density_matrix"`
	GateCounts    map[string]int `json:"gate_counts,omitempty"`
	Backend       string         `json:"backend"`
	Device        string         `json:"device"`
	NShots        int            `json:"nshots"`
	Seed          uint64         `json:"seed,omitempty"`
	Frequencies   map[string]int `json:"frequencies,omitempty"`
	Elapsed       time.Duration  `json:"-"`
	ElapsedMS     int64          `json:"elapsed_ms"`
}

// RunStore persists run records to a SQLite database.
type RunStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// Open creates (or opens) the run store at path, initializing the
// schema on first use.
func Open(path string) (*RunStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &RunStore{db: db}, nil
}

// Save inserts a run record. A missing ID or timestamp is filled in;
// the stored ID is returned.
func (s *RunStore) Save(ctx context.Context, run Run) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if run.ElapsedMS == 0 {
		run.ElapsedMS = run.Elapsed.Milliseconds()
	}

	counts, err := marshalNullable(run.GateCounts)
	if err != nil {
		return "", fmt.Errorf("failed to encode gate counts: %w", err)
	}
	freqs, err := marshalNullable(run.Frequencies)
	if err != nil {
		return "", fmt.Errorf("failed to encode frequencies: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, digest, nqubits, ngates, density_matrix,
			gate_counts, backend, device, nshots, seed, frequencies, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.Format(time.RFC3339Nano), run.Digest,
		run.NQubits, run.NGates, boolToInt(run.DensityMatrix),
		counts, run.Backend, run.Device, run.NShots, int64(run.Seed),
		freqs, run.ElapsedMS)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return run.ID, nil
}

// Get retrieves a run by ID.
func (s *RunStore) Get(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, digest, nqubits, ngates, density_matrix,
			gate_counts, backend, device, nshots, seed, frequencies, elapsed_ms
		FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	return run, nil
}

// List returns the most recent runs, newest first.
func (s *RunStore) List(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, digest, nqubits, ngates, density_matrix,
			gate_counts, backend, device, nshots, seed, frequencies, elapsed_ms
		FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *RunStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run       Run
		createdAt string
		density   int
		counts    sql.NullString
		freqs     sql.NullString
		seed      sql.NullInt64
	)
	err := row.Scan(&run.ID, &createdAt, &run.Digest, &run.NQubits, &run.NGates,
		&density, &counts, &run.Backend, &run.Device, &run.NShots, &seed,
		&freqs, &run.ElapsedMS)
	if err != nil {
		return nil, err
	}

	run.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	run.DensityMatrix = density != 0
	if seed.Valid {
		run.Seed = uint64(seed.Int64)
	}
	if counts.Valid && counts.String != "" {
		if err := json.Unmarshal([]byte(counts.String), &run.GateCounts); err != nil {
			return nil, fmt.Errorf("invalid gate_counts: %w", err)
		}
	}
	if freqs.Valid && freqs.String != "" {
		if err := json.Unmarshal([]byte(freqs.String), &run.Frequencies); err != nil {
			return nil, fmt.Errorf("invalid frequencies: %w", err)
		}
	}
	run.Elapsed = time.Duration(run.ElapsedMS) * time.Millisecond
	return &run, nil
}

func marshalNullable(m map[string]int) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
