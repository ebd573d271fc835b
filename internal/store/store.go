// Package store provides a SQLite-backed history of query runs. Each answered
// query is persisted with its latency, retrieval and token accounting so
// operators can audit what the assistant said and what it cost, across
// restarts.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// RunRecord is one persisted query run.
type RunRecord struct {
	// Query is the user's question.
	Query string
	// Answer is the final answer text returned to the caller.
	Answer string
	// Latency is the wall-clock duration of the run.
	Latency time.Duration
	// RetrievalCount is how many retrieval tool calls the agent made.
	RetrievalCount int
	// InputTokens and OutputTokens are the observed or estimated token usage.
	InputTokens  int
	OutputTokens int
	// CostUSD is the estimated request cost in US dollars.
	CostUSD float64
	// Error is the terminal error text, empty for successful runs.
	Error string
	// CreatedAt is when the run was persisted.
	CreatedAt time.Time
}

// RunStore persists and retrieves query runs. Implementations must be safe
// for concurrent use.
type RunStore interface {
	// Append persists a single run.
	Append(ctx context.Context, rec RunRecord) error
	// Recent returns the most recent n runs, newest-first.
	Recent(ctx context.Context, n int) ([]RunRecord, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a RunStore backed by a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// DefaultDBPath returns the default path for the run history database.
// It resolves to ~/.medrag/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".medrag")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS runs (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    query           TEXT    NOT NULL,
    answer          TEXT    NOT NULL,
    latency_ms      INTEGER NOT NULL,
    retrieval_count INTEGER NOT NULL,
    input_tokens    INTEGER NOT NULL,
    output_tokens   INTEGER NOT NULL,
    cost_usd        REAL    NOT NULL,
    error           TEXT    NOT NULL DEFAULT '',
    created_at      INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs (created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Append persists a single run.
func (s *SQLiteStore) Append(ctx context.Context, rec RunRecord) error {
	const q = `
INSERT INTO runs (query, answer, latency_ms, retrieval_count, input_tokens, output_tokens, cost_usd, error, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		rec.Query, rec.Answer, rec.Latency.Milliseconds(),
		rec.RetrievalCount, rec.InputTokens, rec.OutputTokens,
		rec.CostUSD, rec.Error, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("store: append: %w", err)
	}
	return nil
}

// Recent returns the most recent n runs, newest-first.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]RunRecord, error) {
	const q = `
SELECT query, answer, latency_ms, retrieval_count, input_tokens, output_tokens, cost_usd, error, created_at
FROM   runs
ORDER  BY created_at DESC, id DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var recs []RunRecord
	for rows.Next() {
		var rec RunRecord
		var latencyMS, ts int64
		if err := rows.Scan(&rec.Query, &rec.Answer, &latencyMS, &rec.RetrievalCount,
			&rec.InputTokens, &rec.OutputTokens, &rec.CostUSD, &rec.Error, &ts); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		rec.Latency = time.Duration(latencyMS) * time.Millisecond
		rec.CreatedAt = time.Unix(ts, 0)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return recs, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
