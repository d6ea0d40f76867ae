package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	schema := `
	-- API keys
	CREATE TABLE IF NOT EXISTS api_keys (
		id TEXT PRIMARY KEY,
		key_hash TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		scopes TEXT,
		created_at TEXT DEFAULT (datetime('now')),
		last_used_at TEXT,
		revoked_at TEXT
	);

	-- Verification runs
	CREATE TABLE IF NOT EXISTS verification_runs (
		id TEXT PRIMARY KEY,
		network TEXT NOT NULL,
		phase TEXT NOT NULL,
		passed INTEGER NOT NULL,
		total INTEGER NOT NULL,
		replay_mismatch INTEGER DEFAULT 0,
		submitted_by TEXT REFERENCES api_keys(id),
		expected_config TEXT,
		snapshot TEXT,
		report TEXT,
		created_at TEXT DEFAULT (datetime('now'))
	);

	-- Transactions checked within a run
	CREATE TABLE IF NOT EXISTS run_transactions (
		id TEXT PRIMARY KEY,
		run_id TEXT REFERENCES verification_runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		address TEXT NOT NULL,
		kind TEXT NOT NULL,
		decoded TEXT,
		decoded_hash TEXT,
		passed INTEGER NOT NULL,
		fields TEXT,
		UNIQUE(run_id, seq)
	);

	-- Indexes
	CREATE INDEX IF NOT EXISTS idx_runs_network ON verification_runs(network);
	CREATE INDEX IF NOT EXISTS idx_runs_phase ON verification_runs(phase);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON verification_runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_run_transactions_run ON run_transactions(run_id);
	CREATE INDEX IF NOT EXISTS idx_run_transactions_address ON run_transactions(address);
	`

	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.logger.Info("database migrations complete")
	return nil
}

// CreateRun records a verification run
func (s *SQLiteStore) CreateRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO verification_runs (id, network, phase, passed, total, replay_mismatch, submitted_by, expected_config, snapshot, report, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
	`
	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.Network, run.Phase, run.Passed, run.Total, run.ReplayMismatch,
		nullIfEmpty(run.SubmittedBy), jsonText(run.Expected), jsonText(run.Snapshot), run.Report,
	)
	return err
}

// GetRun retrieves a run by ID
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `
		SELECT id, network, phase, passed, total, replay_mismatch, submitted_by, expected_config, snapshot, report, created_at
		FROM verification_runs
		WHERE id = ?
	`
	var run Run
	var submittedBy sql.NullString
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID, &run.Network, &run.Phase, &run.Passed, &run.Total, &run.ReplayMismatch,
		&submittedBy, &run.Expected, &run.Snapshot, &run.Report, &run.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if submittedBy.Valid {
		run.SubmittedBy = submittedBy.String
	}
	return &run, err
}

// ListRuns lists runs with filtering, newest first
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter, pagination PaginationParams) (*PaginatedResult[Run], error) {
	baseQuery := `
		SELECT id, network, phase, passed, total, replay_mismatch, created_at
		FROM verification_runs
	`

	var whereClauses []string
	var args []any

	// Keyset pagination on the (created_at, id) sort keys; the cursor is the
	// id of the last run of the previous page. created_at is stored as
	// "YYYY-MM-DD HH:MM:SS" text, which compares in chronological order.
	if pagination.Cursor != "" {
		whereClauses = append(whereClauses,
			"(created_at, id) < (SELECT created_at, id FROM verification_runs WHERE id = ?)")
		args = append(args, pagination.Cursor)
	}
	if filter.Network != "" {
		whereClauses = append(whereClauses, "network = ?")
		args = append(args, filter.Network)
	}
	if filter.Phase != "" {
		whereClauses = append(whereClauses, "phase = ?")
		args = append(args, filter.Phase)
	}
	if filter.AllPassed != nil {
		if *filter.AllPassed {
			whereClauses = append(whereClauses, "passed = total")
		} else {
			whereClauses = append(whereClauses, "passed < total")
		}
	}

	query := baseQuery
	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, pagination.Limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Network, &run.Phase, &run.Passed, &run.Total, &run.ReplayMismatch, &run.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	hasMore := len(runs) > pagination.Limit
	var nextCursor string
	if hasMore {
		runs = runs[:pagination.Limit]
	}
	if len(runs) > 0 {
		nextCursor = runs[len(runs)-1].ID
	}

	return &PaginatedResult[Run]{Data: runs, HasMore: hasMore, NextCursor: nextCursor}, rows.Err()
}

// CreateRunTransaction records one checked transaction of a run
func (s *SQLiteStore) CreateRunTransaction(ctx context.Context, tx *RunTransaction) error {
	query := `
		INSERT INTO run_transactions (id, run_id, seq, address, kind, decoded, decoded_hash, passed, fields)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	hash := computeHash(tx.Decoded)
	_, err := s.db.ExecContext(ctx, query,
		tx.ID, tx.RunID, tx.Seq, tx.Address, tx.Kind, jsonText(tx.Decoded), hash, tx.Passed, jsonText(tx.Fields),
	)
	return err
}

// ListRunTransactions lists the transactions of a run in check order
func (s *SQLiteStore) ListRunTransactions(ctx context.Context, runID string) ([]RunTransaction, error) {
	query := `
		SELECT id, run_id, seq, address, kind, decoded, decoded_hash, passed, fields
		FROM run_transactions
		WHERE run_id = ?
		ORDER BY seq
	`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []RunTransaction
	for rows.Next() {
		var tx RunTransaction
		if err := rows.Scan(&tx.ID, &tx.RunID, &tx.Seq, &tx.Address, &tx.Kind, &tx.Decoded, &tx.DecodedHash, &tx.Passed, &tx.Fields); err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// CreateAPIKey creates a new API key
func (s *SQLiteStore) CreateAPIKey(ctx context.Context, name string) (string, error) {
	key := generateAPIKey()
	hash := hashAPIKey(key)
	id := generateID()
	_, err := s.db.ExecContext(ctx, "INSERT INTO api_keys (id, key_hash, name, created_at) VALUES (?, ?, ?, datetime('now'))", id, hash, name)
	if err != nil {
		return "", err
	}
	return key, nil
}

// ValidateAPIKey validates an API key
func (s *SQLiteStore) ValidateAPIKey(ctx context.Context, key string) (*APIKey, error) {
	hash := hashAPIKey(key)
	var ak APIKey
	err := s.db.QueryRowContext(ctx, "SELECT id, key_hash, name, created_at FROM api_keys WHERE key_hash = ? AND revoked_at IS NULL", hash).Scan(
		&ak.ID, &ak.KeyHash, &ak.Name, &ak.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	// Update last used
	_, _ = s.db.ExecContext(ctx, "UPDATE api_keys SET last_used_at = datetime('now') WHERE id = ?", ak.ID)
	return &ak, err
}

// ListAPIKeys lists all API keys
func (s *SQLiteStore) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at, last_used_at FROM api_keys WHERE revoked_at IS NULL")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		var k APIKey
		var lastUsed sql.NullString
		if err := rows.Scan(&k.ID, &k.Name, &k.CreatedAt, &lastUsed); err != nil {
			return nil, err
		}
		if lastUsed.Valid {
			k.LastUsedAt = lastUsed.String
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// RevokeAPIKey revokes an API key
func (s *SQLiteStore) RevokeAPIKey(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE api_keys SET revoked_at = datetime('now') WHERE id = ?", id)
	return err
}
