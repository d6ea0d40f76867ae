package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new Postgres store
func NewPostgresStore(url string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *PostgresStore) Migrate(ctx context.Context) error {
	// api_keys first since verification_runs references it
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS api_keys (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			key_hash TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			scopes JSONB,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			last_used_at TIMESTAMPTZ,
			revoked_at TIMESTAMPTZ
		);
	`)
	if err != nil {
		return fmt.Errorf("creating api_keys table: %w", err)
	}

	schema := `
	-- Verification runs
	CREATE TABLE IF NOT EXISTS verification_runs (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		network TEXT NOT NULL,
		phase TEXT NOT NULL,
		passed INTEGER NOT NULL,
		total INTEGER NOT NULL,
		replay_mismatch BOOLEAN DEFAULT FALSE,
		submitted_by UUID REFERENCES api_keys(id),
		expected_config JSONB,
		snapshot JSONB,
		report TEXT,
		created_at TIMESTAMPTZ DEFAULT NOW()
	);

	-- Transactions checked within a run
	CREATE TABLE IF NOT EXISTS run_transactions (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		run_id UUID REFERENCES verification_runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		address TEXT NOT NULL,
		kind TEXT NOT NULL,
		decoded JSONB,
		decoded_hash TEXT,
		passed BOOLEAN NOT NULL,
		fields JSONB,
		UNIQUE(run_id, seq)
	);

	-- Indexes
	CREATE INDEX IF NOT EXISTS idx_runs_network ON verification_runs(network);
	CREATE INDEX IF NOT EXISTS idx_runs_phase ON verification_runs(phase);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON verification_runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_run_transactions_run ON run_transactions(run_id);
	CREATE INDEX IF NOT EXISTS idx_run_transactions_address ON run_transactions(address);
	`

	_, err = s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.logger.Info("database migrations complete")
	return nil
}

// CreateRun records a verification run
func (s *PostgresStore) CreateRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO verification_runs (id, network, phase, passed, total, replay_mismatch, submitted_by, expected_config, snapshot, report)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.Network, run.Phase, run.Passed, run.Total, run.ReplayMismatch,
		nullIfEmpty(run.SubmittedBy), jsonText(run.Expected), jsonText(run.Snapshot), run.Report,
	)
	return err
}

// GetRun retrieves a run by ID
func (s *PostgresStore) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `
		SELECT id, network, phase, passed, total, replay_mismatch, submitted_by, expected_config, snapshot, report, created_at
		FROM verification_runs
		WHERE id = $1
	`
	var run Run
	var submittedBy sql.NullString
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID, &run.Network, &run.Phase, &run.Passed, &run.Total, &run.ReplayMismatch,
		&submittedBy, &run.Expected, &run.Snapshot, &run.Report, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if submittedBy.Valid {
		run.SubmittedBy = submittedBy.String
	}
	run.CreatedAt = createdAt.Format("2006-01-02 15:04:05")
	return &run, nil
}

// ListRuns lists runs with filtering, newest first
func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter, pagination PaginationParams) (*PaginatedResult[Run], error) {
	baseQuery := `
		SELECT id, network, phase, passed, total, replay_mismatch, created_at
		FROM verification_runs
	`

	var whereClauses []string
	var args []any
	argIdx := 1

	// The cursor is the id of the last run of the previous page; keyset
	// pagination on the (created_at, id) sort keys keeps pages stable while
	// new runs arrive. An unknown cursor id yields an empty page.
	if pagination.Cursor != "" {
		whereClauses = append(whereClauses, fmt.Sprintf(
			"(created_at, id) < (SELECT created_at, id FROM verification_runs WHERE id = $%d)", argIdx))
		args = append(args, pagination.Cursor)
		argIdx++
	}
	if filter.Network != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("network = $%d", argIdx))
		args = append(args, filter.Network)
		argIdx++
	}
	if filter.Phase != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("phase = $%d", argIdx))
		args = append(args, filter.Phase)
		argIdx++
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
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", argIdx)
	args = append(args, pagination.Limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var createdAt time.Time
		if err := rows.Scan(&run.ID, &run.Network, &run.Phase, &run.Passed, &run.Total, &run.ReplayMismatch, &createdAt); err != nil {
			return nil, err
		}
		run.CreatedAt = createdAt.Format("2006-01-02 15:04:05")
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
func (s *PostgresStore) CreateRunTransaction(ctx context.Context, tx *RunTransaction) error {
	query := `
		INSERT INTO run_transactions (id, run_id, seq, address, kind, decoded, decoded_hash, passed, fields)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	hash := computeHash(tx.Decoded)
	_, err := s.db.ExecContext(ctx, query,
		tx.ID, tx.RunID, tx.Seq, tx.Address, tx.Kind, jsonText(tx.Decoded), hash, tx.Passed, jsonText(tx.Fields),
	)
	return err
}

// ListRunTransactions lists the transactions of a run in check order
func (s *PostgresStore) ListRunTransactions(ctx context.Context, runID string) ([]RunTransaction, error) {
	query := `
		SELECT id, run_id, seq, address, kind, decoded, decoded_hash, passed, fields
		FROM run_transactions
		WHERE run_id = $1
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
func (s *PostgresStore) CreateAPIKey(ctx context.Context, name string) (string, error) {
	key := generateAPIKey()
	hash := hashAPIKey(key)
	id := generateID()
	_, err := s.db.ExecContext(ctx, "INSERT INTO api_keys (id, key_hash, name) VALUES ($1, $2, $3)", id, hash, name)
	if err != nil {
		return "", err
	}
	return key, nil
}

// ValidateAPIKey validates an API key
func (s *PostgresStore) ValidateAPIKey(ctx context.Context, key string) (*APIKey, error) {
	hash := hashAPIKey(key)
	var ak APIKey
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, "SELECT id, key_hash, name, created_at FROM api_keys WHERE key_hash = $1 AND revoked_at IS NULL", hash).Scan(
		&ak.ID, &ak.KeyHash, &ak.Name, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err == nil {
		ak.CreatedAt = createdAt.Format("2006-01-02 15:04:05")
	}
	// Update last used
	_, _ = s.db.ExecContext(ctx, "UPDATE api_keys SET last_used_at = NOW() WHERE id = $1", ak.ID)
	return &ak, err
}

// ListAPIKeys lists all API keys
func (s *PostgresStore) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at, last_used_at FROM api_keys WHERE revoked_at IS NULL")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		var k APIKey
		var createdAt time.Time
		var lastUsed sql.NullTime
		if err := rows.Scan(&k.ID, &k.Name, &createdAt, &lastUsed); err != nil {
			return nil, err
		}
		k.CreatedAt = createdAt.Format("2006-01-02 15:04:05")
		if lastUsed.Valid {
			k.LastUsedAt = lastUsed.Time.Format("2006-01-02 15:04:05")
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// RevokeAPIKey revokes an API key
func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE api_keys SET revoked_at = NOW() WHERE id = $1", id)
	return err
}
