package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lidofinance/solido-verify/internal/config"
)

// RunStore handles verification run operations
type RunStore interface {
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter, pagination PaginationParams) (*PaginatedResult[Run], error)
	CreateRunTransaction(ctx context.Context, tx *RunTransaction) error
	ListRunTransactions(ctx context.Context, runID string) ([]RunTransaction, error)
}

// APIKeyStore handles API key operations
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, name string) (key string, err error)
	ValidateAPIKey(ctx context.Context, key string) (*APIKey, error)
	ListAPIKeys(ctx context.Context) ([]APIKey, error)
	RevokeAPIKey(ctx context.Context, id string) error
}

// Store combines all storage interfaces with lifecycle methods.
// Domain services define their own minimal interfaces based on their actual usage.
type Store interface {
	RunStore
	APIKeyStore

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}

// Run represents one recorded verification run
type Run struct {
	ID             string
	Network        string
	Phase          string
	Passed         int
	Total          int
	ReplayMismatch bool
	SubmittedBy    string // API key ID that submitted this run
	Expected       []byte // reference values the run was checked against, JSON
	Snapshot       []byte // on-chain state evidence, JSON
	Report         string // rendered report text
	CreatedAt      string
}

// RunTransaction represents one verified transaction within a run
type RunTransaction struct {
	ID          string
	RunID       string
	Seq         int
	Address     string
	Kind        string
	Decoded     []byte // decoded instruction evidence, JSON
	DecodedHash string
	Passed      bool
	Fields      []byte // per-field verdicts, JSON
}

// APIKey represents an API key
type APIKey struct {
	ID         string
	Name       string
	KeyHash    string
	Scopes     map[string]any
	CreatedAt  string
	LastUsedAt string
	RevokedAt  string
}

// RunFilter contains filter options for listing runs
type RunFilter struct {
	Network   string
	Phase     string
	AllPassed *bool
}

// PaginationParams contains pagination options
type PaginationParams struct {
	Limit  int
	Cursor string
}

// PaginatedResult contains paginated results
type PaginatedResult[T any] struct {
	Data       []T
	HasMore    bool
	NextCursor string
	PrevCursor string
}

// New creates a new store based on configuration
func New(cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		return NewSQLiteStore(cfg.SQLite.Path, logger)
	case "postgres":
		return NewPostgresStore(cfg.Postgres.URL, logger)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
