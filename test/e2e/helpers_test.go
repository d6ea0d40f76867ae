//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lidofinance/solido-verify/internal/config"
	"github.com/lidofinance/solido-verify/internal/observability/metrics"
	"github.com/lidofinance/solido-verify/internal/server"
	"github.com/lidofinance/solido-verify/internal/storage"
	"github.com/lidofinance/solido-verify/internal/verifier"
	"github.com/lidofinance/solido-verify/pkg/client"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestContext holds shared test infrastructure
type TestContext struct {
	PostgresContainer *postgres.PostgresContainer
	ConnString        string
	TestServer        *httptest.Server
	Store             storage.Store
}

// setupPostgres starts a Postgres container and returns the connection string
func setupPostgres(ctx context.Context, t *testing.T) (*postgres.PostgresContainer, string) {
	container, connStr, err := setupPostgresE(ctx)
	if err != nil {
		t.Fatalf("Failed to start postgres: %v", err)
	}
	return container, connStr
}

// setupPostgresE starts a Postgres container and returns the connection string (error-returning variant for TestMain)
func setupPostgresE(ctx context.Context) (*postgres.PostgresContainer, string, error) {
	postgresContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("solido_verify"),
		postgres.WithUsername("solido_verify"),
		postgres.WithPassword("solido_verify"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	connString, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = postgresContainer.Terminate(ctx)
		return nil, "", fmt.Errorf("failed to get postgres connection string: %w", err)
	}

	return postgresContainer, connString, nil
}

// startServer starts the solido-verify server in-process with the given config
func startServer(t *testing.T, connString string) (*httptest.Server, storage.Store) {
	server, store, err := startServerE(connString)
	if err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	return server, store
}

// startServerE starts the solido-verify server in-process (error-returning variant for TestMain)
func startServerE(connString string) (*httptest.Server, storage.Store, error) {
	// Create config
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Storage: config.StorageConfig{
			Type: "postgres",
			Postgres: config.PostgresConfig{
				URL: connString,
			},
		},
		Auth:      config.AuthConfig{Type: "api-key"},
		Logging:   config.LoggingConfig{Level: "debug", Format: "text"},
		RateLimit: config.RateLimitConfig{Enabled: false},
		Security:  config.SecurityConfig{FilterEnabled: false, MaxBodySizeMB: 50},
		Proxy:     config.ProxyConfig{TrustProxy: false},
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// Metrics stay disabled here; Init registers collectors on the
	// process-wide default registry and may run at most once per binary.
	metrics.Init(false)

	// Create store
	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create store: %w", err)
	}

	// Run migrations
	err = store.Migrate(context.Background())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create server
	srv := server.New(cfg, store, logger)

	testServer := httptest.NewServer(srv.Handler())

	return testServer, store, nil
}

// newClient creates a new API client for the test server
func newClient(testServer *httptest.Server, apiKey string) *client.Client {
	return client.New(testServer.URL, apiKey)
}

// createTestAPIKey creates a test API key using the store directly
func createTestAPIKey(t *testing.T, store storage.Store, name string) string {
	key, err := store.CreateAPIKey(context.Background(), name)
	require.NoError(t, err, "Failed to create API key")
	return key
}

// mainnetExpected returns the published mainnet reference values in the
// client's wire form. The JSON keys of both types are the solido CLI's own
// spellings, so a marshal round-trip converts exactly.
func mainnetExpected(t *testing.T) client.ExpectedValues {
	t.Helper()

	data, err := json.Marshal(verifier.Mainnet())
	require.NoError(t, err, "Failed to encode expected values")

	var expected client.ExpectedValues
	require.NoError(t, json.Unmarshal(data, &expected), "Failed to decode expected values")
	return expected
}

// legacyVoteAccounts returns the full pre-migration validator set used in
// snapshot fixtures. Snapshot vote accounts are matched against the
// transactions, never parsed, so readable fakes keep the fixtures small.
func legacyVoteAccounts() []string {
	accounts := make([]string, verifier.LegacyValidatorCount)
	for i := range accounts {
		accounts[i] = fmt.Sprintf("legacy-vote-%d", i)
	}
	return accounts
}

// deactivationSnapshot is a v1 state with the whole legacy set still active
func deactivationSnapshot() client.Snapshot {
	snap := client.Snapshot{Version: 0}
	for _, vote := range legacyVoteAccounts() {
		snap.Validators = append(snap.Validators, client.SnapshotValidator{VoteAccount: vote, Active: true})
	}
	return snap
}

// upgradeSnapshot is a v1 state after all legacy validators were deactivated
func upgradeSnapshot() client.Snapshot {
	snap := client.Snapshot{Version: 0}
	for _, vote := range legacyVoteAccounts() {
		snap.Validators = append(snap.Validators, client.SnapshotValidator{VoteAccount: vote, Active: false})
	}
	return snap
}

// addValidatorsSnapshot is a freshly migrated v2 state with no validators yet
func addValidatorsSnapshot() client.Snapshot {
	return client.Snapshot{Version: 1}
}

// txAddress returns a well-formed account address for the i-th transaction
// of an evidence bundle. Submitted transaction addresses must decode to 32
// bytes, so the fixtures borrow from the published validator list.
func txAddress(i int) string {
	pool := verifier.Mainnet().NewValidators
	return pool[i%len(pool)]
}

// decodedDeactivate builds the show-transaction JSON for a DeactivateValidator
func decodedDeactivate(expected client.ExpectedValues, voteAccount string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"parsed_instruction":{"SolidoInstruction":{"DeactivateValidator":{"solido_instance":%q,"manager":%q,"validator_vote_account":%q}}},"did_execute":false}`,
		expected.SolidoInstance, expected.Manager, voteAccount))
}

// decodedAddValidator builds the show-transaction JSON for an AddValidator
func decodedAddValidator(expected client.ExpectedValues, voteAccount string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"parsed_instruction":{"SolidoInstruction":{"AddValidator":{"solido_instance":%q,"manager":%q,"validator_vote_account":%q}}},"did_execute":false}`,
		expected.SolidoInstance, expected.Manager, voteAccount))
}

// decodedBpfUpgrade builds the show-transaction JSON for a BpfLoaderUpgrade
func decodedBpfUpgrade(program, buffer string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"parsed_instruction":{"BpfLoaderUpgrade":{"program_to_upgrade":%q,"buffer_address":%q}},"did_execute":false}`,
		program, buffer))
}

// decodedMigrate builds the show-transaction JSON for a MigrateStateToV2
func decodedMigrate(t *testing.T, expected client.ExpectedValues) json.RawMessage {
	t.Helper()

	payload := map[string]any{
		"parsed_instruction": map[string]any{
			"SolidoInstruction": map[string]any{
				"MigrateStateToV2": map[string]any{
					"solido_instance":           expected.SolidoInstance,
					"manager":                   expected.Manager,
					"validator_list":            expected.ValidatorList,
					"maintainer_list":           expected.MaintainerList,
					"developer_account":         expected.DeveloperAccount,
					"max_maintainers":           expected.MaxMaintainers,
					"max_validators":            expected.MaxValidators,
					"max_commission_percentage": expected.MaxCommissionPercentage,
					"reward_distribution": map[string]any{
						"treasury_fee":        expected.RewardDistribution.TreasuryFee,
						"developer_fee":       expected.RewardDistribution.DeveloperFee,
						"st_sol_appreciation": expected.RewardDistribution.StSolAppreciation,
					},
				},
			},
		},
		"did_execute": false,
	}

	data, err := json.Marshal(payload)
	require.NoError(t, err, "Failed to encode migrate instruction")
	return data
}

// decodedUnknown builds show-transaction JSON that maps onto no known
// instruction variant
func decodedUnknown() json.RawMessage {
	return json.RawMessage(`{"parsed_instruction":{"TokenInstruction":{"Transfer":{"amount":1}}},"did_execute":false}`)
}

// deactivationBundle builds a fully passing deactivation-phase evidence
// bundle with n deactivations of distinct legacy validators
func deactivationBundle(t *testing.T, network string, n int) client.SubmitRunRequest {
	t.Helper()

	expected := mainnetExpected(t)
	legacy := legacyVoteAccounts()
	require.LessOrEqual(t, n, len(legacy), "not enough legacy validators for bundle")

	txs := make([]client.SubmittedTransaction, n)
	for i := 0; i < n; i++ {
		txs[i] = client.SubmittedTransaction{
			Address: txAddress(i),
			Decoded: decodedDeactivate(expected, legacy[i]),
		}
	}

	return client.SubmitRunRequest{
		Network:      network,
		Expected:     expected,
		Snapshot:     deactivationSnapshot(),
		Transactions: txs,
		Summary:      client.Summary{Passed: n, Total: n},
	}
}

// upgradeBundle builds a fully passing upgrade-phase evidence bundle: the
// bytecode upgrade followed by the state migration
func upgradeBundle(t *testing.T, network string) client.SubmitRunRequest {
	t.Helper()

	expected := mainnetExpected(t)
	return client.SubmitRunRequest{
		Network:  network,
		Expected: expected,
		Snapshot: upgradeSnapshot(),
		Transactions: []client.SubmittedTransaction{
			{Address: txAddress(0), Decoded: decodedBpfUpgrade(expected.ProgramToUpgrade, expected.BufferAddress)},
			{Address: txAddress(1), Decoded: decodedMigrate(t, expected)},
		},
		Summary: client.Summary{Passed: 2, Total: 2},
	}
}

// addValidatorsBundle builds a fully passing add-phase evidence bundle with
// n additions from the published validator list
func addValidatorsBundle(t *testing.T, network string, n int) client.SubmitRunRequest {
	t.Helper()

	expected := mainnetExpected(t)
	require.LessOrEqual(t, n, len(expected.NewValidators), "not enough new validators for bundle")

	txs := make([]client.SubmittedTransaction, n)
	for i := 0; i < n; i++ {
		txs[i] = client.SubmittedTransaction{
			Address: txAddress(i),
			Decoded: decodedAddValidator(expected, expected.NewValidators[i]),
		}
	}

	return client.SubmitRunRequest{
		Network:      network,
		Expected:     expected,
		Snapshot:     addValidatorsSnapshot(),
		Transactions: txs,
		Summary:      client.Summary{Passed: n, Total: n},
	}
}

// submitRun uploads a bundle and fails the test on any transport error
func submitRun(t *testing.T, c *client.Client, bundle client.SubmitRunRequest) *client.SubmitRunResponse {
	t.Helper()

	resp, err := c.SubmitRun(context.Background(), bundle)
	require.NoError(t, err, "Failed to submit run")
	return resp
}

// assertHTTPError asserts that an error is an APIError with the expected code
func assertHTTPError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	require.Error(t, err, "Expected an error")
	apiErr, ok := err.(*client.APIError)
	require.True(t, ok, "Error should be an APIError")
	require.Equal(t, expectedCode, apiErr.Code, "Error code mismatch")
}
