package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lidofinance/solido-verify/internal/solido"
	"github.com/lidofinance/solido-verify/internal/validation"
	"github.com/lidofinance/solido-verify/internal/verifier"
)

var errSolidoConfigMissing = errors.New("solido config not set: pass --solido-config or set SOLIDO_CONFIG")

func createVerifyCmd() *cobra.Command {
	var transactionsFile string
	var phaseFlag string
	var skipVersionCheck bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify proposed multisig transactions",
		Long: `Verify a list of proposed multisig transactions against the reference
migration values.

The migration phase is derived from the current on-chain state, every
transaction is decoded through the solido CLI and checked field by field,
and the report is printed to stdout. The command fails when any transaction
fails verification.

EXAMPLES:
  # Verify the deactivation proposals
  solido-verify verify --transactions txs.txt --phase deactivation

  # Verify the upgrade proposals (v1 reads state, v2 decodes transactions)
  solido-verify verify --transactions txs.txt --phase upgrade
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			run, err := runLocalVerify(cmd.Context(), transactionsFile, phaseFlag, skipVersionCheck)
			if err != nil {
				return err
			}
			return checkSummary(run.result.Summary)
		},
	}

	cmd.Flags().StringVar(&transactionsFile, "transactions", "", "file with one transaction address per line (required)")
	cmd.Flags().StringVar(&phaseFlag, "phase", "", "migration phase: deactivation, upgrade or adding (required)")
	cmd.Flags().BoolVar(&skipVersionCheck, "skip-version-check", false, "skip the solido binary version check")
	_ = cmd.MarkFlagRequired("transactions")
	_ = cmd.MarkFlagRequired("phase")

	return cmd
}

// verifyRun is one completed local verification, including the raw decoded
// transactions a submission needs as evidence.
type verifyRun struct {
	phase     solido.CheckPhase
	expected  verifier.ExpectedConfig
	snapshot  verifier.Snapshot
	addresses []string
	decoder   *recordingDecoder
	result    *verifier.RunResult
}

// runLocalVerify drives one verification run: resolve configuration, check
// the binary versions, fetch the snapshot, then verify every address in
// input order.
func runLocalVerify(ctx context.Context, transactionsFile, phaseFlag string, skipVersionCheck bool) (*verifyRun, error) {
	phase, err := solido.ParseCheckPhase(phaseFlag)
	if err != nil {
		return nil, err
	}

	expected, _, err := loadExpectedValues()
	if err != nil {
		return nil, err
	}

	addresses, err := readAddressFile(transactionsFile)
	if err != nil {
		return nil, err
	}

	configPath, err := getSolidoConfig()
	if err != nil {
		return nil, err
	}

	bins := getBinaries()
	if err := requireBinaries(phase, bins); err != nil {
		return nil, err
	}

	stateClient, txClient, err := bins.Clients(phase, configPath)
	if err != nil {
		return nil, err
	}

	if !skipVersionCheck {
		if err := solido.CheckVersions(ctx, phase, stateClient, txClient); err != nil {
			return nil, fmt.Errorf("checking solido versions: %w", err)
		}
	}

	state, err := stateClient.ShowSolido(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching solido state: %w", err)
	}
	snapshot := state.Snapshot()

	decoder := newRecordingDecoder(txClient)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	runner := verifier.NewRunner(verifier.New(expected, snapshot), decoder, os.Stdout, logger)

	result, err := runner.Run(ctx, addresses)
	if err != nil {
		return nil, err
	}

	return &verifyRun{
		phase:     phase,
		expected:  expected,
		snapshot:  snapshot,
		addresses: addresses,
		decoder:   decoder,
		result:    result,
	}, nil
}

// readAddressFile reads and validates the transactions file.
func readAddressFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening transactions file: %w", err)
	}
	defer f.Close()

	addresses, err := validation.ReadTransactionAddresses(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return addresses, nil
}

// checkSummary turns a failed tally into a command error, so the process
// exits non-zero after the report has been printed.
func checkSummary(s verifier.RunSummary) error {
	if s.AllPassed() {
		return nil
	}
	return fmt.Errorf("%d of %d transactions failed verification", s.Total-s.Passed, s.Total)
}

// requireBinaries rejects a phase whose binary generation was not configured.
func requireBinaries(phase solido.CheckPhase, b solido.Binaries) error {
	needV1 := phase == solido.PhaseDeactivation || phase == solido.PhaseUpgrade
	needV2 := phase == solido.PhaseUpgrade || phase == solido.PhaseAdding
	if needV1 && b.V1 == "" {
		return fmt.Errorf("phase %s needs a v1 solido binary: pass --solido-v1 or set SOLIDO_V1", phase)
	}
	if needV2 && b.V2 == "" {
		return fmt.Errorf("phase %s needs a v2 solido binary: pass --solido-v2 or set SOLIDO_V2", phase)
	}
	return nil
}

// recordingDecoder keeps the raw CLI output of every decoded transaction so
// the run can later be submitted as evidence.
type recordingDecoder struct {
	client *solido.Client
	raw    map[string]json.RawMessage
}

func newRecordingDecoder(c *solido.Client) *recordingDecoder {
	return &recordingDecoder{client: c, raw: make(map[string]json.RawMessage)}
}

func (d *recordingDecoder) DecodeTransaction(ctx context.Context, address string) (verifier.Instruction, error) {
	tx, err := d.client.ShowTransaction(ctx, address)
	if err != nil {
		return nil, err
	}
	d.raw[address] = tx.Raw
	return tx.Instruction(), nil
}
