package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lidofinance/solido-verify/internal/verifier"
	"github.com/lidofinance/solido-verify/pkg/client"
)

func createSubmitCmd() *cobra.Command {
	var transactionsFile string
	var phaseFlag string
	var network string
	var skipVersionCheck bool

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Verify transactions and record the run on a server",
		Long: `Run a full local verification and submit the evidence bundle to a
recording server.

The bundle contains the expected values, the state snapshot and the raw
decoded transactions, so the server can replay the verification
independently. The run is recorded even when some transactions fail; the
command still exits non-zero in that case.

EXAMPLES:
  # Verify and record the upgrade proposals
  solido-verify submit --transactions txs.txt --phase upgrade

  # Record a testnet dry run
  solido-verify submit --transactions txs.txt --phase deactivation --network testnet
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			key := getAPIKey()
			if key == "" {
				return errors.New("no API key configured: run 'solido-verify auth login' or set SOLIDO_VERIFY_API_KEY")
			}

			run, err := runLocalVerify(cmd.Context(), transactionsFile, phaseFlag, skipVersionCheck)
			if err != nil {
				return err
			}

			txs, err := collectEvidence(run)
			if err != nil {
				return err
			}

			resp, err := client.New(getServer(), key).SubmitRun(cmd.Context(), client.SubmitRunRequest{
				Network:      network,
				Expected:     toClientExpected(run.expected),
				Snapshot:     toClientSnapshot(run.snapshot),
				Transactions: txs,
				Summary:      client.Summary{Passed: run.result.Summary.Passed, Total: run.result.Summary.Total},
			})
			if err != nil {
				return fmt.Errorf("submitting run: %w", err)
			}

			fmt.Printf("\n✅ Run recorded: %s\n", resp.ID)
			fmt.Printf("Server replay: %d of %d transactions passed (phase: %s)\n", resp.Passed, resp.Total, resp.Phase)
			if resp.ReplayMismatch {
				fmt.Println("⚠️  Replay mismatch: the server's verdicts differ from this run")
			}

			return checkSummary(run.result.Summary)
		},
	}

	cmd.Flags().StringVar(&transactionsFile, "transactions", "", "file with one transaction address per line (required)")
	cmd.Flags().StringVar(&phaseFlag, "phase", "", "migration phase: deactivation, upgrade or adding (required)")
	cmd.Flags().StringVar(&network, "network", "mainnet", "network label recorded with the run")
	cmd.Flags().BoolVar(&skipVersionCheck, "skip-version-check", false, "skip the solido binary version check")
	_ = cmd.MarkFlagRequired("transactions")
	_ = cmd.MarkFlagRequired("phase")

	return cmd
}

// collectEvidence pairs every input address with the raw decoded transaction
// captured during the run. A transaction that could not be fetched has no
// evidence, and a bundle with holes cannot be replayed.
func collectEvidence(run *verifyRun) ([]client.SubmittedTransaction, error) {
	txs := make([]client.SubmittedTransaction, 0, len(run.addresses))
	missing := 0
	for _, addr := range run.addresses {
		raw, ok := run.decoder.raw[addr]
		if !ok {
			missing++
			continue
		}
		txs = append(txs, client.SubmittedTransaction{Address: addr, Decoded: raw})
	}
	if missing > 0 {
		return nil, fmt.Errorf("cannot submit: %d transaction(s) could not be fetched", missing)
	}
	return txs, nil
}

func toClientExpected(e verifier.ExpectedConfig) client.ExpectedValues {
	return client.ExpectedValues{
		SolidoInstance:   e.SolidoInstance,
		ProgramToUpgrade: e.ProgramToUpgrade,
		Manager:          e.Manager,
		BufferAddress:    e.BufferAddress,
		ValidatorList:    e.ValidatorList,
		MaintainerList:   e.MaintainerList,
		DeveloperAccount: e.DeveloperAccount,
		RewardDistribution: client.RewardShares{
			TreasuryFee:       e.RewardDistribution.TreasuryFee,
			DeveloperFee:      e.RewardDistribution.DeveloperFee,
			StSolAppreciation: e.RewardDistribution.StSolAppreciation,
		},
		MaxValidators:           e.MaxValidators,
		MaxMaintainers:          e.MaxMaintainers,
		MaxCommissionPercentage: e.MaxCommissionPercentage,
		NewValidators:           e.NewValidators,
	}
}

func toClientSnapshot(s verifier.Snapshot) client.Snapshot {
	out := client.Snapshot{Version: s.Version}
	for _, v := range s.Validators {
		out.Validators = append(out.Validators, client.SnapshotValidator{
			VoteAccount: v.VoteAccount,
			Active:      v.Active,
		})
	}
	return out
}
