package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/lidofinance/solido-verify/internal/solido"
	"github.com/lidofinance/solido-verify/internal/verifier"
)

func createStateCmd() *cobra.Command {
	var phaseFlag string
	var skipVersionCheck bool

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show the current migration state",
		Long: `Read the on-chain solido state and print the migration phase derived
from it.

The state account is read with the binary generation that matches the given
phase: deactivation and upgrade use the v1 binary, adding uses the v2 binary.

EXAMPLES:
  # Before the upgrade, read state with the v1 binary
  solido-verify state --phase deactivation

  # After the migration, read state with the v2 binary
  solido-verify state --phase adding
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			phase, err := solido.ParseCheckPhase(phaseFlag)
			if err != nil {
				return err
			}

			configPath, err := getSolidoConfig()
			if err != nil {
				return err
			}

			bins := getBinaries()
			if err := requireBinaries(phase, bins); err != nil {
				return err
			}

			client, _, err := bins.Clients(phase, configPath)
			if err != nil {
				return err
			}

			if !skipVersionCheck {
				major := "1"
				if phase == solido.PhaseAdding {
					major = "2"
				}
				if err := client.RequireMajor(cmd.Context(), major); err != nil {
					return err
				}
			}

			state, err := client.ShowSolido(cmd.Context())
			if err != nil {
				return err
			}

			p, _ := verifier.Classify(state.Snapshot())
			verifier.NewReport(os.Stdout).WriteState(p)
			return nil
		},
	}

	cmd.Flags().StringVar(&phaseFlag, "phase", "", "migration phase: deactivation, upgrade or adding (required)")
	cmd.Flags().BoolVar(&skipVersionCheck, "skip-version-check", false, "skip the solido binary version check")
	_ = cmd.MarkFlagRequired("phase")

	return cmd
}
