package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lidofinance/solido-verify/pkg/client"
)

func createRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Browse recorded verification runs",
		Long: `Browse the verification runs recorded on the server.

EXAMPLES:
  # List the latest runs
  solido-verify runs list

  # List failed mainnet runs
  solido-verify runs list --network mainnet --failed

  # Show one run with its stored report
  solido-verify runs show 4f6b2c1a-8d3e-4b5f-9c7d-2e1f0a9b8c7d --report
`,
	}

	cmd.AddCommand(createRunsListCmd())
	cmd.AddCommand(createRunsShowCmd())

	return cmd
}

func createRunsListCmd() *cobra.Command {
	var network string
	var phase string
	var limit int
	var cursor string
	var onlyPassed bool
	var onlyFailed bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			if onlyPassed && onlyFailed {
				return errors.New("only one of --passed and --failed may be set")
			}

			opts := client.ListRunsOptions{
				Network: network,
				Phase:   phase,
				Limit:   limit,
				Cursor:  cursor,
			}
			if onlyPassed {
				v := true
				opts.AllPassed = &v
			}
			if onlyFailed {
				v := false
				opts.AllPassed = &v
			}

			resp, err := client.New(getServer(), getAPIKey()).ListRuns(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("listing runs: %w", err)
			}

			if jsonOutput {
				out, err := json.MarshalIndent(resp, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}

			if len(resp.Data) == 0 {
				fmt.Println("No runs recorded")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNETWORK\tPHASE\tRESULT\tREPLAY\tCREATED")
			for _, run := range resp.Data {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\t%s\n",
					shortID(run.ID), run.Network, run.Phase,
					run.Passed, run.Total, replayLabel(run.ReplayMismatch), run.CreatedAt)
			}
			w.Flush()

			if resp.Pagination.HasMore {
				fmt.Printf("\nMore runs available: rerun with --cursor %s\n", resp.Pagination.NextCursor)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&network, "network", "", "filter by network")
	cmd.Flags().StringVar(&phase, "phase", "", "filter by migration phase")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to return")
	cmd.Flags().StringVar(&cursor, "cursor", "", "pagination cursor from a previous page")
	cmd.Flags().BoolVar(&onlyPassed, "passed", false, "only runs where every transaction passed")
	cmd.Flags().BoolVar(&onlyFailed, "failed", false, "only runs with at least one failed transaction")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the raw JSON response")

	return cmd
}

func createRunsShowCmd() *cobra.Command {
	var jsonOutput bool
	var showReport bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			run, err := client.New(getServer(), getAPIKey()).GetRun(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("fetching run: %w", err)
			}

			if jsonOutput {
				out, err := json.MarshalIndent(run, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}

			fmt.Printf("Run:      %s\n", run.ID)
			fmt.Printf("Network:  %s\n", run.Network)
			fmt.Printf("Phase:    %s\n", run.Phase)
			fmt.Printf("Result:   %d/%d passed\n", run.Passed, run.Total)
			fmt.Printf("Replay:   %s\n", replayLabel(run.ReplayMismatch))
			if run.SubmittedBy != "" {
				fmt.Printf("Key:      %s\n", run.SubmittedBy)
			}
			if run.CreatedAt != "" {
				fmt.Printf("Created:  %s\n", run.CreatedAt)
			}

			if len(run.Transactions) > 0 {
				fmt.Println()
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "SEQ\tADDRESS\tINSTRUCTION\tRESULT")
				for _, tx := range run.Transactions {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
						tx.Seq, truncateAddress(tx.Address), tx.Kind, passLabel(tx.Passed))
				}
				w.Flush()
			}

			if showReport && run.Report != "" {
				fmt.Println()
				fmt.Print(run.Report)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the raw JSON response")
	cmd.Flags().BoolVar(&showReport, "report", false, "print the stored verification report")

	return cmd
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func replayLabel(mismatch bool) string {
	if mismatch {
		return "MISMATCH"
	}
	return "ok"
}

func passLabel(passed bool) string {
	if passed {
		return "OK"
	}
	return "BAD"
}

// truncateAddress shortens a base58 address for table output.
func truncateAddress(addr string) string {
	if len(addr) <= 14 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
