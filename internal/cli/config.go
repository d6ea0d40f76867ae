package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/lidofinance/solido-verify/internal/verifier"
)

func createConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	cmd.AddCommand(createConfigInitCmd())
	cmd.AddCommand(createConfigShowCmd())

	return cmd
}

func createConfigInitCmd() *cobra.Command {
	var outputPath string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an expected-values file",
		Long: `Create a solido-verify.toml expected-values file in the current directory,
pre-filled with the published mainnet reference values.

Edit the file to verify proposals against a different deployment, for
example on testnet.

EXAMPLES:
  # Create solido-verify.toml with the mainnet values
  solido-verify config init

  # Overwrite an existing file
  solido-verify config init --force
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(outputPath, force)
		},
	}

	cmd.Flags().StringVar(&outputPath, "output", expectedConfigFile, "path of the file to create")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing file")

	return cmd
}

func createConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current config",
		Long: `Display the current configuration.

Shows every configuration source in order of precedence, plus the
effective values a command would run with.

EXAMPLES:
  solido-verify config show
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow()
		},
	}

	return cmd
}

func runConfigInit(outputPath string, force bool) error {
	if _, err := os.Stat(outputPath); err == nil && !force {
		return fmt.Errorf("file already exists at %s (use --force to overwrite)", outputPath)
	}

	var buf strings.Builder
	buf.WriteString("# solido-verify expected values\n")
	buf.WriteString("# Reference parameters the migration proposals are verified against.\n")
	buf.WriteString("# Pre-filled with the published mainnet values; edit for other deployments.\n\n")
	if err := toml.NewEncoder(&buf).Encode(verifier.Mainnet()); err != nil {
		return fmt.Errorf("encoding expected values: %w", err)
	}

	if err := os.WriteFile(outputPath, []byte(buf.String()), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Created %s\n", outputPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Printf("  1. Review the reference values in %s\n", outputPath)
	fmt.Println("  2. Run 'solido-verify verify --transactions txs.txt --phase <phase>'")

	return nil
}

func runConfigShow() error {
	fmt.Println("Configuration sources (in order of precedence):")
	fmt.Println()

	// 1. Command line flags
	fmt.Println("1. Command line flags")
	fmt.Println("   --config, --solido-config, --solido-v1, --solido-v2, --server, --api-key")
	fmt.Println()

	// 2. Environment variables
	fmt.Println("2. Environment variables")
	printEnv := func(name string, mask bool) {
		v := os.Getenv(name)
		switch {
		case v == "":
			fmt.Printf("   %s=(not set)\n", name)
		case mask:
			fmt.Printf("   %s=%s\n", name, maskAPIKey(v))
		default:
			fmt.Printf("   %s=%s\n", name, v)
		}
	}
	printEnv("SOLIDO_VERIFY_SERVER", false)
	printEnv("SOLIDO_VERIFY_API_KEY", true)
	printEnv("SOLIDO_CONFIG", false)
	printEnv("SOLIDO_V1", false)
	printEnv("SOLIDO_V2", false)
	fmt.Println()

	// 3. Expected values
	fmt.Println("3. Expected values (solido-verify.toml)")
	expected, source, err := loadExpectedValues()
	if err != nil {
		fmt.Printf("   Error: %v\n", err)
	} else {
		fmt.Printf("   Loaded from: %s\n", source)
		fmt.Printf("   solido_instance: %s\n", expected.SolidoInstance)
		fmt.Printf("   program_to_upgrade: %s\n", expected.ProgramToUpgrade)
		fmt.Printf("   manager: %s\n", expected.Manager)
		fmt.Printf("   new_validators: %d entries\n", len(expected.NewValidators))
	}
	fmt.Println()

	// 4. Credentials
	fmt.Println("4. Credentials (~/.solido-verify/credentials)")
	creds, err := loadCredentials()
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("   (not found)")
		} else {
			fmt.Printf("   Error: %v\n", err)
		}
	} else {
		if len(creds.Servers) == 0 {
			fmt.Println("   (no credentials stored)")
		} else {
			for server, cred := range creds.Servers {
				fmt.Printf("   %s: %s\n", server, maskAPIKey(cred.APIKey))
			}
		}
	}
	fmt.Println()

	// Effective config
	fmt.Println("Effective configuration:")
	fmt.Printf("   Server:        %s\n", getServer())
	if key := getAPIKey(); key != "" {
		fmt.Printf("   API Key:       %s\n", maskAPIKey(key))
	} else {
		fmt.Println("   API Key:       (not set)")
	}
	if configPath, err := getSolidoConfig(); err == nil {
		fmt.Printf("   Solido config: %s\n", configPath)
	} else {
		fmt.Println("   Solido config: (not set)")
	}
	bins := getBinaries()
	if bins.V1 != "" {
		fmt.Printf("   Solido v1:     %s\n", bins.V1)
	} else {
		fmt.Println("   Solido v1:     (not set)")
	}
	if bins.V2 != "" {
		fmt.Printf("   Solido v2:     %s\n", bins.V2)
	} else {
		fmt.Println("   Solido v2:     (not set)")
	}

	return nil
}
