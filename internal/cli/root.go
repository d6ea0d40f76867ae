package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/lidofinance/solido-verify/internal/solido"
	"github.com/lidofinance/solido-verify/internal/verifier"
)

var (
	expectedFile string
	solidoConfig string
	solidoV1     string
	solidoV2     string
	server       string
	apiKey       string
)

// Execute runs the CLI
func Execute(version string) error {
	rootCmd := &cobra.Command{
		Use:     "solido-verify",
		Short:   "Solido migration transaction verifier CLI",
		Long:    `Solido-verify checks proposed multisig transactions for the Solido v2 migration against the published reference values.`,
		Version: version,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&expectedFile, "config", "", "expected values file (default: solido-verify.toml, then mainnet values)")
	rootCmd.PersistentFlags().StringVar(&solidoConfig, "solido-config", "", "solido CLI config file (default from SOLIDO_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&solidoV1, "solido-v1", "", "path to the v1 solido binary (default from SOLIDO_V1)")
	rootCmd.PersistentFlags().StringVar(&solidoV2, "solido-v2", "", "path to the v2 solido binary (default from SOLIDO_V2)")
	rootCmd.PersistentFlags().StringVar(&server, "server", "", "recording service URL (default from SOLIDO_VERIFY_SERVER)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key for the recording service")

	// Add subcommands
	rootCmd.AddCommand(createVerifyCmd())
	rootCmd.AddCommand(createStateCmd())
	rootCmd.AddCommand(createSubmitCmd())
	rootCmd.AddCommand(createRunsCmd())
	rootCmd.AddCommand(createAuthCmd())
	rootCmd.AddCommand(createConfigCmd())

	return rootCmd.Execute()
}

// getServer returns the recording service URL from flag, env, or default
func getServer() string {
	// 1. Command line flag
	if server != "" {
		return server
	}

	// 2. Environment variable
	if env := os.Getenv("SOLIDO_VERIFY_SERVER"); env != "" {
		return env
	}

	// 3. Default
	return "http://localhost:8080"
}

// getAPIKey returns the API key from flag, env, or credentials file
func getAPIKey() string {
	// 1. Command line flag
	if apiKey != "" {
		return apiKey
	}

	// 2. Environment variable
	if env := os.Getenv("SOLIDO_VERIFY_API_KEY"); env != "" {
		return env
	}

	// 3. Credentials file (keyed by server URL)
	serverURL := getServer()
	if cred := getCredential(serverURL); cred != "" {
		return cred
	}

	return ""
}

// getSolidoConfig returns the solido CLI config path from flag or env. Every
// on-chain call goes through the solido CLI, so this is mandatory for the
// commands that talk to the chain.
func getSolidoConfig() (string, error) {
	if solidoConfig != "" {
		return solidoConfig, nil
	}
	if env := os.Getenv("SOLIDO_CONFIG"); env != "" {
		return env, nil
	}
	return "", errSolidoConfigMissing
}

// getBinaries returns the configured solido binary generations. Either path
// may be empty; requireBinaries rejects phases that need the missing one.
func getBinaries() solido.Binaries {
	b := solido.Binaries{V1: solidoV1, V2: solidoV2}
	if b.V1 == "" {
		b.V1 = os.Getenv("SOLIDO_V1")
	}
	if b.V2 == "" {
		b.V2 = os.Getenv("SOLIDO_V2")
	}
	return b
}

// expectedConfigFile is the project-level expected values file.
const expectedConfigFile = "solido-verify.toml"

// loadExpectedValues resolves the reference values: the --config flag, then
// solido-verify.toml in the working directory, then the published mainnet
// values. The second return value names the source for display.
func loadExpectedValues() (verifier.ExpectedConfig, string, error) {
	if expectedFile != "" {
		cfg, err := verifier.LoadExpected(expectedFile)
		if err != nil {
			return verifier.ExpectedConfig{}, "", err
		}
		return cfg, expectedFile, nil
	}

	if _, err := os.Stat(expectedConfigFile); err == nil {
		cfg, err := verifier.LoadExpected(expectedConfigFile)
		if err != nil {
			return verifier.ExpectedConfig{}, "", err
		}
		return cfg, expectedConfigFile, nil
	}

	return verifier.Mainnet(), "mainnet defaults", nil
}
