package solido

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/lidofinance/solido-verify/internal/validation"
	"github.com/lidofinance/solido-verify/internal/verifier"
)

type runFunc func(ctx context.Context, bin string, args ...string) ([]byte, error)

// Client runs one solido binary against one multisig config file. During the
// migration two generations of the binary coexist, so callers hold one Client
// per generation.
type Client struct {
	bin        string
	configPath string
	run        runFunc
}

// NewClient returns a client for the given binary. configPath is passed to
// every on-chain call via --config.
func NewClient(bin, configPath string) *Client {
	return &Client{bin: bin, configPath: configPath, run: runCommand}
}

func runCommand(ctx context.Context, bin string, args ...string) ([]byte, error) {
	// #nosec G204 -- binary and arguments come from operator configuration
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%v: %s", err, bytes.TrimSpace(stderr.Bytes()))
		}
		// The process never ran: missing binary, bad permissions, dead
		// context. Nothing downstream can recover from that.
		return nil, fmt.Errorf("%w: starting %s: %v", verifier.ErrCollaboratorUnavailable, bin, err)
	}
	return stdout.Bytes(), nil
}

// ShowSolido fetches and decodes the current on-chain state account.
func (c *Client) ShowSolido(ctx context.Context) (*State, error) {
	out, err := c.run(ctx, c.bin, "--config", c.configPath, "--output", "json", "show-solido")
	if err != nil {
		return nil, fmt.Errorf("show-solido: %w", err)
	}
	var state State
	if err := json.Unmarshal(out, &state); err != nil {
		return nil, fmt.Errorf("parsing show-solido output: %w", err)
	}
	return &state, nil
}

// ShowTransaction fetches and decodes one proposed multisig transaction. The
// raw CLI output is kept on the returned value.
func (c *Client) ShowTransaction(ctx context.Context, address string) (*Transaction, error) {
	if err := validation.ValidateAccountAddress(address); err != nil {
		return nil, err
	}
	out, err := c.run(ctx, c.bin,
		"--config", c.configPath,
		"--output", "json",
		"multisig", "show-transaction",
		"--transaction-address", address,
	)
	if err != nil {
		return nil, fmt.Errorf("show-transaction %s: %w", address, err)
	}
	var tx Transaction
	if err := json.Unmarshal(out, &tx); err != nil {
		return nil, fmt.Errorf("parsing show-transaction output for %s: %w", address, err)
	}
	tx.Raw = bytes.TrimSpace(out)
	return &tx, nil
}

// DecodeTransaction implements verifier.Decoder.
func (c *Client) DecodeTransaction(ctx context.Context, address string) (verifier.Instruction, error) {
	tx, err := c.ShowTransaction(ctx, address)
	if err != nil {
		return nil, err
	}
	return tx.Instruction(), nil
}

// Version reports the binary's version as printed by `solido --version`.
func (c *Client) Version(ctx context.Context) (string, error) {
	out, err := c.run(ctx, c.bin, "--version")
	if err != nil {
		return "", fmt.Errorf("version: %w", err)
	}
	return parseVersionOutput(out)
}

// parseVersionOutput extracts the version from output like "solido 1.3.6".
func parseVersionOutput(out []byte) (string, error) {
	fields := strings.Fields(string(out))
	if len(fields) == 0 {
		return "", fmt.Errorf("empty version output")
	}
	version := fields[len(fields)-1]
	if err := validation.ValidateVersion(version); err != nil {
		return "", fmt.Errorf("unexpected version output %q: %w", strings.TrimSpace(string(out)), err)
	}
	return validation.NormalizeVersion(version), nil
}

// RequireMajor fails when the binary does not report the expected major
// version. Running a v1 check through a v2 binary decodes garbage, so this
// runs before any on-chain call.
func (c *Client) RequireMajor(ctx context.Context, major string) error {
	version, err := c.Version(ctx)
	if err != nil {
		return err
	}
	if got := validation.VersionMajor(version); got != major {
		return fmt.Errorf("%s reports version %s, want major %s", c.bin, version, major)
	}
	return nil
}
