// Package validation provides input validation for solido-verify.
package validation

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mr-tron/base58"
	"golang.org/x/mod/semver"
)

// Solana account addresses are base58-encoded 32-byte public keys.
const accountAddressLen = 32

// ValidateAccountAddress validates a base58 account address.
func ValidateAccountAddress(addr string) error {
	if addr == "" {
		return errors.New("address cannot be empty")
	}
	raw, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("invalid base58 address: %v", err)
	}
	if len(raw) != accountAddressLen {
		return fmt.Errorf("invalid address length: decoded to %d bytes, want %d", len(raw), accountAddressLen)
	}
	return nil
}

// ValidateRewardShares checks that the three reward shares are non-negative
// percentages summing to exactly 100.
func ValidateRewardShares(treasury, developer, appreciation int) error {
	if treasury < 0 || developer < 0 || appreciation < 0 {
		return errors.New("reward shares must be non-negative")
	}
	if sum := treasury + developer + appreciation; sum != 100 {
		return fmt.Errorf("reward shares must sum to 100, got %d", sum)
	}
	return nil
}

// ValidateCommission checks a commission percentage cap.
func ValidateCommission(pct int) error {
	if pct < 0 || pct > 100 {
		return fmt.Errorf("commission percentage out of range: %d", pct)
	}
	return nil
}

// ReadTransactionAddresses reads a transactions file: one address per line,
// blank lines skipped. Every address must be well formed; the position of the
// first bad line is reported.
func ReadTransactionAddresses(r io.Reader) ([]string, error) {
	var addresses []string
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := ValidateAccountAddress(line); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		addresses = append(addresses, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading transactions: %w", err)
	}
	if len(addresses) == 0 {
		return nil, errors.New("transactions file contains no addresses")
	}
	return addresses, nil
}

// NormalizeVersion normalizes a version string (strips leading 'v')
func NormalizeVersion(v string) string {
	return strings.TrimPrefix(v, "v")
}

// ValidateVersion validates a semantic version string as reported by the
// solido CLI (`solido --version` prints e.g. "solido 1.3.6").
func ValidateVersion(v string) error {
	normalized := NormalizeVersion(v)
	if normalized == "" {
		return errors.New("version cannot be empty")
	}
	if !semver.IsValid("v" + normalized) {
		return errors.New("invalid semver version: must be in format X.Y.Z")
	}
	return nil
}

// VersionMajor returns the major component of a version string ("1.3.6" -> "1").
func VersionMajor(v string) string {
	return strings.TrimPrefix(semver.Major("v"+NormalizeVersion(v)), "v")
}

// CompareVersions compares two versions
// Returns -1 if v1 < v2, 0 if v1 == v2, 1 if v1 > v2
func CompareVersions(v1, v2 string) int {
	n1 := "v" + NormalizeVersion(v1)
	n2 := "v" + NormalizeVersion(v2)
	return semver.Compare(n1, n2)
}
