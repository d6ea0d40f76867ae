// Package verifier contains the business logic for checking proposed
// multisig transactions against the reference migration parameters.
package verifier

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/lidofinance/solido-verify/internal/validation"
)

// RewardShares is the percentage split of staking rewards. The three
// shares must sum to 100.
type RewardShares struct {
	TreasuryFee       int `json:"treasury_fee" toml:"treasury_fee"`
	DeveloperFee      int `json:"developer_fee" toml:"developer_fee"`
	StSolAppreciation int `json:"st_sol_appreciation" toml:"st_sol_appreciation"`
}

// ExpectedConfig holds the reference values every proposed transaction is
// compared against. It is loaded once and read-only for the whole run.
type ExpectedConfig struct {
	SolidoInstance          string       `json:"solido_instance" toml:"solido_instance"`
	ProgramToUpgrade        string       `json:"program_to_upgrade" toml:"program_to_upgrade"`
	Manager                 string       `json:"manager" toml:"manager"`
	BufferAddress           string       `json:"buffer_address" toml:"buffer_address"`
	ValidatorList           string       `json:"validator_list" toml:"validator_list"`
	MaintainerList          string       `json:"maintainer_list" toml:"maintainer_list"`
	DeveloperAccount        string       `json:"developer_account" toml:"developer_account"`
	RewardDistribution      RewardShares `json:"reward_distribution" toml:"reward_distribution"`
	MaxValidators           int          `json:"max_validators" toml:"max_validators"`
	MaxMaintainers          int          `json:"max_maintainers" toml:"max_maintainers"`
	MaxCommissionPercentage int          `json:"max_commission_percentage" toml:"max_commission_percentage"`

	// NewValidators is the allow-list of vote accounts that may be added
	// once the state migration has completed.
	NewValidators []string `json:"new_validators" toml:"new_validators"`
}

// Mainnet returns the published reference values for the mainnet migration.
func Mainnet() ExpectedConfig {
	return ExpectedConfig{
		SolidoInstance:   "49Yi1TKkNyYjPAFdR9LBvoHcUjuPX4Df5T5yv39w2XTn",
		ProgramToUpgrade: "CrX7kMhLC3cSsXJdT7JDgqrRVWGnUpX3gfEfxxU2NVLi",
		Manager:          "GQ3QPrB1RHPRr4Reen772WrMZkHcFM4DL5q44x1BBTFm",
		BufferAddress:    "46Kdub5aehm8RpFtSvnaTWxYR2WMCgAkma7fj61vaRiT",
		ValidatorList:    "GL9kqRNUTUosW3RsDoXHCuXUZn73SgQQmBvtp1ng2co4",
		MaintainerList:   "5dvtr16i34hwXuCtTNHXXJ5ojeidVPXbceN9pXxrE8bn",
		DeveloperAccount: "5Y5LVTXbtMYsibjp9uQMmCyZbtSru8zktuxGPV9eHu3m",
		RewardDistribution: RewardShares{
			TreasuryFee:       4,
			DeveloperFee:      1,
			StSolAppreciation: 95,
		},
		MaxValidators:           6700,
		MaxMaintainers:          5000,
		MaxCommissionPercentage: 5,
		NewValidators: []string{
			"9GJmEHGom9eWo4np4L5vC6b6ri1Df2xN8KFoWixvD1Bs",
			"DdCNGDpP7qMgoAy6paFzhhak2EeyCZcgjH7ak5u5v28m",
			"2NxEEbhqqj1Qptq5LXLbDTP5tLa9f7PqkU8zNgxbGU9P",
			"4PsiLMyoUQ7QRn1FFiFCvej4hsUTFzfvJnyN4bj1tmSN",
			"8jxSHbS4qAnh5yueFp4D9ABXubKqMwXqF3HtdzQGuphp",
			"BxFf75Vtzro2Hy3coFHKxFMZo5au8W7J8BmLC3gCMotU",
			"2vZd7mdsiDiXvGUq1ASNfkYYjMJ83yYXKHA3zfmKHc4g",
			"FCvNkHa4U3yh7AXWGGL2jWLWiSRouR8EtzY5WVTHKTHa",
			"7DrGM5rSgw8iCnXNxgjfmy4GFy6PuKu3gsujT5TjcDaA",
			"4MpRU9fDDSQNNTeb4v5DPZZTKupYancGksH679AKLBnt",
			"G11K4toVD1rk4ri7eziJyYENZTXb8h7q59gzaoE3BCHX",
			"BH7asDZbKkTmT3UWiNfmMVRgQEEpXoVThGPmQfgWwDhg",
			"7PmWxxiTneGteGxEYvzj5pGDVMQ4nuN9DfUypEXmaA8o",
			"EogKVYgic8LKAuV1kR9nRqJaS5zpwCvSMfqoehzmAMpK",
			"6F5xdRXh2W3B2vhte12VG79JVUkUSLYrHydGX1SAadfZ",
			"81LF3sFyx9aANNhZPTyPEULKHV1mTqd3qho7ZLQghNJL",
			"9J7Hvujf8LZiKBaXGmA1XwYszfVenieTdta1imwoC3QD",
			"Fw34MoMfRrAUPePPbfKAH9eQDizYodVXWV4fXSdjJwMa",
			"C5Tof5G3wNY1qg2z9HMfVrpQmvjUiaGj5SuYTYWeWWsm",
			"SFund7s2YPS7iCu7W2TobbuQEpVEAv9ZU7zHKiN1Gow",
		},
	}
}

// LoadExpected reads an expected-values file in TOML format. Missing file is
// an error; the caller decides whether to fall back to Mainnet.
func LoadExpected(path string) (ExpectedConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ExpectedConfig{}, err
	}

	var cfg ExpectedConfig
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return ExpectedConfig{}, fmt.Errorf("parsing TOML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return ExpectedConfig{}, fmt.Errorf("invalid expected config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that every reference address is a well-formed account
// address and that the reward shares sum to 100 percent.
func (c ExpectedConfig) Validate() error {
	addresses := map[string]string{
		"solido_instance":    c.SolidoInstance,
		"program_to_upgrade": c.ProgramToUpgrade,
		"manager":            c.Manager,
		"buffer_address":     c.BufferAddress,
		"validator_list":     c.ValidatorList,
		"maintainer_list":    c.MaintainerList,
		"developer_account":  c.DeveloperAccount,
	}
	for name, addr := range addresses {
		if err := validation.ValidateAccountAddress(addr); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	for _, addr := range c.NewValidators {
		if err := validation.ValidateAccountAddress(addr); err != nil {
			return fmt.Errorf("new_validators entry %q: %w", addr, err)
		}
	}

	if err := validation.ValidateRewardShares(c.RewardDistribution.TreasuryFee, c.RewardDistribution.DeveloperFee, c.RewardDistribution.StSolAppreciation); err != nil {
		return err
	}
	if err := validation.ValidateCommission(c.MaxCommissionPercentage); err != nil {
		return err
	}
	if c.MaxValidators <= 0 {
		return errors.New("max_validators must be positive")
	}
	if c.MaxMaintainers <= 0 {
		return errors.New("max_maintainers must be positive")
	}
	return nil
}
