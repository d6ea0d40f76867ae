// Package solido drives the external solido CLI, the only collaborator the
// verifier talks to, and decodes its JSON output.
package solido

import (
	"encoding/json"

	"github.com/lidofinance/solido-verify/internal/verifier"
)

// State is the decoded output of `solido show-solido`.
type State struct {
	Solido Lido `json:"solido"`
}

// Lido is the on-chain state account content.
type Lido struct {
	LidoVersion int           `json:"lido_version"`
	Validators  ValidatorList `json:"validators"`
}

// ValidatorList wraps the validator entries of the state account.
type ValidatorList struct {
	Entries []ValidatorRecord `json:"entries"`
}

// ValidatorRecord is one validator on the state account.
type ValidatorRecord struct {
	Pubkey string         `json:"pubkey"`
	Entry  ValidatorEntry `json:"entry"`
}

// ValidatorEntry carries the per-validator flags.
type ValidatorEntry struct {
	Active bool `json:"active"`
}

// Snapshot flattens the state into the verifier's input form.
func (s *State) Snapshot() verifier.Snapshot {
	snap := verifier.Snapshot{Version: s.Solido.LidoVersion}
	for _, v := range s.Solido.Validators.Entries {
		snap.Validators = append(snap.Validators, verifier.ValidatorEntry{
			VoteAccount: v.Pubkey,
			Active:      v.Entry.Active,
		})
	}
	return snap
}

// Transaction is the decoded output of `solido multisig show-transaction`.
// Raw keeps the exact bytes the CLI produced, for run evidence.
type Transaction struct {
	ParsedInstruction ParsedInstruction `json:"parsed_instruction"`
	DidExecute        bool              `json:"did_execute"`

	Raw json.RawMessage `json:"-"`
}

// ParsedInstruction is the variant envelope of a decoded transaction. The
// instruction payloads reuse the verifier's types; their field tags are the
// CLI's own key names.
type ParsedInstruction struct {
	SolidoInstruction *SolidoInstruction         `json:"SolidoInstruction,omitempty"`
	BpfLoaderUpgrade  *verifier.BpfLoaderUpgrade `json:"BpfLoaderUpgrade,omitempty"`
}

// SolidoInstruction is the envelope of program-specific instructions.
type SolidoInstruction struct {
	DeactivateValidator *verifier.DeactivateValidator `json:"DeactivateValidator,omitempty"`
	AddValidator        *verifier.AddValidator        `json:"AddValidator,omitempty"`
	MigrateStateToV2    *verifier.MigrateStateToV2    `json:"MigrateStateToV2,omitempty"`
}

// Instruction maps the decoded content onto the closed instruction set.
// Absent or unknown variants become Unrecognized, which always fails
// verification.
func (t *Transaction) Instruction() verifier.Instruction {
	p := t.ParsedInstruction
	switch {
	case p.SolidoInstruction != nil:
		s := p.SolidoInstruction
		switch {
		case s.DeactivateValidator != nil:
			return *s.DeactivateValidator
		case s.AddValidator != nil:
			return *s.AddValidator
		case s.MigrateStateToV2 != nil:
			return *s.MigrateStateToV2
		}
	case p.BpfLoaderUpgrade != nil:
		return *p.BpfLoaderUpgrade
	}
	return verifier.Unrecognized{}
}
