package verifier

import "fmt"

// LegacyValidatorCount is the size of the full pre-migration validator set.
// Seeing exactly this many active validators on a v1 state account means the
// deactivation phase has not started yet.
const LegacyValidatorCount = 21

// PhaseKind enumerates the migration phases.
type PhaseKind int

const (
	PhaseUnknown PhaseKind = iota
	PhaseDeactivateValidators
	PhaseUpgradeProgram
	PhaseAddValidators
)

// Phase is the migration phase derived from a state snapshot, together with
// the raw counters that produced it. It is recomputed from a fresh snapshot
// every run and never persisted.
type Phase struct {
	Kind        PhaseKind `json:"kind"`
	Version     int       `json:"version"`
	ActiveCount int       `json:"active_count"`
}

// String renders the phase label shown to operators.
func (p Phase) String() string {
	switch p.Kind {
	case PhaseDeactivateValidators:
		return "Deactivate validators"
	case PhaseUpgradeProgram:
		return "Upgrade program"
	case PhaseAddValidators:
		return "Add validators"
	default:
		return fmt.Sprintf("Unknown state - solido version = %d active validators count = %d", p.Version, p.ActiveCount)
	}
}

// ValidatorEntry is one validator on the state account.
type ValidatorEntry struct {
	VoteAccount string `json:"vote_account"`
	Active      bool   `json:"active"`
}

// Snapshot is the observable on-chain state of the staking program.
type Snapshot struct {
	Version    int              `json:"version"`
	Validators []ValidatorEntry `json:"validators"`
}

// Classify derives the migration phase from a snapshot. The second return
// value lists the currently active vote accounts; during the deactivation
// phase they form the legacy allow-list. Ambiguous counter combinations
// (for example a partially deactivated set) deliberately collapse to
// PhaseUnknown, which fails every phase-gated check instead of guessing.
func Classify(snap Snapshot) (Phase, []string) {
	var active []string
	for _, v := range snap.Validators {
		if v.Active {
			active = append(active, v.VoteAccount)
		}
	}

	p := Phase{Version: snap.Version, ActiveCount: len(active)}
	switch {
	case snap.Version == 0 && len(active) == LegacyValidatorCount:
		p.Kind = PhaseDeactivateValidators
	case snap.Version == 0 && len(active) == 0:
		p.Kind = PhaseUpgradeProgram
	case snap.Version == 1 && len(active) == 0:
		p.Kind = PhaseAddValidators
	}
	return p, active
}
