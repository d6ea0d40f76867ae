package solido

import (
	"context"
	"fmt"
)

// CheckPhase names the stage of the migration an operator is checking. It
// selects which binary generation reads state and which decodes transactions.
type CheckPhase string

const (
	// PhaseDeactivation covers the proposals that wind down the legacy
	// validator set. State and transactions are both v1.
	PhaseDeactivation CheckPhase = "deactivation"
	// PhaseUpgrade covers the program upgrade and state migration
	// proposals. The state account is still v1 while the proposed
	// transactions target the v2 program.
	PhaseUpgrade CheckPhase = "upgrade"
	// PhaseAdding covers the proposals that onboard the new validator
	// set, after the migration. State and transactions are both v2.
	PhaseAdding CheckPhase = "adding"
)

// ParseCheckPhase converts operator input into a CheckPhase.
func ParseCheckPhase(s string) (CheckPhase, error) {
	switch p := CheckPhase(s); p {
	case PhaseDeactivation, PhaseUpgrade, PhaseAdding:
		return p, nil
	default:
		return "", fmt.Errorf("unknown phase %q: must be one of deactivation, upgrade, adding", s)
	}
}

// Binaries holds the paths of the two CLI generations used across the
// migration.
type Binaries struct {
	V1 string
	V2 string
}

// Clients builds the state-reading and transaction-decoding clients for a
// phase. Both may be the same client.
func (b Binaries) Clients(phase CheckPhase, configPath string) (state, tx *Client, err error) {
	stateBin, txBin, err := b.forPhase(phase)
	if err != nil {
		return nil, nil, err
	}
	state = NewClient(stateBin, configPath)
	if txBin == stateBin {
		return state, state, nil
	}
	return state, NewClient(txBin, configPath), nil
}

func (b Binaries) forPhase(phase CheckPhase) (stateBin, txBin string, err error) {
	switch phase {
	case PhaseDeactivation:
		return b.V1, b.V1, nil
	case PhaseUpgrade:
		return b.V1, b.V2, nil
	case PhaseAdding:
		return b.V2, b.V2, nil
	default:
		return "", "", fmt.Errorf("unknown phase %q", phase)
	}
}

// CheckVersions verifies each distinct client reports the major version of
// its generation: the v1 binary must be a 1.x release and the v2 binary a
// 2.x release.
func CheckVersions(ctx context.Context, phase CheckPhase, state, tx *Client) error {
	stateMajor, txMajor := "1", "1"
	switch phase {
	case PhaseDeactivation:
	case PhaseUpgrade:
		txMajor = "2"
	case PhaseAdding:
		stateMajor, txMajor = "2", "2"
	default:
		return fmt.Errorf("unknown phase %q", phase)
	}
	if err := state.RequireMajor(ctx, stateMajor); err != nil {
		return err
	}
	if tx != state {
		if err := tx.RequireMajor(ctx, txMajor); err != nil {
			return err
		}
	}
	return nil
}
