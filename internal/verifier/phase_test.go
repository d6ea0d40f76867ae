package verifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// snapshotWith builds a snapshot with n active and m inactive validators.
func snapshotWith(version, active, inactive int) Snapshot {
	snap := Snapshot{Version: version}
	for i := 0; i < active; i++ {
		snap.Validators = append(snap.Validators, ValidatorEntry{
			VoteAccount: voteAccount(i),
			Active:      true,
		})
	}
	for i := 0; i < inactive; i++ {
		snap.Validators = append(snap.Validators, ValidatorEntry{
			VoteAccount: voteAccount(1000 + i),
			Active:      false,
		})
	}
	return snap
}

// voteAccount derives a distinct fake address per index.
func voteAccount(i int) string {
	return "Vote" + string(rune('A'+i%26)) + string(rune('A'+(i/26)%26))
}

func TestClassify_DeactivateValidators(t *testing.T) {
	phase, active := Classify(snapshotWith(0, 21, 0))

	assert.Equal(t, PhaseDeactivateValidators, phase.Kind)
	assert.Equal(t, "Deactivate validators", phase.String())
	assert.Len(t, active, 21)
}

func TestClassify_UpgradeProgram(t *testing.T) {
	phase, active := Classify(snapshotWith(0, 0, 21))

	assert.Equal(t, PhaseUpgradeProgram, phase.Kind)
	assert.Equal(t, "Upgrade program", phase.String())
	assert.Empty(t, active)
}

func TestClassify_AddValidators(t *testing.T) {
	phase, active := Classify(snapshotWith(1, 0, 0))

	assert.Equal(t, PhaseAddValidators, phase.Kind)
	assert.Equal(t, "Add validators", phase.String())
	assert.Empty(t, active)
}

func TestClassify_UnknownEmbedsCounters(t *testing.T) {
	phase, _ := Classify(snapshotWith(2, 3, 0))

	assert.Equal(t, PhaseUnknown, phase.Kind)
	assert.Equal(t, "Unknown state - solido version = 2 active validators count = 3", phase.String())
}

func TestClassify_PartialDeactivationIsUnknown(t *testing.T) {
	// 7 of 21 validators still active on a v1 state: the migration is mid
	// flight and no phase-gated check may pass.
	phase, active := Classify(snapshotWith(0, 7, 14))

	assert.Equal(t, PhaseUnknown, phase.Kind)
	assert.Len(t, active, 7)
}

func TestClassify_InactiveValidatorsNotCollected(t *testing.T) {
	snap := Snapshot{
		Version: 0,
		Validators: []ValidatorEntry{
			{VoteAccount: "active-one", Active: true},
			{VoteAccount: "inactive-one", Active: false},
		},
	}

	_, active := Classify(snap)
	assert.Equal(t, []string{"active-one"}, active)
}

func TestClassify_NewValidatorVersionGate(t *testing.T) {
	// A v1 state with the full legacy set active is not a deactivation
	// phase; the version has already moved on.
	phase, _ := Classify(snapshotWith(1, 21, 0))
	assert.Equal(t, PhaseUnknown, phase.Kind)
}
