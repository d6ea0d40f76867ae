package verifier

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() ExpectedConfig {
	return ExpectedConfig{
		SolidoInstance:   "instance-1",
		ProgramToUpgrade: "program-1",
		Manager:          "manager-1",
		BufferAddress:    "buffer-1",
		ValidatorList:    "validator-list-1",
		MaintainerList:   "maintainer-list-1",
		DeveloperAccount: "developer-1",
		RewardDistribution: RewardShares{
			TreasuryFee:       4,
			DeveloperFee:      1,
			StSolAppreciation: 95,
		},
		MaxValidators:           6700,
		MaxMaintainers:          5000,
		MaxCommissionPercentage: 5,
		NewValidators:           []string{"new-vote-1", "new-vote-2"},
	}
}

// deactivateSnapshot reports the full legacy set still active on a v1 state.
func deactivateSnapshot() Snapshot {
	snap := Snapshot{Version: 0}
	for i := 1; i <= LegacyValidatorCount; i++ {
		snap.Validators = append(snap.Validators, ValidatorEntry{
			VoteAccount: fmt.Sprintf("legacy-vote-%d", i),
			Active:      true,
		})
	}
	return snap
}

func upgradeSnapshot() Snapshot {
	return Snapshot{Version: 0}
}

func addSnapshot() Snapshot {
	return Snapshot{Version: 1}
}

func goodMigrate(cfg ExpectedConfig) MigrateStateToV2 {
	return MigrateStateToV2{
		SolidoInstance:          cfg.SolidoInstance,
		Manager:                 cfg.Manager,
		ValidatorList:           cfg.ValidatorList,
		MaintainerList:          cfg.MaintainerList,
		DeveloperAccount:        cfg.DeveloperAccount,
		MaxMaintainers:          cfg.MaxMaintainers,
		MaxValidators:           cfg.MaxValidators,
		MaxCommissionPercentage: cfg.MaxCommissionPercentage,
		RewardDistribution:      cfg.RewardDistribution,
	}
}

func fieldByName(t *testing.T, v TransactionVerdict, name string) FieldVerdict {
	t.Helper()
	for _, f := range v.Fields {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("no field %q in verdict %+v", name, v)
	return FieldVerdict{}
}

func fieldNames(v TransactionVerdict) []string {
	names := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		names[i] = f.Name
	}
	return names
}

func TestVerify_DeactivateValidator_AllFieldsPass(t *testing.T) {
	v := New(testConfig(), deactivateSnapshot())

	verdict := v.Verify(TransactionRecord{
		Address: "tx-1",
		Instruction: DeactivateValidator{
			SolidoInstance: "instance-1",
			Manager:        "manager-1",
			VoteAccount:    "legacy-vote-3",
		},
	})

	assert.True(t, verdict.Pass)
	assert.Equal(t, "DeactivateValidator", verdict.Instruction)
	assert.Equal(t, []string{"state", "solido_instance", "manager", "validator_vote_account"}, fieldNames(verdict))
	for _, f := range verdict.Fields {
		assert.True(t, f.Pass, "field %s", f.Name)
	}
}

func TestVerify_DeactivateValidator_WrongManager(t *testing.T) {
	v := New(testConfig(), deactivateSnapshot())

	verdict := v.Verify(TransactionRecord{
		Address: "tx-1",
		Instruction: DeactivateValidator{
			SolidoInstance: "instance-1",
			Manager:        "manager-2",
			VoteAccount:    "legacy-vote-3",
		},
	})

	assert.False(t, verdict.Pass)
	manager := fieldByName(t, verdict, "manager")
	assert.False(t, manager.Pass)
	assert.Equal(t, "manager-1", manager.Expected)
	assert.Equal(t, "manager-2", manager.Actual)
	// Only the mismatched field fails.
	assert.True(t, fieldByName(t, verdict, "state").Pass)
	assert.True(t, fieldByName(t, verdict, "solido_instance").Pass)
	assert.True(t, fieldByName(t, verdict, "validator_vote_account").Pass)
}

func TestVerify_DeactivateValidator_WrongPhase(t *testing.T) {
	// The snapshot says the upgrade phase is current, so a deactivation
	// fails its phase gate even with perfect literal fields. The legacy
	// allow-list is empty in that phase, so the vote account fails too.
	v := New(testConfig(), upgradeSnapshot())

	verdict := v.Verify(TransactionRecord{
		Address: "tx-1",
		Instruction: DeactivateValidator{
			SolidoInstance: "instance-1",
			Manager:        "manager-1",
			VoteAccount:    "legacy-vote-3",
		},
	})

	assert.False(t, verdict.Pass)
	state := fieldByName(t, verdict, "state")
	assert.False(t, state.Pass)
	assert.Equal(t, "Deactivate validators", state.Expected)
	assert.Equal(t, "Upgrade program", state.Actual)
	assert.True(t, fieldByName(t, verdict, "manager").Pass)
	assert.False(t, fieldByName(t, verdict, "validator_vote_account").Pass)
}

func TestVerify_DeactivateValidator_ReusedVoteAccount(t *testing.T) {
	v := New(testConfig(), deactivateSnapshot())
	rec := TransactionRecord{
		Address: "tx-1",
		Instruction: DeactivateValidator{
			SolidoInstance: "instance-1",
			Manager:        "manager-1",
			VoteAccount:    "legacy-vote-3",
		},
	}

	require.True(t, v.Verify(rec).Pass)

	second := v.Verify(rec)
	assert.False(t, second.Pass)
	assert.False(t, fieldByName(t, second, "validator_vote_account").Pass)
}

func TestVerify_AddValidator_AllFieldsPass(t *testing.T) {
	v := New(testConfig(), addSnapshot())

	verdict := v.Verify(TransactionRecord{
		Address: "tx-1",
		Instruction: AddValidator{
			SolidoInstance: "instance-1",
			Manager:        "manager-1",
			VoteAccount:    "new-vote-1",
		},
	})

	assert.True(t, verdict.Pass)
	assert.Equal(t, "AddValidator", verdict.Instruction)
	assert.Equal(t, []string{"state", "solido_instance", "manager", "validator_vote_account"}, fieldNames(verdict))
}

func TestVerify_AddValidator_VoteAccountNotAllowed(t *testing.T) {
	v := New(testConfig(), addSnapshot())

	verdict := v.Verify(TransactionRecord{
		Address: "tx-1",
		Instruction: AddValidator{
			SolidoInstance: "instance-1",
			Manager:        "manager-1",
			VoteAccount:    "rogue-vote",
		},
	})

	assert.False(t, verdict.Pass)
	vote := fieldByName(t, verdict, "validator_vote_account")
	assert.False(t, vote.Pass)
	assert.Equal(t, "rogue-vote", vote.Actual)
}

func TestVerify_CrossInstructionReuse(t *testing.T) {
	// An address present in both allow-lists can still only be consumed
	// once per run, whichever instruction kind claims it first.
	cfg := testConfig()
	snap := deactivateSnapshot()
	snap.Validators[0].VoteAccount = "shared-vote"
	cfg.NewValidators = append(cfg.NewValidators, "shared-vote")
	v := New(cfg, snap)

	first := v.Verify(TransactionRecord{
		Address: "tx-1",
		Instruction: DeactivateValidator{
			SolidoInstance: "instance-1",
			Manager:        "manager-1",
			VoteAccount:    "shared-vote",
		},
	})
	require.True(t, fieldByName(t, first, "validator_vote_account").Pass)

	second := v.Verify(TransactionRecord{
		Address: "tx-2",
		Instruction: AddValidator{
			SolidoInstance: "instance-1",
			Manager:        "manager-1",
			VoteAccount:    "shared-vote",
		},
	})
	assert.False(t, fieldByName(t, second, "validator_vote_account").Pass)
}

func TestVerify_BpfLoaderUpgrade_FirstLegal(t *testing.T) {
	v := New(testConfig(), upgradeSnapshot())

	verdict := v.Verify(TransactionRecord{
		Address: "tx-1",
		Instruction: BpfLoaderUpgrade{
			ProgramToUpgrade: "program-1",
			BufferAddress:    "buffer-1",
		},
	})

	assert.True(t, verdict.Pass)
	assert.Equal(t, "BpfLoaderUpgrade", verdict.Instruction)
	assert.Equal(t, []string{"order", "state", "program_to_upgrade", "buffer_address"}, fieldNames(verdict))
}

func TestVerify_BpfLoaderUpgrade_DuplicateIllegal(t *testing.T) {
	v := New(testConfig(), upgradeSnapshot())
	rec := TransactionRecord{
		Address: "tx-1",
		Instruction: BpfLoaderUpgrade{
			ProgramToUpgrade: "program-1",
			BufferAddress:    "buffer-1",
		},
	}

	require.True(t, v.Verify(rec).Pass)

	second := v.Verify(rec)
	assert.False(t, second.Pass)
	order := fieldByName(t, second, "order")
	assert.False(t, order.Pass)
	assert.Equal(t, "BpfLoaderUpgrade", order.Actual, "judged against the prior history")
	// The literal fields are still checked for the diagnostic report.
	assert.True(t, fieldByName(t, second, "program_to_upgrade").Pass)
}

func TestVerify_MigrateStateToV2_LegalAfterUpgrade(t *testing.T) {
	cfg := testConfig()
	v := New(cfg, upgradeSnapshot())

	require.True(t, v.Verify(TransactionRecord{
		Address: "tx-1",
		Instruction: BpfLoaderUpgrade{
			ProgramToUpgrade: "program-1",
			BufferAddress:    "buffer-1",
		},
	}).Pass)

	verdict := v.Verify(TransactionRecord{
		Address:     "tx-2",
		Instruction: goodMigrate(cfg),
	})

	assert.True(t, verdict.Pass)
	assert.Equal(t, []string{
		"order", "state", "solido_instance", "manager",
		"validator_list", "maintainer_list", "developer_account",
		"max_maintainers", "max_validators", "max_commission_percentage",
		"treasury_fee", "developer_fee", "st_sol_appreciation",
	}, fieldNames(verdict))
}

func TestVerify_MigrateStateToV2_WithoutUpgradeIllegal(t *testing.T) {
	cfg := testConfig()
	v := New(cfg, upgradeSnapshot())

	verdict := v.Verify(TransactionRecord{
		Address:     "tx-1",
		Instruction: goodMigrate(cfg),
	})

	assert.False(t, verdict.Pass)
	assert.False(t, fieldByName(t, verdict, "order").Pass)
	assert.True(t, fieldByName(t, verdict, "state").Pass)
	assert.True(t, fieldByName(t, verdict, "solido_instance").Pass)
}

func TestVerify_MigrateStateToV2_FieldMismatches(t *testing.T) {
	cfg := testConfig()
	v := New(cfg, upgradeSnapshot())
	require.True(t, v.Verify(TransactionRecord{
		Address: "tx-1",
		Instruction: BpfLoaderUpgrade{
			ProgramToUpgrade: "program-1",
			BufferAddress:    "buffer-1",
		},
	}).Pass)

	migrate := goodMigrate(cfg)
	migrate.MaxValidators = 9999
	migrate.RewardDistribution.TreasuryFee = 40

	verdict := v.Verify(TransactionRecord{Address: "tx-2", Instruction: migrate})

	assert.False(t, verdict.Pass)
	maxValidators := fieldByName(t, verdict, "max_validators")
	assert.False(t, maxValidators.Pass)
	assert.Equal(t, "6700", maxValidators.Expected)
	assert.Equal(t, "9999", maxValidators.Actual)
	assert.False(t, fieldByName(t, verdict, "treasury_fee").Pass)
	// Everything else still passes.
	assert.True(t, fieldByName(t, verdict, "manager").Pass)
	assert.True(t, fieldByName(t, verdict, "developer_fee").Pass)
}

func TestVerify_Unrecognized(t *testing.T) {
	v := New(testConfig(), deactivateSnapshot())

	verdict := v.Verify(TransactionRecord{Address: "tx-1", Instruction: Unrecognized{}})

	assert.False(t, verdict.Pass)
	assert.Equal(t, "Unrecognized", verdict.Instruction)
	require.Len(t, verdict.Fields, 1)
	assert.Equal(t, "unknown instruction", verdict.Fields[0].Name)
	assert.False(t, verdict.Fields[0].Pass)
}

func TestVerify_UnknownPhaseFailsEveryGate(t *testing.T) {
	// Version 2 with 3 active validators matches no phase; the gate fails
	// but the remaining fields are still evaluated for diagnostics.
	v := New(testConfig(), snapshotWith(2, 3, 0))

	verdict := v.Verify(TransactionRecord{
		Address: "tx-1",
		Instruction: DeactivateValidator{
			SolidoInstance: "instance-1",
			Manager:        "manager-1",
			VoteAccount:    "legacy-vote-3",
		},
	})

	assert.False(t, verdict.Pass)
	state := fieldByName(t, verdict, "state")
	assert.False(t, state.Pass)
	assert.Equal(t, "Unknown state - solido version = 2 active validators count = 3", state.Actual)
	assert.Len(t, verdict.Fields, 4)
	assert.True(t, fieldByName(t, verdict, "solido_instance").Pass)
}

func TestVerify_ConsumeOnSuccessAllowsRetry(t *testing.T) {
	// Default mode burns an address on a failed check; the corrected mode
	// leaves it claimable by the instruction kind it belongs to.
	cfg := testConfig()

	for _, tt := range []struct {
		name      string
		opts      []Option
		retryPass bool
	}{
		{"default burns on failure", nil, false},
		{"consume on success retries", []Option{ConsumeOnSuccess()}, true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			v := New(cfg, deactivateSnapshot(), tt.opts...)

			// new-vote-1 is not a legacy account, so this check fails.
			first := v.Verify(TransactionRecord{
				Address: "tx-1",
				Instruction: DeactivateValidator{
					SolidoInstance: "instance-1",
					Manager:        "manager-1",
					VoteAccount:    "new-vote-1",
				},
			})
			require.False(t, fieldByName(t, first, "validator_vote_account").Pass)

			// The phase gate fails here either way; only the vote account
			// field distinguishes the two modes.
			second := v.Verify(TransactionRecord{
				Address: "tx-2",
				Instruction: AddValidator{
					SolidoInstance: "instance-1",
					Manager:        "manager-1",
					VoteAccount:    "new-vote-1",
				},
			})
			assert.Equal(t, tt.retryPass, fieldByName(t, second, "validator_vote_account").Pass)
		})
	}
}

func TestVerifier_Phase(t *testing.T) {
	v := New(testConfig(), addSnapshot())
	assert.Equal(t, PhaseAddValidators, v.Phase().Kind)
}
