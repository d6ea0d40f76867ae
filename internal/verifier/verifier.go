package verifier

import "strings"

// Verifier checks proposed transactions for one verification run. It owns
// all mutable run state: the phase derived from the opening snapshot, the
// single-use vote account registry and the transition order history. Build
// a fresh Verifier per run; the zero value is not usable.
type Verifier struct {
	cfg        ExpectedConfig
	phase      Phase
	legacy     AllowList
	newAllowed AllowList
	registry   *VoteAccountRegistry
	order      *OrderTracker
}

// Option configures a Verifier.
type Option func(*Verifier)

// ConsumeOnSuccess makes the vote account registry record only addresses
// whose allow-list check passed. See VoteAccountRegistry.
func ConsumeOnSuccess() Option {
	return func(v *Verifier) {
		v.registry.ConsumeOnSuccess()
	}
}

// New builds a Verifier for one run. The snapshot fixes the phase and the
// legacy allow-list for the whole run; the new-validator allow-list comes
// from the reference config.
func New(cfg ExpectedConfig, snap Snapshot, opts ...Option) *Verifier {
	phase, activeAccounts := Classify(snap)
	v := &Verifier{
		cfg:        cfg,
		phase:      phase,
		legacy:     NewAllowList(activeAccounts),
		newAllowed: NewAllowList(cfg.NewValidators),
		registry:   NewVoteAccountRegistry(),
		order:      NewOrderTracker(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Phase returns the migration phase fixed at construction.
func (v *Verifier) Phase() Phase {
	return v.phase
}

// Verify checks one decoded transaction and returns its field-by-field
// verdict. A failing field never aborts anything: every check in the
// instruction's list is evaluated so the report stays complete.
func (v *Verifier) Verify(rec TransactionRecord) TransactionVerdict {
	var fields []FieldVerdict

	switch inst := rec.Instruction.(type) {
	case DeactivateValidator:
		fields = append(fields,
			v.phaseField(PhaseDeactivateValidators),
			equalField("solido_instance", inst.SolidoInstance, v.cfg.SolidoInstance),
			equalField("manager", inst.Manager, v.cfg.Manager),
			v.voteAccountField(inst.VoteAccount, v.legacy),
		)
		return newTransactionVerdict(rec.Address, "DeactivateValidator", fields)

	case AddValidator:
		fields = append(fields,
			v.phaseField(PhaseAddValidators),
			equalField("solido_instance", inst.SolidoInstance, v.cfg.SolidoInstance),
			equalField("manager", inst.Manager, v.cfg.Manager),
			v.voteAccountField(inst.VoteAccount, v.newAllowed),
		)
		return newTransactionVerdict(rec.Address, "AddValidator", fields)

	case MigrateStateToV2:
		prior := v.order.History()
		fields = append(fields,
			orderField("MigrateStateToV2", prior, v.order.ProposeMigration()),
			v.phaseField(PhaseUpgradeProgram),
			equalField("solido_instance", inst.SolidoInstance, v.cfg.SolidoInstance),
			equalField("manager", inst.Manager, v.cfg.Manager),
			equalField("validator_list", inst.ValidatorList, v.cfg.ValidatorList),
			equalField("maintainer_list", inst.MaintainerList, v.cfg.MaintainerList),
			equalField("developer_account", inst.DeveloperAccount, v.cfg.DeveloperAccount),
			equalField("max_maintainers", inst.MaxMaintainers, v.cfg.MaxMaintainers),
			equalField("max_validators", inst.MaxValidators, v.cfg.MaxValidators),
			equalField("max_commission_percentage", inst.MaxCommissionPercentage, v.cfg.MaxCommissionPercentage),
			equalField("treasury_fee", inst.RewardDistribution.TreasuryFee, v.cfg.RewardDistribution.TreasuryFee),
			equalField("developer_fee", inst.RewardDistribution.DeveloperFee, v.cfg.RewardDistribution.DeveloperFee),
			equalField("st_sol_appreciation", inst.RewardDistribution.StSolAppreciation, v.cfg.RewardDistribution.StSolAppreciation),
		)
		return newTransactionVerdict(rec.Address, "MigrateStateToV2", fields)

	case BpfLoaderUpgrade:
		prior := v.order.History()
		fields = append(fields,
			orderField("BpfLoaderUpgrade", prior, v.order.ProposeUpgrade()),
			v.phaseField(PhaseUpgradeProgram),
			equalField("program_to_upgrade", inst.ProgramToUpgrade, v.cfg.ProgramToUpgrade),
			equalField("buffer_address", inst.BufferAddress, v.cfg.BufferAddress),
		)
		return newTransactionVerdict(rec.Address, "BpfLoaderUpgrade", fields)

	default:
		fields = append(fields, FieldVerdict{Name: "unknown instruction"})
		return newTransactionVerdict(rec.Address, "Unrecognized", fields)
	}
}

// phaseField gates an instruction on the phase it is legal in. Expected
// carries the required phase label; the check compares phase kinds, so an
// Unknown phase fails every gate.
func (v *Verifier) phaseField(want PhaseKind) FieldVerdict {
	return FieldVerdict{
		Name:     "state",
		Expected: Phase{Kind: want}.String(),
		Actual:   v.phase.String(),
		Pass:     v.phase.Kind == want,
	}
}

// voteAccountField runs the single-use allow-list check for one vote account.
func (v *Verifier) voteAccountField(addr string, allowed AllowList) FieldVerdict {
	return FieldVerdict{
		Name:   "validator_vote_account",
		Actual: addr,
		Pass:   v.registry.CheckAndConsume(addr, allowed),
	}
}

// orderField records the outcome of a transition-order proposal. Expected
// carries the proposed transition kind; Actual the history it was judged
// against.
func orderField(kind string, prior []string, legal bool) FieldVerdict {
	return FieldVerdict{
		Name:     "order",
		Expected: kind,
		Actual:   strings.Join(prior, " "),
		Pass:     legal,
	}
}
