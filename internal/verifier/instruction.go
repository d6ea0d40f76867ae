package verifier

// Instruction is the decoded content of one proposed multisig transaction.
// The set of variants is closed: anything a collaborator cannot map onto one
// of the concrete variants becomes Unrecognized, which always fails
// verification. Dispatch must switch over all variants plus a default arm.
type Instruction interface {
	isInstruction()
}

// DeactivateValidator deactivates one legacy validator ahead of the state
// migration.
type DeactivateValidator struct {
	SolidoInstance string `json:"solido_instance"`
	Manager        string `json:"manager"`
	VoteAccount    string `json:"validator_vote_account"`
}

// AddValidator adds one validator from the new set after the state migration.
type AddValidator struct {
	SolidoInstance string `json:"solido_instance"`
	Manager        string `json:"manager"`
	VoteAccount    string `json:"validator_vote_account"`
}

// MigrateStateToV2 converts the on-chain state account to the v2 schema. It
// is only legal directly after the bytecode upgrade.
type MigrateStateToV2 struct {
	SolidoInstance          string       `json:"solido_instance"`
	Manager                 string       `json:"manager"`
	ValidatorList           string       `json:"validator_list"`
	MaintainerList          string       `json:"maintainer_list"`
	DeveloperAccount        string       `json:"developer_account"`
	MaxMaintainers          int          `json:"max_maintainers"`
	MaxValidators           int          `json:"max_validators"`
	MaxCommissionPercentage int          `json:"max_commission_percentage"`
	RewardDistribution      RewardShares `json:"reward_distribution"`
}

// BpfLoaderUpgrade replaces the program's executable code from a staging
// buffer. It must be the first transition of the upgrade phase.
type BpfLoaderUpgrade struct {
	ProgramToUpgrade string `json:"program_to_upgrade"`
	BufferAddress    string `json:"buffer_address"`
}

// Unrecognized covers decoded content that maps onto no known variant.
type Unrecognized struct{}

func (DeactivateValidator) isInstruction() {}
func (AddValidator) isInstruction()        {}
func (MigrateStateToV2) isInstruction()    {}
func (BpfLoaderUpgrade) isInstruction()    {}
func (Unrecognized) isInstruction()        {}

// TransactionRecord pairs a multisig transaction address with its decoded
// instruction.
type TransactionRecord struct {
	Address     string      `json:"address"`
	Instruction Instruction `json:"-"`
}
