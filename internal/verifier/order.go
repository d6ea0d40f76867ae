package verifier

// OrderTracker enforces the relative order of the two transition
// transactions: the bytecode upgrade must happen exactly once, and the state
// migration is only legal directly after it.
//
// An illegal proposal never mutates the history; it only yields a failed
// order check, so a duplicate upgrade transaction cannot corrupt the
// tracker for the transactions that follow.
type OrderTracker struct {
	history []string
}

// NewOrderTracker returns a tracker with empty history.
func NewOrderTracker() *OrderTracker {
	return &OrderTracker{}
}

// ProposeUpgrade reports whether a bytecode upgrade is legal now: only when
// no transition has been observed yet. A legal upgrade is appended to the
// history.
func (t *OrderTracker) ProposeUpgrade() bool {
	if len(t.history) != 0 {
		return false
	}
	t.history = append(t.history, "BpfLoaderUpgrade")
	return true
}

// ProposeMigration reports whether the state migration is legal now: only
// when the history is exactly one prior upgrade. The migration is the
// terminal step of the transition and is never recorded itself.
func (t *OrderTracker) ProposeMigration() bool {
	return len(t.history) == 1 && t.history[0] == "BpfLoaderUpgrade"
}

// History returns a copy of the observed transition markers in order.
func (t *OrderTracker) History() []string {
	out := make([]string, len(t.history))
	copy(out, t.history)
	return out
}
