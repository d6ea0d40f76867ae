package verifier

// AllowList is a fixed set of vote account addresses.
type AllowList map[string]struct{}

// NewAllowList builds an AllowList from a slice of addresses.
func NewAllowList(addrs []string) AllowList {
	s := make(AllowList, len(addrs))
	for _, a := range addrs {
		s[a] = struct{}{}
	}
	return s
}

// Contains reports set membership.
func (s AllowList) Contains(addr string) bool {
	_, ok := s[addr]
	return ok
}

// VoteAccountRegistry enforces at-most-once use of any vote account across a
// whole verification run. The seen set is shared between the deactivation
// and addition checks: an address consumed by one can never be consumed by
// the other, even when it is a member of both allow-lists.
//
// By default an address counts as used from its first check onward even if
// the allow-list test failed, so a mistyped address can never be validly
// claimed later in the run. ConsumeOnSuccess switches to recording only
// addresses that passed.
type VoteAccountRegistry struct {
	seen             map[string]struct{}
	consumeOnSuccess bool
}

// NewVoteAccountRegistry returns an empty registry in the default
// consume-on-check mode.
func NewVoteAccountRegistry() *VoteAccountRegistry {
	return &VoteAccountRegistry{seen: make(map[string]struct{})}
}

// ConsumeOnSuccess makes the registry record only addresses whose allow-list
// check passed.
func (r *VoteAccountRegistry) ConsumeOnSuccess() {
	r.consumeOnSuccess = true
}

// CheckAndConsume reports whether addr is a member of allowed and has not
// been used before in this run.
func (r *VoteAccountRegistry) CheckAndConsume(addr string, allowed AllowList) bool {
	if _, used := r.seen[addr]; used {
		return false
	}
	ok := allowed.Contains(addr)
	if ok || !r.consumeOnSuccess {
		r.seen[addr] = struct{}{}
	}
	return ok
}
