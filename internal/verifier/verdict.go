package verifier

import "fmt"

// FieldVerdict is the outcome of one checked field. Expected is empty for
// checks that are not plain equality (set membership, transition order).
type FieldVerdict struct {
	Name     string `json:"name"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Pass     bool   `json:"pass"`
}

// TransactionVerdict is the ordered field-by-field outcome for one
// transaction. Pass is true only when every field passed.
type TransactionVerdict struct {
	Address     string         `json:"address"`
	Instruction string         `json:"instruction"`
	Fields      []FieldVerdict `json:"fields"`
	Pass        bool           `json:"pass"`
}

// RunSummary tallies a verification run.
type RunSummary struct {
	Passed int `json:"passed"`
	Total  int `json:"total"`
}

// AllPassed reports whether every transaction in the run verified cleanly.
func (s RunSummary) AllPassed() bool {
	return s.Passed == s.Total
}

func (s RunSummary) String() string {
	return fmt.Sprintf("Summary: successfully verified %d from %d transactions", s.Passed, s.Total)
}

// equalField compares a decoded value against its reference value.
func equalField[T comparable](name string, actual, expected T) FieldVerdict {
	return FieldVerdict{
		Name:     name,
		Expected: fmt.Sprint(expected),
		Actual:   fmt.Sprint(actual),
		Pass:     actual == expected,
	}
}

func newTransactionVerdict(address, instruction string, fields []FieldVerdict) TransactionVerdict {
	pass := true
	for _, f := range fields {
		pass = pass && f.Pass
	}
	return TransactionVerdict{
		Address:     address,
		Instruction: instruction,
		Fields:      fields,
		Pass:        pass,
	}
}
