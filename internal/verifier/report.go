package verifier

import (
	"fmt"
	"io"
	"strings"
)

// Report renders verdicts as the operator-facing text blocks. Layout and
// wording are stable so operators can diff reports between runs and against
// each other's output.
type Report struct {
	w io.Writer
}

// NewReport returns a Report writing to w.
func NewReport(w io.Writer) *Report {
	return &Report{w: w}
}

// WriteState prints the migration state line that opens a run.
func (r *Report) WriteState(p Phase) {
	fmt.Fprintf(r.w, "\nCurrent migration state: %s\n", p)
}

// WriteTransaction prints the block for the seq-th verified transaction,
// followed by a blank separator line.
func (r *Report) WriteTransaction(seq int, v TransactionVerdict) {
	fmt.Fprintf(r.w, "Transaction #%d: %s\n", seq, v.Address)
	io.WriteString(r.w, renderBlock(v))
	fmt.Fprintln(r.w)
}

// WriteSummary prints the run tally.
func (r *Report) WriteSummary(s RunSummary) {
	fmt.Fprintln(r.w, s)
}

// renderBlock lays out one verdict. Regular fields render as
// "<name> <value> [OK]" lines; the state, order, unknown-instruction and
// fetch pseudo-fields have their own forms.
func renderBlock(v TransactionVerdict) string {
	var b strings.Builder

	switch v.Instruction {
	case "DeactivateValidator", "AddValidator":
		b.WriteString("SolidoInstruction ")
		b.WriteString(v.Instruction)
	case "MigrateStateToV2":
		b.WriteString("SolidoInstruction ")
	}

	for _, f := range v.Fields {
		switch f.Name {
		case "state":
			b.WriteString(": Solido state " + f.Expected + okbad(f.Pass))
		case "order":
			b.WriteString("Transaction order " + f.Expected + okbad(f.Pass))
		case "unknown instruction":
			b.WriteString("Unknown instruction\n")
		case "fetch":
			b.WriteString("Failed to fetch transaction: " + f.Actual + okbad(f.Pass))
		default:
			b.WriteString(f.Name + " " + f.Actual + okbad(f.Pass))
		}
	}

	return b.String()
}

func okbad(pass bool) string {
	if pass {
		return " [OK]\n"
	}
	return " [BAD]\n"
}
