package verifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// ErrCollaboratorUnavailable reports that the external decoder cannot be
// used at all (missing binary, unusable config). It aborts a run, unlike a
// per-transaction fetch failure, which only fails that transaction.
var ErrCollaboratorUnavailable = errors.New("collaborator unavailable")

// Decoder fetches and decodes one proposed transaction by address.
type Decoder interface {
	DecodeTransaction(ctx context.Context, address string) (Instruction, error)
}

// RunResult is everything a completed run produced.
type RunResult struct {
	Phase    Phase                `json:"phase"`
	Verdicts []TransactionVerdict `json:"verdicts"`
	Summary  RunSummary           `json:"summary"`
}

// Runner drives a verification run over an ordered list of transaction
// addresses. Order matters: the vote account registry and the order tracker
// are stateful across the sequence, so addresses must be verified in input
// order.
type Runner struct {
	verifier *Verifier
	decoder  Decoder
	report   *Report
	log      *slog.Logger
}

// NewRunner wires a Verifier to its transaction decoder. The report is
// rendered to out as the run progresses.
func NewRunner(v *Verifier, d Decoder, out io.Writer, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{verifier: v, decoder: d, report: NewReport(out), log: log}
}

// Run verifies every address in order, rendering each block as it is
// produced, and returns the accumulated result. A transaction that cannot
// be fetched gets a single failed fetch verdict and the run continues; the
// run only aborts when the decoder reports ErrCollaboratorUnavailable.
func (r *Runner) Run(ctx context.Context, addresses []string) (*RunResult, error) {
	result := &RunResult{Phase: r.verifier.Phase()}
	r.report.WriteState(result.Phase)

	for _, addr := range addresses {
		verdict, err := r.verifyOne(ctx, addr)
		if err != nil {
			return nil, err
		}

		result.Verdicts = append(result.Verdicts, verdict)
		result.Summary.Total++
		if verdict.Pass {
			result.Summary.Passed++
		}
		r.report.WriteTransaction(result.Summary.Total, verdict)
	}

	r.report.WriteSummary(result.Summary)
	return result, nil
}

func (r *Runner) verifyOne(ctx context.Context, addr string) (TransactionVerdict, error) {
	inst, err := r.decoder.DecodeTransaction(ctx, addr)
	if err != nil {
		if errors.Is(err, ErrCollaboratorUnavailable) {
			return TransactionVerdict{}, fmt.Errorf("fetching transaction %s: %w", addr, err)
		}
		// The transaction is unverifiable but the run goes on.
		r.log.Warn("transaction fetch failed", "address", addr, "error", err)
		return fetchFailedVerdict(addr, err), nil
	}
	return r.verifier.Verify(TransactionRecord{Address: addr, Instruction: inst}), nil
}

// fetchFailedVerdict marks a transaction wholly unverifiable.
func fetchFailedVerdict(addr string, err error) TransactionVerdict {
	return newTransactionVerdict(addr, "", []FieldVerdict{
		{Name: "fetch", Actual: err.Error()},
	})
}
