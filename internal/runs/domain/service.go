package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lidofinance/solido-verify/internal/observability/metrics"
	"github.com/lidofinance/solido-verify/internal/solido"
	"github.com/lidofinance/solido-verify/internal/storage"
	"github.com/lidofinance/solido-verify/internal/validation"
	"github.com/lidofinance/solido-verify/internal/verifier"
)

// Common errors returned by the runs service.
var (
	ErrNotFound        = errors.New("run not found")
	ErrInvalidEvidence = errors.New("invalid evidence")
)

// RunStore defines the storage operations needed by the runs domain.
type RunStore interface {
	CreateRun(ctx context.Context, run *storage.Run) error
	GetRun(ctx context.Context, id string) (*storage.Run, error)
	ListRuns(ctx context.Context, filter storage.RunFilter, pagination storage.PaginationParams) (*storage.PaginatedResult[storage.Run], error)
	CreateRunTransaction(ctx context.Context, tx *storage.RunTransaction) error
	ListRunTransactions(ctx context.Context, runID string) ([]storage.RunTransaction, error)
}

// Service defines the runs service interface.
type Service interface {
	// Submit replays an evidence bundle and records the resulting run.
	Submit(ctx context.Context, submittedBy string, req SubmitRequest) (*Run, error)

	// Get retrieves a run with its transactions.
	Get(ctx context.Context, id string) (*Run, error)

	// List lists runs with filtering and pagination.
	List(ctx context.Context, filter ListFilter, pagination PaginationParams) (*ListResult, error)
}

// service implements the Service interface.
type service struct {
	runs RunStore
}

// NewService creates a new runs service.
func NewService(runs RunStore) Service {
	return &service{runs: runs}
}

// Submit replays the submitted evidence through a fresh verifier and records
// the outcome. The submitter's claimed summary is never trusted: the run is
// stored with the recomputed tally, and ReplayMismatch is set when the claim
// disagrees with the replay.
func (s *service) Submit(ctx context.Context, submittedBy string, req SubmitRequest) (*Run, error) {
	if err := req.Expected.Validate(); err != nil {
		return nil, fmt.Errorf("%w: expected config: %v", ErrInvalidEvidence, err)
	}
	if len(req.Transactions) == 0 {
		return nil, fmt.Errorf("%w: no transactions", ErrInvalidEvidence)
	}
	for _, st := range req.Transactions {
		if err := validation.ValidateAccountAddress(st.Address); err != nil {
			return nil, fmt.Errorf("%w: transaction address %q: %v", ErrInvalidEvidence, st.Address, err)
		}
	}

	v := verifier.New(req.Expected, req.Snapshot)

	// Evidence transactions carry the decoded instruction in hand, so the
	// replay is the runner loop without the fetch step.
	var reportBuf strings.Builder
	report := verifier.NewReport(&reportBuf)
	report.WriteState(v.Phase())

	var summary verifier.RunSummary
	verdicts := make([]verifier.TransactionVerdict, 0, len(req.Transactions))
	for _, st := range req.Transactions {
		var tx solido.Transaction
		if err := json.Unmarshal(st.Decoded, &tx); err != nil {
			return nil, fmt.Errorf("%w: transaction %s: %v", ErrInvalidEvidence, st.Address, err)
		}

		verdict := v.Verify(verifier.TransactionRecord{Address: st.Address, Instruction: tx.Instruction()})
		verdicts = append(verdicts, verdict)
		summary.Total++
		if verdict.Pass {
			summary.Passed++
		}
		report.WriteTransaction(summary.Total, verdict)
	}
	report.WriteSummary(summary)

	expectedJSON, err := json.Marshal(req.Expected)
	if err != nil {
		return nil, fmt.Errorf("encoding expected config: %w", err)
	}
	snapshotJSON, err := json.Marshal(req.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}

	run := &storage.Run{
		ID:             uuid.New().String(),
		Network:        req.Network,
		Phase:          v.Phase().String(),
		Passed:         summary.Passed,
		Total:          summary.Total,
		ReplayMismatch: summary != req.Summary,
		SubmittedBy:    submittedBy,
		Expected:       expectedJSON,
		Snapshot:       snapshotJSON,
		Report:         reportBuf.String(),
	}

	if err := s.runs.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}

	results := make([]TransactionResult, 0, len(verdicts))
	for i, verdict := range verdicts {
		fieldsJSON, err := json.Marshal(verdict.Fields)
		if err != nil {
			return nil, fmt.Errorf("encoding verdict fields: %w", err)
		}

		rtx := &storage.RunTransaction{
			ID:      uuid.New().String(),
			RunID:   run.ID,
			Seq:     i + 1,
			Address: verdict.Address,
			Kind:    verdict.Instruction,
			Decoded: req.Transactions[i].Decoded,
			Passed:  verdict.Pass,
			Fields:  fieldsJSON,
		}
		if err := s.runs.CreateRunTransaction(ctx, rtx); err != nil {
			return nil, fmt.Errorf("recording transaction %d: %w", rtx.Seq, err)
		}

		results = append(results, TransactionResult{
			Seq:     rtx.Seq,
			Address: rtx.Address,
			Kind:    rtx.Kind,
			Passed:  rtx.Passed,
			Fields:  verdict.Fields,
			Decoded: req.Transactions[i].Decoded,
		})
	}

	metrics.RunSubmit(req.Network, runStatus(summary))
	if run.ReplayMismatch {
		metrics.RunReplayMismatch()
	}
	for _, verdict := range verdicts {
		metrics.TransactionVerified(verdict.Instruction, verdictStatus(verdict.Pass))
	}

	return &Run{
		ID:             run.ID,
		Network:        run.Network,
		Phase:          run.Phase,
		Passed:         run.Passed,
		Total:          run.Total,
		ReplayMismatch: run.ReplayMismatch,
		SubmittedBy:    run.SubmittedBy,
		Expected:       req.Expected,
		Snapshot:       req.Snapshot,
		Report:         run.Report,
		Transactions:   results,
	}, nil
}

// Get retrieves a run with its transactions.
func (s *service) Get(ctx context.Context, id string) (*Run, error) {
	// Run ids are uuids. A malformed id can never match, and postgres would
	// reject it as a type error instead of returning no rows.
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	stored, err := s.runs.GetRun(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting run: %w", err)
	}

	run, err := toRun(stored)
	if err != nil {
		return nil, err
	}

	txs, err := s.runs.ListRunTransactions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listing run transactions: %w", err)
	}
	for _, tx := range txs {
		result, err := toTransactionResult(tx)
		if err != nil {
			return nil, err
		}
		run.Transactions = append(run.Transactions, result)
	}

	return run, nil
}

// List lists runs with filtering and pagination. Results are summaries;
// transactions are loaded on Get.
func (s *service) List(ctx context.Context, filter ListFilter, pagination PaginationParams) (*ListResult, error) {
	result, err := s.runs.ListRuns(ctx, storage.RunFilter{
		Network:   filter.Network,
		Phase:     filter.Phase,
		AllPassed: filter.AllPassed,
	}, storage.PaginationParams{
		Limit:  pagination.Limit,
		Cursor: pagination.Cursor,
	})
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	runs := make([]Run, len(result.Data))
	for i := range result.Data {
		run, err := toRun(&result.Data[i])
		if err != nil {
			return nil, err
		}
		runs[i] = *run
	}

	return &ListResult{
		Runs:       runs,
		HasMore:    result.HasMore,
		NextCursor: result.NextCursor,
	}, nil
}

// toRun converts a stored run to the domain type.
func toRun(r *storage.Run) (*Run, error) {
	run := &Run{
		ID:             r.ID,
		Network:        r.Network,
		Phase:          r.Phase,
		Passed:         r.Passed,
		Total:          r.Total,
		ReplayMismatch: r.ReplayMismatch,
		SubmittedBy:    r.SubmittedBy,
		Report:         r.Report,
	}

	if err := json.Unmarshal(r.Expected, &run.Expected); err != nil {
		return nil, fmt.Errorf("decoding stored expected config: %w", err)
	}
	if err := json.Unmarshal(r.Snapshot, &run.Snapshot); err != nil {
		return nil, fmt.Errorf("decoding stored snapshot: %w", err)
	}

	if r.CreatedAt != "" {
		if t, err := time.Parse("2006-01-02 15:04:05", r.CreatedAt); err == nil {
			run.CreatedAt = t
		}
	}

	return run, nil
}

// toTransactionResult converts a stored run transaction to the domain type.
func toTransactionResult(tx storage.RunTransaction) (TransactionResult, error) {
	result := TransactionResult{
		Seq:     tx.Seq,
		Address: tx.Address,
		Kind:    tx.Kind,
		Passed:  tx.Passed,
		Decoded: json.RawMessage(tx.Decoded),
	}

	if len(tx.Fields) > 0 {
		if err := json.Unmarshal(tx.Fields, &result.Fields); err != nil {
			return TransactionResult{}, fmt.Errorf("decoding stored verdict fields: %w", err)
		}
	}

	return result, nil
}

func runStatus(s verifier.RunSummary) string {
	if s.AllPassed() {
		return "passed"
	}
	return "failed"
}

func verdictStatus(pass bool) string {
	if pass {
		return "ok"
	}
	return "bad"
}
