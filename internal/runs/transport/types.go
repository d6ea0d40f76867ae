// Package transport provides HTTP request/response types for the runs domain.
package transport

import (
	"encoding/json"
	"time"

	"github.com/lidofinance/solido-verify/internal/runs/domain"
	"github.com/lidofinance/solido-verify/internal/verifier"
)

// SubmitRequest is the HTTP request body for submitting a run. The evidence
// payload reuses the verifier wire types, so expected and snapshot keys are
// spelled the way the solido CLI spells them.
type SubmitRequest struct {
	Network      string                  `json:"network"`
	Expected     verifier.ExpectedConfig `json:"expected"`
	Snapshot     verifier.Snapshot       `json:"snapshot"`
	Transactions []SubmittedTransaction  `json:"transactions"`
	Summary      verifier.RunSummary     `json:"summary"`
}

// SubmittedTransaction is one transaction in the submitted evidence.
type SubmittedTransaction struct {
	Address string          `json:"address"`
	Decoded json.RawMessage `json:"decoded"`
}

// ToDomain converts SubmitRequest to domain.SubmitRequest.
func (r SubmitRequest) ToDomain() domain.SubmitRequest {
	txs := make([]domain.SubmittedTransaction, len(r.Transactions))
	for i, tx := range r.Transactions {
		txs[i] = domain.SubmittedTransaction{
			Address: tx.Address,
			Decoded: tx.Decoded,
		}
	}
	return domain.SubmitRequest{
		Network:      r.Network,
		Expected:     r.Expected,
		Snapshot:     r.Snapshot,
		Transactions: txs,
		Summary:      r.Summary,
	}
}

// SubmitResponse is the response for submitting a run.
type SubmitResponse struct {
	ID             string `json:"id"`
	Phase          string `json:"phase"`
	Passed         int    `json:"passed"`
	Total          int    `json:"total"`
	ReplayMismatch bool   `json:"replayMismatch"`
	Message        string `json:"message"`
}

// RunItem is a run in a list.
type RunItem struct {
	ID             string `json:"id"`
	Network        string `json:"network"`
	Phase          string `json:"phase"`
	Passed         int    `json:"passed"`
	Total          int    `json:"total"`
	ReplayMismatch bool   `json:"replayMismatch"`
	CreatedAt      string `json:"createdAt,omitempty"`
}

// RunListResponse is the response for listing runs.
type RunListResponse struct {
	Data       []RunItem  `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// Pagination provides pagination metadata.
type Pagination struct {
	Limit      int    `json:"limit"`
	HasMore    bool   `json:"hasMore"`
	NextCursor string `json:"nextCursor"`
}

// TransactionItem is one replayed transaction in a run response.
type TransactionItem struct {
	Seq     int                     `json:"seq"`
	Address string                  `json:"address"`
	Kind    string                  `json:"kind"`
	Passed  bool                    `json:"passed"`
	Fields  []verifier.FieldVerdict `json:"fields"`
	Decoded json.RawMessage         `json:"decoded,omitempty"`
}

// RunResponse is the response for getting a run.
type RunResponse struct {
	ID             string                  `json:"id"`
	Network        string                  `json:"network"`
	Phase          string                  `json:"phase"`
	Passed         int                     `json:"passed"`
	Total          int                     `json:"total"`
	ReplayMismatch bool                    `json:"replayMismatch"`
	SubmittedBy    string                  `json:"submittedBy,omitempty"`
	Expected       verifier.ExpectedConfig `json:"expected"`
	Snapshot       verifier.Snapshot       `json:"snapshot"`
	Report         string                  `json:"report"`
	CreatedAt      string                  `json:"createdAt,omitempty"`
	Transactions   []TransactionItem       `json:"transactions"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// toRunItem converts a domain run to the list item type.
func toRunItem(run *domain.Run) RunItem {
	return RunItem{
		ID:             run.ID,
		Network:        run.Network,
		Phase:          run.Phase,
		Passed:         run.Passed,
		Total:          run.Total,
		ReplayMismatch: run.ReplayMismatch,
		CreatedAt:      formatTime(run.CreatedAt),
	}
}

// toRunResponse converts a domain run to the full response type.
func toRunResponse(run *domain.Run) RunResponse {
	txs := make([]TransactionItem, len(run.Transactions))
	for i, tx := range run.Transactions {
		txs[i] = TransactionItem{
			Seq:     tx.Seq,
			Address: tx.Address,
			Kind:    tx.Kind,
			Passed:  tx.Passed,
			Fields:  tx.Fields,
			Decoded: tx.Decoded,
		}
	}
	return RunResponse{
		ID:             run.ID,
		Network:        run.Network,
		Phase:          run.Phase,
		Passed:         run.Passed,
		Total:          run.Total,
		ReplayMismatch: run.ReplayMismatch,
		SubmittedBy:    run.SubmittedBy,
		Expected:       run.Expected,
		Snapshot:       run.Snapshot,
		Report:         run.Report,
		CreatedAt:      formatTime(run.CreatedAt),
		Transactions:   txs,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
