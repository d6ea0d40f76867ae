// Package domain contains the business logic for verification runs.
package domain

import (
	"encoding/json"
	"time"

	"github.com/lidofinance/solido-verify/internal/verifier"
)

// Run is a recorded verification run: the evidence it was replayed from,
// the replay outcome, and the rendered report.
type Run struct {
	ID             string
	Network        string
	Phase          string
	Passed         int
	Total          int
	ReplayMismatch bool
	SubmittedBy    string
	Expected       verifier.ExpectedConfig
	Snapshot       verifier.Snapshot
	Report         string
	CreatedAt      time.Time
	Transactions   []TransactionResult
}

// TransactionResult is the replayed outcome for one transaction in a run.
type TransactionResult struct {
	Seq     int
	Address string
	Kind    string
	Passed  bool
	Fields  []verifier.FieldVerdict
	Decoded json.RawMessage
}

// SubmittedTransaction is one transaction in the submitted evidence: its
// multisig address and the decoded instruction exactly as the solido CLI
// printed it.
type SubmittedTransaction struct {
	Address string          `json:"address"`
	Decoded json.RawMessage `json:"decoded"`
}

// SubmitRequest is the evidence bundle for a completed verification run.
// Summary is the submitter's claimed tally; the service recomputes it from
// the evidence and records any disagreement.
type SubmitRequest struct {
	Network      string                  `json:"network"`
	Expected     verifier.ExpectedConfig `json:"expected"`
	Snapshot     verifier.Snapshot       `json:"snapshot"`
	Transactions []SubmittedTransaction  `json:"transactions"`
	Summary      verifier.RunSummary     `json:"summary"`
}

// ListFilter contains filter options for listing runs.
type ListFilter struct {
	Network   string
	Phase     string
	AllPassed *bool
}

// PaginationParams contains pagination options.
type PaginationParams struct {
	Limit  int
	Cursor string
}

// ListResult contains paginated list results. Runs are summaries only;
// transactions are loaded on Get.
type ListResult struct {
	Runs       []Run
	HasMore    bool
	NextCursor string
}
