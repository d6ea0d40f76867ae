// Package client provides a Go client for the solido-verify recording API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is a solido-verify API client
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// New creates a new solido-verify client
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// RewardShares is the reward split among treasury, developer and stSOL holders
type RewardShares struct {
	TreasuryFee       int `json:"treasury_fee"`
	DeveloperFee      int `json:"developer_fee"`
	StSolAppreciation int `json:"st_sol_appreciation"`
}

// ExpectedValues are the reference migration parameters a run was checked against.
// Keys are spelled the way the solido CLI spells them.
type ExpectedValues struct {
	SolidoInstance          string       `json:"solido_instance"`
	ProgramToUpgrade        string       `json:"program_to_upgrade"`
	Manager                 string       `json:"manager"`
	BufferAddress           string       `json:"buffer_address"`
	ValidatorList           string       `json:"validator_list"`
	MaintainerList          string       `json:"maintainer_list"`
	DeveloperAccount        string       `json:"developer_account"`
	RewardDistribution      RewardShares `json:"reward_distribution"`
	MaxValidators           int          `json:"max_validators"`
	MaxMaintainers          int          `json:"max_maintainers"`
	MaxCommissionPercentage int          `json:"max_commission_percentage"`
	NewValidators           []string     `json:"new_validators"`
}

// SnapshotValidator is one validator entry in a state snapshot
type SnapshotValidator struct {
	VoteAccount string `json:"vote_account"`
	Active      bool   `json:"active"`
}

// Snapshot is the on-chain state the run's phase was derived from
type Snapshot struct {
	Version    int                 `json:"version"`
	Validators []SnapshotValidator `json:"validators"`
}

// Summary is the submitter's claimed pass/total tally
type Summary struct {
	Passed int `json:"passed"`
	Total  int `json:"total"`
}

// SubmittedTransaction is one transaction in an evidence bundle. Decoded is
// the raw JSON printed by `solido multisig show-transaction`.
type SubmittedTransaction struct {
	Address string          `json:"address"`
	Decoded json.RawMessage `json:"decoded"`
}

// SubmitRunRequest is the evidence bundle for recording a verification run
type SubmitRunRequest struct {
	Network      string                 `json:"network"`
	Expected     ExpectedValues         `json:"expected"`
	Snapshot     Snapshot               `json:"snapshot"`
	Transactions []SubmittedTransaction `json:"transactions"`
	Summary      Summary                `json:"summary"`
}

// SubmitRunResponse reports the server's replay of a submitted run
type SubmitRunResponse struct {
	ID             string `json:"id"`
	Phase          string `json:"phase"`
	Passed         int    `json:"passed"`
	Total          int    `json:"total"`
	ReplayMismatch bool   `json:"replayMismatch"`
	Message        string `json:"message,omitempty"`
}

// FieldVerdict is one checked field in a replayed transaction
type FieldVerdict struct {
	Name     string `json:"name"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Pass     bool   `json:"pass"`
}

// RunTransaction is one replayed transaction in a recorded run
type RunTransaction struct {
	Seq     int             `json:"seq"`
	Address string          `json:"address"`
	Kind    string          `json:"kind"`
	Passed  bool            `json:"passed"`
	Fields  []FieldVerdict  `json:"fields"`
	Decoded json.RawMessage `json:"decoded,omitempty"`
}

// Run is a recorded verification run. List responses carry only the summary
// fields; GetRun also fills the evidence and the replayed transactions.
type Run struct {
	ID             string           `json:"id"`
	Network        string           `json:"network"`
	Phase          string           `json:"phase"`
	Passed         int              `json:"passed"`
	Total          int              `json:"total"`
	ReplayMismatch bool             `json:"replayMismatch"`
	SubmittedBy    string           `json:"submittedBy,omitempty"`
	Expected       *ExpectedValues  `json:"expected,omitempty"`
	Snapshot       *Snapshot        `json:"snapshot,omitempty"`
	Report         string           `json:"report,omitempty"`
	CreatedAt      string           `json:"createdAt,omitempty"`
	Transactions   []RunTransaction `json:"transactions,omitempty"`
}

// ListRunsResponse is the response for listing runs
type ListRunsResponse struct {
	Data       []Run      `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// Pagination contains pagination info
type Pagination struct {
	Limit      int    `json:"limit"`
	HasMore    bool   `json:"hasMore"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// ListRunsOptions filters and paginates ListRuns
type ListRunsOptions struct {
	Network   string
	Phase     string
	AllPassed *bool
	Limit     int
	Cursor    string
}

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// SubmitRun uploads a run evidence bundle. The server replays the
// verification from the evidence and records the recomputed outcome.
func (c *Client) SubmitRun(ctx context.Context, req SubmitRunRequest) (*SubmitRunResponse, error) {
	var resp SubmitRunResponse
	if err := c.post(ctx, "/api/v1/runs", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListRuns lists recorded runs, newest first
func (c *Client) ListRuns(ctx context.Context, opts ListRunsOptions) (*ListRunsResponse, error) {
	q := url.Values{}
	if opts.Network != "" {
		q.Set("network", opts.Network)
	}
	if opts.Phase != "" {
		q.Set("phase", opts.Phase)
	}
	if opts.AllPassed != nil {
		q.Set("all_passed", strconv.FormatBool(*opts.AllPassed))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		q.Set("cursor", opts.Cursor)
	}

	path := "/api/v1/runs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ListRunsResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetRun gets a run by ID, including its replayed transactions
func (c *Client) GetRun(ctx context.Context, id string) (*Run, error) {
	var resp Run
	if err := c.get(ctx, "/api/v1/runs/"+url.PathEscape(id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	return c.do(req, result)
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result any) error {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.parseError(resp)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func (c *Client) parseError(resp *http.Response) error {
	var errResp struct {
		Error APIError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Error.Code == "" {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	return &errResp.Error
}
