package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_SubmitRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/runs" {
			t.Errorf("Expected path /api/v1/runs, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST method, got %s", r.Method)
		}
		if r.Header.Get("X-API-Key") != "my-api-key" {
			t.Errorf("Expected X-API-Key header, got %s", r.Header.Get("X-API-Key"))
		}

		var req SubmitRunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}

		if req.Network != "mainnet" {
			t.Errorf("Expected network mainnet, got %s", req.Network)
		}
		if len(req.Transactions) != 1 {
			t.Errorf("Expected 1 transaction, got %d", len(req.Transactions))
		}

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"id":             "run-123",
			"phase":          "Deactivate validators",
			"passed":         1,
			"total":          1,
			"replayMismatch": false,
			"message":        "Run recorded successfully",
		})
	}))
	defer server.Close()

	client := New(server.URL, "my-api-key")
	resp, err := client.SubmitRun(context.Background(), SubmitRunRequest{
		Network: "mainnet",
		Transactions: []SubmittedTransaction{
			{Address: "9GJmEHGom9eWo4np4L5vC6b6ri1Df2xN8KFoWixvD1Bs", Decoded: json.RawMessage(`{}`)},
		},
		Summary: Summary{Passed: 1, Total: 1},
	})
	if err != nil {
		t.Fatalf("SubmitRun() error = %v", err)
	}

	if resp.ID != "run-123" {
		t.Errorf("SubmitRun().ID = %s, want run-123", resp.ID)
	}
	if resp.ReplayMismatch {
		t.Error("SubmitRun().ReplayMismatch = true, want false")
	}
}

func TestClient_ListRuns(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/runs" {
			t.Errorf("Expected path /api/v1/runs, got %s", r.URL.Path)
		}
		if r.Method != http.MethodGet {
			t.Errorf("Expected GET method, got %s", r.Method)
		}

		q := r.URL.Query()
		if q.Get("network") != "mainnet" {
			t.Errorf("Expected network=mainnet, got %s", q.Get("network"))
		}
		if q.Get("all_passed") != "true" {
			t.Errorf("Expected all_passed=true, got %s", q.Get("all_passed"))
		}
		if q.Get("limit") != "5" {
			t.Errorf("Expected limit=5, got %s", q.Get("limit"))
		}

		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"id": "run-1", "network": "mainnet", "phase": "Add validators", "passed": 2, "total": 2},
			},
			"pagination": map[string]any{
				"limit":   5,
				"hasMore": false,
			},
		})
	}))
	defer server.Close()

	allPassed := true
	client := New(server.URL, "")
	resp, err := client.ListRuns(context.Background(), ListRunsOptions{
		Network:   "mainnet",
		AllPassed: &allPassed,
		Limit:     5,
	})
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}

	if len(resp.Data) != 1 {
		t.Fatalf("ListRuns() returned %d runs, want 1", len(resp.Data))
	}
	if resp.Data[0].ID != "run-1" {
		t.Errorf("ListRuns()[0].ID = %s, want run-1", resp.Data[0].ID)
	}
	if resp.Data[0].Phase != "Add validators" {
		t.Errorf("ListRuns()[0].Phase = %s, want Add validators", resp.Data[0].Phase)
	}
}

func TestClient_ListRuns_NoFilters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "" {
			t.Errorf("Expected no query string, got %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data":       []map[string]any{},
			"pagination": map[string]any{"limit": 20, "hasMore": false},
		})
	}))
	defer server.Close()

	client := New(server.URL, "")
	resp, err := client.ListRuns(context.Background(), ListRunsOptions{})
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(resp.Data) != 0 {
		t.Errorf("ListRuns() returned %d runs, want 0", len(resp.Data))
	}
}

func TestClient_GetRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/runs/run-123" {
			t.Errorf("Expected path /api/v1/runs/run-123, got %s", r.URL.Path)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"id":             "run-123",
			"network":        "mainnet",
			"phase":          "Upgrade program",
			"passed":         1,
			"total":          2,
			"replayMismatch": true,
			"report":         "\nCurrent migration state: Upgrade program\n",
			"expected": map[string]any{
				"solido_instance": "49Yi1TKkNyYjPAFdR9LBvoHcUjuPX4Df5T5yv39w2XTn",
			},
			"snapshot": map[string]any{
				"version":    0,
				"validators": []map[string]any{},
			},
			"transactions": []map[string]any{
				{
					"seq":     1,
					"address": "46Kdub5aehm8RpFtSvnaTWxYR2WMCgAkma7fj61vaRiT",
					"kind":    "BpfLoaderUpgrade",
					"passed":  true,
					"fields": []map[string]any{
						{"name": "order", "expected": "BpfLoaderUpgrade", "pass": true},
					},
				},
			},
		})
	}))
	defer server.Close()

	client := New(server.URL, "")
	run, err := client.GetRun(context.Background(), "run-123")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}

	if run.ID != "run-123" {
		t.Errorf("GetRun().ID = %s, want run-123", run.ID)
	}
	if !run.ReplayMismatch {
		t.Error("GetRun().ReplayMismatch = false, want true")
	}
	if run.Expected == nil || run.Expected.SolidoInstance != "49Yi1TKkNyYjPAFdR9LBvoHcUjuPX4Df5T5yv39w2XTn" {
		t.Errorf("GetRun().Expected = %+v, want solido_instance filled", run.Expected)
	}
	if len(run.Transactions) != 1 {
		t.Fatalf("GetRun() has %d transactions, want 1", len(run.Transactions))
	}
	if run.Transactions[0].Kind != "BpfLoaderUpgrade" {
		t.Errorf("GetRun() transaction kind = %s, want BpfLoaderUpgrade", run.Transactions[0].Kind)
	}
	if len(run.Transactions[0].Fields) != 1 {
		t.Errorf("GetRun() transaction has %d fields, want 1", len(run.Transactions[0].Fields))
	}
}

func TestClient_ErrorHandling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{
				"code":    "NOT_FOUND",
				"message": "Run not found",
			},
		})
	}))
	defer server.Close()

	client := New(server.URL, "")
	_, err := client.GetRun(context.Background(), "nonexistent")
	if err == nil {
		t.Fatal("Expected error for 404 response")
	}

	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("Expected APIError, got %T", err)
	}
	if apiErr.Code != "NOT_FOUND" {
		t.Errorf("Expected code NOT_FOUND, got %s", apiErr.Code)
	}
}

func TestClient_ErrorHandling_NonJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable"))
	}))
	defer server.Close()

	client := New(server.URL, "")
	_, err := client.GetRun(context.Background(), "run-1")
	if err == nil {
		t.Fatal("Expected error for 502 response")
	}
	if _, ok := err.(*APIError); ok {
		t.Fatal("Expected plain error for non-JSON body, got APIError")
	}
}
