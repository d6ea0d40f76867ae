// Package transport provides HTTP handlers for the runs domain.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lidofinance/solido-verify/internal/auth"
	"github.com/lidofinance/solido-verify/internal/runs/domain"
)

// Service defines the runs service interface for HTTP transport.
type Service interface {
	Submit(ctx context.Context, submittedBy string, req domain.SubmitRequest) (*domain.Run, error)
	Get(ctx context.Context, id string) (*domain.Run, error)
	List(ctx context.Context, filter domain.ListFilter, pagination domain.PaginationParams) (*domain.ListResult, error)
}

// Handler handles HTTP requests for runs.
type Handler struct {
	svc Service
}

// NewHandler creates a new runs HTTP handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers all run routes on a chi router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	h.RegisterReadRoutes(r)
	h.RegisterWriteRoutes(r)
}

// RegisterReadRoutes registers read-only run routes (no auth required).
func (h *Handler) RegisterReadRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
}

// RegisterWriteRoutes registers write run routes (auth required).
func (h *Handler) RegisterWriteRoutes(r chi.Router) {
	r.Post("/", h.handleSubmit)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	var allPassed *bool
	if v := r.URL.Query().Get("all_passed"); v != "" {
		b := v == "true"
		allPassed = &b
	}

	result, err := h.svc.List(r.Context(), domain.ListFilter{
		Network:   r.URL.Query().Get("network"),
		Phase:     r.URL.Query().Get("phase"),
		AllPassed: allPassed,
	}, domain.PaginationParams{
		Limit:  limit,
		Cursor: r.URL.Query().Get("cursor"),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list runs")
		return
	}

	data := make([]RunItem, len(result.Runs))
	for i := range result.Runs {
		data[i] = toRunItem(&result.Runs[i])
	}

	writeJSON(w, http.StatusOK, RunListResponse{
		Data: data,
		Pagination: Pagination{
			Limit:      limit,
			HasMore:    result.HasMore,
			NextCursor: result.NextCursor,
		},
	})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body")
		return
	}

	var req SubmitRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return
	}

	submittedBy := auth.GetOwnerIDFromContext(r.Context())

	run, err := h.svc.Submit(r.Context(), submittedBy, req.ToDomain())
	if err != nil {
		if errors.Is(err, domain.ErrInvalidEvidence) {
			writeError(w, http.StatusBadRequest, "INVALID_EVIDENCE", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to record run")
		return
	}

	writeJSON(w, http.StatusCreated, SubmitResponse{
		ID:             run.ID,
		Phase:          run.Phase,
		Passed:         run.Passed,
		Total:          run.Total,
		ReplayMismatch: run.ReplayMismatch,
		Message:        "Run recorded successfully",
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get run")
		return
	}

	writeJSON(w, http.StatusOK, toRunResponse(run))
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
