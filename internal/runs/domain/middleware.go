package domain

import (
	"context"
	"log/slog"
	"time"
)

// loggingService is the interface required for logging middleware.
type loggingService interface {
	Submit(ctx context.Context, submittedBy string, req SubmitRequest) (*Run, error)
	Get(ctx context.Context, id string) (*Run, error)
	List(ctx context.Context, filter ListFilter, pagination PaginationParams) (*ListResult, error)
}

// LoggingMiddleware returns a service middleware that logs all operations.
func LoggingMiddleware(logger *slog.Logger) func(loggingService) *loggingMiddleware {
	return func(next loggingService) *loggingMiddleware {
		return &loggingMiddleware{
			next:   next,
			logger: logger,
		}
	}
}

type loggingMiddleware struct {
	next   loggingService
	logger *slog.Logger
}

func (m *loggingMiddleware) Submit(ctx context.Context, submittedBy string, req SubmitRequest) (*Run, error) {
	start := time.Now()
	run, err := m.next.Submit(ctx, submittedBy, req)

	attrs := []any{
		"network", req.Network,
		"transactions", len(req.Transactions),
		"duration", time.Since(start),
		"error", err,
	}
	if run != nil {
		attrs = append(attrs,
			"run", run.ID,
			"passed", run.Passed,
			"total", run.Total,
			"replayMismatch", run.ReplayMismatch,
		)
	}
	m.logger.Info("Submit", attrs...)

	return run, err
}

func (m *loggingMiddleware) Get(ctx context.Context, id string) (*Run, error) {
	start := time.Now()
	run, err := m.next.Get(ctx, id)
	m.logger.Debug("Get",
		"id", id,
		"duration", time.Since(start),
		"error", err,
	)
	return run, err
}

func (m *loggingMiddleware) List(ctx context.Context, filter ListFilter, pagination PaginationParams) (*ListResult, error) {
	start := time.Now()
	result, err := m.next.List(ctx, filter, pagination)
	m.logger.Debug("List",
		"filter", filter,
		"limit", pagination.Limit,
		"duration", time.Since(start),
		"error", err,
	)
	return result, err
}
