package operations

import (
	"context"
	"log/slog"
	"time"
)

// Structured logging helpers shared by the manager's execution paths.

func (m *Manager) logOperationError(ctx context.Context, operationID string, err error) {
	slog.ErrorContext(ctx, "operation failed",
		slog.String("operation_id", operationID),
		slog.String("error", err.Error()))
}

func (m *Manager) logStepStart(ctx context.Context, operationID, stepID string) {
	slog.InfoContext(ctx, "step started",
		slog.String("operation_id", operationID),
		slog.String("step", stepID))
}

func (m *Manager) logStepComplete(ctx context.Context, operationID, stepID string, duration time.Duration) {
	slog.InfoContext(ctx, "step completed",
		slog.String("operation_id", operationID),
		slog.String("step", stepID),
		slog.Duration("duration", duration))
}

func (m *Manager) logStepError(ctx context.Context, operationID, stepID string, err error) {
	slog.ErrorContext(ctx, "step failed",
		slog.String("operation_id", operationID),
		slog.String("step", stepID),
		slog.String("error", err.Error()))
}
