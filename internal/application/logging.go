package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Lowii-3dy/campus-sched/internal/approval"
	"github.com/Lowii-3dy/campus-sched/internal/logging"
	"github.com/Lowii-3dy/campus-sched/internal/scheduler"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	return logging.OrDefault(logger)
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	return logging.Component(ctx, base, "service", serviceName, operation, attrs...)
}

// logOutcome records the result of an operation at info or error level.
func logOutcome(ctx context.Context, logger *slog.Logger, err error, msg string, attrs ...any) {
	if err != nil {
		logger.ErrorContext(ctx, msg+" failed", append(attrs, "error", err, "error_kind", ErrorKind(err))...)
		return
	}
	logger.InfoContext(ctx, msg, attrs...)
}

// ErrorKind maps sentinel and validation errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrStale):
		return "stale"
	case errors.Is(err, ErrCollaboratorUnavailable):
		return "collaborator_unavailable"
	case errors.Is(err, scheduler.ErrInvalidInterval):
		return "invalid_interval"
	case errors.Is(err, approval.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, approval.ErrMissingReason):
		return "missing_reason"
	}

	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return "conflict"
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}

	return "unexpected"
}
