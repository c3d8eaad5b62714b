package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/BrandonDHaskell/rollcall/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = base
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// ErrorKind maps sentinel and typed errors to a stable label used in logs
// and in HTTP error bodies.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrSessionNotActive):
		return "session_not_active"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyReviewed):
		return "already_reviewed"
	case errors.Is(err, ErrDuplicateRoster):
		return "duplicate_roster"
	case errors.Is(err, ErrSessionLocked):
		return "session_locked"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "canceled"
	}

	var cErr *ConflictError
	if errors.As(err, &cErr) {
		return "invalid_transition"
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}

	return "unexpected"
}

// logOutcome writes the single outcome line for an operation. Expected
// rejections log at Warn, anything unclassified at Error.
func logOutcome(ctx context.Context, logger *slog.Logger, err error, okMsg, failMsg string, attrs ...any) {
	if err == nil {
		logger.InfoContext(ctx, okMsg, attrs...)
		return
	}
	kind := ErrorKind(err)
	args := append([]any{"error", err, "error_kind", kind}, attrs...)
	if kind == "unexpected" {
		logger.ErrorContext(ctx, failMsg, args...)
		return
	}
	logger.WarnContext(ctx, failMsg, args...)
}
