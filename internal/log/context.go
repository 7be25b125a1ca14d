package log

import (
	"context"
	"errors"
	"log/slog"

	"registri/internal/core"
)

type contextKey struct{}

// WithContext returns a copy of ctx carrying logger.
func WithContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext extracts the logger stored by WithContext, or a logger on the
// default handler.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// ErrorType classifies err into one of the ErrorType* categories.
func ErrorType(err error) string {
	var (
		locked    *core.LockedRecordError
		transport *core.TransportError
		partial   *core.PartialTransferFailure
	)
	switch {
	case errors.As(err, &partial):
		return ErrorTypePartial
	case errors.As(err, &locked):
		return ErrorTypeLocked
	case core.IsValidation(err):
		return ErrorTypeValidation
	case errors.Is(err, core.ErrNotFound):
		return ErrorTypeNotFound
	case errors.As(err, &transport):
		return ErrorTypeTransport
	default:
		return ErrorTypeInternal
	}
}

// LogMutation logs a ledger write at info on success and at warn or error on
// failure, depending on whether the user can act on it.
func (l *Logger) LogMutation(ctx context.Context, op string, scope core.Scope, movementID string, err error) {
	fields := NewFields().WithOperation(op).WithScope(scope).WithMovement(movementID)
	if err == nil {
		l.InfoContext(ctx, "Ledger mutation applied", fields.ToSlice()...)
		return
	}
	fields.WithError(err)
	switch ErrorType(err) {
	case ErrorTypeValidation, ErrorTypeLocked, ErrorTypeNotFound:
		l.WarnContext(ctx, "Ledger mutation rejected", fields.ToSlice()...)
	default:
		l.ErrorContext(ctx, "Ledger mutation failed", fields.ToSlice()...)
	}
}
