package logger

import (
	"context"
	"log/slog"
)

type ctxKey string

const loggerKey ctxKey = "logger"

// With returns a new context that includes a logger with fields.
func With(ctx context.Context, fields ...any) context.Context {
	l := From(ctx).With(fields...)
	return context.WithValue(ctx, loggerKey, l)
}

// WithActor tags the context logger with the authenticated identity so every
// downstream log line carries who acted and in which tenant. A nil tenant
// (global staff) is logged as user fields only.
func WithActor(ctx context.Context, userID int64, role string, tenantID *int64) context.Context {
	fields := []any{"user_id", userID, "role", role}
	if tenantID != nil {
		fields = append(fields, "tenant_id", *tenantID)
	}
	return With(ctx, fields...)
}

// From returns the logger stored in context, or default if missing.
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return LoggerWrapper()
}
