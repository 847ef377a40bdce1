package log

import (
	"context"
	"log/slog"
	"os"
)

var (
	defaultLogLevel slog.LevelVar
	defaultLogger   = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     &defaultLogLevel,
	}))
)

func init() {
	defaultLogLevel.Set(slog.LevelInfo)
}

type contextKey struct{}

var loggerKey = contextKey{}

// Ctx returns the logger stored in ctx, or the default logger.
func Ctx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return defaultLogger
}

// With returns a new context carrying logger.
func With(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// WithBackend returns a context whose logger carries the backend's identity.
// Backends call this once at construction so every line they log is
// attributable to a device.
func WithBackend(ctx context.Context, backendType, address string) context.Context {
	l := Ctx(ctx).With(
		slog.String("inverter", backendType),
		slog.String("address", address),
	)
	return With(ctx, l)
}

func SetDefaultLogLevel(level slog.Level) {
	defaultLogLevel.Set(level)
}
