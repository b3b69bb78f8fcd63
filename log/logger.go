package log

import "context"

// Logger is the logging interface used across the service. The context is
// passed so adapters can enrich entries with request-scoped data such as
// trace ids.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...map[string]any)
	Info(ctx context.Context, msg string, fields ...map[string]any)
	Warn(ctx context.Context, msg string, fields ...map[string]any)
	Error(ctx context.Context, msg string, err error, fields ...map[string]any)
	Fatal(ctx context.Context, msg string, err error, fields ...map[string]any)

	// With returns a logger with the fields bound to every entry.
	With(fields map[string]any) Logger
}
