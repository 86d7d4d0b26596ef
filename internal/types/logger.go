package types

import "context"

// Logger receives warnings and debug traces.
type Logger interface {
	Warnf(format string, args ...any)
	Debugf(format string, args ...any)
}

// ContextLogger is a Logger that can tag its lines with the request id and
// extractor name carried by a context.
type ContextLogger interface {
	Logger
	ForContext(ctx context.Context) Logger
}

// LoggerFor returns the logger to use under ctx.
func LoggerFor(ctx context.Context, l Logger) Logger {
	if cl, ok := l.(ContextLogger); ok {
		return cl.ForContext(ctx)
	}
	return l
}
