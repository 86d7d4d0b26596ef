package types

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	// RequestIDKey is the context key for the resolution request id.
	RequestIDKey contextKey = "requestID"
	// ExtractorNameKey is the context key for the extractor currently running.
	ExtractorNameKey contextKey = "extractorName"
)

// WithRequestID returns a context carrying id. An empty id is replaced by a new uuid.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, RequestIDKey, id)
}

// RequestIDFromContext returns the request id from the context.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(RequestIDKey).(string)
	return id, ok
}

// WithExtractorName returns a new context with the extractor name added.
func WithExtractorName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ExtractorNameKey, name)
}

// ExtractorNameFromContext returns the extractor name from the context.
func ExtractorNameFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(ExtractorNameKey).(string)
	return name, ok
}
