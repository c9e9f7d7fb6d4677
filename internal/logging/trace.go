package logging

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

type traceIDKey struct{}

// TraceIDField is the log field name used for trace identifiers.
const TraceIDField = "trace_id"

// NewTraceID returns a fresh, time-sortable trace identifier.
func NewTraceID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// ContextWithTraceID stores traceID in ctx and tags the context logger with it.
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	ctx = context.WithValue(ctx, traceIDKey{}, traceID)
	l := FromContext(ctx).With().Str(TraceIDField, traceID).Logger()
	return l.WithContext(ctx)
}

// TraceIDFromContext returns the trace ID stored in ctx, if any.
func TraceIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(traceIDKey{}).(string)
	return id, ok && id != ""
}

// GetOrGenerateTraceID returns the trace ID in ctx or a new one.
func GetOrGenerateTraceID(ctx context.Context) string {
	if id, ok := TraceIDFromContext(ctx); ok {
		return id
	}
	return NewTraceID()
}
