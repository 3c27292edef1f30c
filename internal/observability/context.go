package observability

import "context"

type logContextKey struct{}

// logContext holds the identifiers attached to every log line of a request.
type logContext struct {
	requestID string
	traceID   string
	spanID    string
}

func logContextFrom(ctx context.Context) logContext {
	lc, _ := ctx.Value(logContextKey{}).(logContext)
	return lc
}

func withLogContext(ctx context.Context, update func(*logContext)) context.Context {
	lc := logContextFrom(ctx)
	update(&lc)
	return context.WithValue(ctx, logContextKey{}, lc)
}

func contextFields(ctx context.Context) []Field {
	lc := logContextFrom(ctx)

	var fields []Field
	if lc.requestID != "" {
		fields = append(fields, String("request_id", lc.requestID))
	}
	if lc.traceID != "" {
		fields = append(fields, String("trace_id", lc.traceID))
	}
	if lc.spanID != "" {
		fields = append(fields, String("span_id", lc.spanID))
	}
	return fields
}

// ContextWithRequestID adds a request ID to the context.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return withLogContext(ctx, func(lc *logContext) { lc.requestID = requestID })
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	return logContextFrom(ctx).requestID
}

// ContextWithTraceID adds a trace ID to the context.
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return withLogContext(ctx, func(lc *logContext) { lc.traceID = traceID })
}

// TraceIDFromContext extracts the trace ID from context.
func TraceIDFromContext(ctx context.Context) string {
	return logContextFrom(ctx).traceID
}

// ContextWithSpanID adds a span ID to the context.
func ContextWithSpanID(ctx context.Context, spanID string) context.Context {
	return withLogContext(ctx, func(lc *logContext) { lc.spanID = spanID })
}
