package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for the TikTalk tracer.
const tracerName = "github.com/MrWong99/tiktalk"

type chatKey struct{}

// Tracer returns the tracer of the globally registered provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span. When ctx carries a chat id from [WithChat], the
// span is tagged with it. The caller must end the span, usually via
// [EndSpan].
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if id := ChatID(ctx); id != "" {
		opts = append(opts, trace.WithAttributes(attribute.String("chat_id", id)))
	}
	return Tracer().Start(ctx, name, opts...)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// WithChat returns a context that attributes logs and spans to a chat.
func WithChat(ctx context.Context, chatID string) context.Context {
	return context.WithValue(ctx, chatKey{}, chatID)
}

// ChatID returns the chat id stored by [WithChat], or "".
func ChatID(ctx context.Context) string {
	id, _ := ctx.Value(chatKey{}).(string)
	return id
}

// CorrelationID extracts the trace ID from the span context in ctx.
// Returns the empty string when no active span with a valid trace ID exists.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger enriched with the chat id and the
// trace_id and span_id of the active span, whichever ctx carries.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if id := ChatID(ctx); id != "" {
		l = l.With(slog.String("chat_id", id))
	}
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}
