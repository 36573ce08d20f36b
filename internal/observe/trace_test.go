package observe

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// useTestTracer installs an in-memory tracer provider as the global one for
// the duration of the test.
func useTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(orig)
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

// captureLogs redirects the default logger into a buffer.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(orig) })
	return &buf
}

func TestCorrelationID_EmptyByDefault(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID(background) = %q, want empty", got)
	}
}

func TestStartSpan_TagsChat(t *testing.T) {
	exp := useTestTracer(t)

	ctx := WithChat(context.Background(), "chat-42")
	ctx, span := StartSpan(ctx, "tutor.correct")
	if cid := CorrelationID(ctx); len(cid) != 32 {
		t.Errorf("correlation ID = %q, want 32 hex chars", cid)
	}
	EndSpan(span, nil)

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "tutor.correct" {
		t.Errorf("span name = %q, want tutor.correct", spans[0].Name)
	}
	var found bool
	for _, kv := range spans[0].Attributes {
		if string(kv.Key) == "chat_id" && kv.Value.AsString() == "chat-42" {
			found = true
		}
	}
	if !found {
		t.Errorf("span attributes %v missing chat_id", spans[0].Attributes)
	}
	if spans[0].Status.Code == codes.Error {
		t.Error("span without error has error status")
	}
}

func TestStartSpan_NoChat(t *testing.T) {
	exp := useTestTracer(t)

	_, span := StartSpan(context.Background(), "tutor.translate")
	span.End()

	for _, kv := range exp.GetSpans()[0].Attributes {
		if string(kv.Key) == "chat_id" {
			t.Errorf("unexpected chat_id attribute %q", kv.Value.AsString())
		}
	}
}

func TestEndSpan_RecordsError(t *testing.T) {
	exp := useTestTracer(t)

	_, span := StartSpan(context.Background(), "tutor.synthesize")
	EndSpan(span, errors.New("tts down"))

	s := exp.GetSpans()[0]
	if s.Status.Code != codes.Error || s.Status.Description != "tts down" {
		t.Errorf("status = %+v, want error \"tts down\"", s.Status)
	}
	if len(s.Events) == 0 {
		t.Error("error was not recorded as a span event")
	}
}

func TestChatID(t *testing.T) {
	if got := ChatID(context.Background()); got != "" {
		t.Errorf("ChatID(background) = %q, want empty", got)
	}
	ctx := WithChat(context.Background(), "a")
	ctx = WithChat(ctx, "b")
	if got := ChatID(ctx); got != "b" {
		t.Errorf("ChatID = %q, want innermost value b", got)
	}
}

func TestLogger_Enrichment(t *testing.T) {
	useTestTracer(t)

	tests := []struct {
		name    string
		ctx     func() context.Context
		want    []string
		notWant []string
	}{
		{
			name:    "bare context",
			ctx:     context.Background,
			notWant: []string{"trace_id", "chat_id"},
		},
		{
			name:    "chat only",
			ctx:     func() context.Context { return WithChat(context.Background(), "c1") },
			want:    []string{"chat_id=c1"},
			notWant: []string{"trace_id"},
		},
		{
			name: "chat and span",
			ctx: func() context.Context {
				ctx, _ := StartSpan(WithChat(context.Background(), "c2"), "tutor.turn")
				return ctx
			},
			want: []string{"chat_id=c2", "trace_id=", "span_id="},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLogs(t)
			Logger(tt.ctx()).Info("turn completed")
			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("log %q missing %q", out, w)
				}
			}
			for _, nw := range tt.notWant {
				if strings.Contains(out, nw) {
					t.Errorf("log %q should not contain %q", out, nw)
				}
			}
		})
	}
}
