package observe

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/ehr/medassist"

// Tracer returns the tracer of the globally registered TracerProvider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span; the caller must end it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// TraceID returns the trace id of the span in ctx, or "" when there is none.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// WithTrace adds trace_id and span_id from ctx to the logging event.
func WithTrace(ctx context.Context, ev *zerolog.Event) *zerolog.Event {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ev
	}
	return ev.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
}
