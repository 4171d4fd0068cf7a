package logging

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// WithFields returns a context carrying a logger that includes the given fields in every entry
// written through log.Ctx(ctx). Fields already present on the context logger are kept.
func WithFields(ctx context.Context, fields map[string]string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	logCtx := zerolog.Ctx(ctx).With()
	for key, value := range fields {
		logCtx = logCtx.Str(key, value)
	}
	logger := logCtx.Logger()
	return logger.WithContext(ctx)
}

// WithTrace adds the OpenTelemetry trace and span IDs of the active span (if any) to the context logger.
func WithTrace(ctx context.Context) context.Context {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return ctx
	}
	return WithFields(ctx, map[string]string{
		"trace_id": span.SpanContext().TraceID().String(),
		"span_id":  span.SpanContext().SpanID().String(),
	})
}

// Logger returns the logger of the context, falling back to the global logger.
func Logger(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		return &log.Logger
	}
	return log.Ctx(ctx)
}
