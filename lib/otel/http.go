package otel

import (
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// HandlerWithTracing starts a server span for every request handled by the given handler.
func HandlerWithTracing(tracer trace.Tracer, operationName string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(
			ctx,
			operationName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String(HTTPMethod, r.Method),
				attribute.String(HTTPURL, r.URL.Path),
				attribute.String(HTTPHost, r.Host),
			),
		)
		defer span.End()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler.ServeHTTP(wrapped, r.WithContext(ctx))

		span.SetAttributes(attribute.Int(HTTPStatusCode, wrapped.statusCode))
		if wrapped.statusCode >= 500 {
			span.SetStatus(codes.Error, http.StatusText(wrapped.statusCode))
		} else {
			span.SetStatus(codes.Ok, "")
		}
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// NewTracedHTTPClient returns an HTTP client whose requests are recorded as client spans.
func NewTracedHTTPClient(name string) *http.Client {
	return &http.Client{
		Transport: NewTracedHTTPTransport(http.DefaultTransport, otel.Tracer(name)),
	}
}

type TracedHTTPTransport struct {
	base   http.RoundTripper
	tracer trace.Tracer
}

func NewTracedHTTPTransport(base http.RoundTripper, tracer trace.Tracer) *TracedHTTPTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &TracedHTTPTransport{
		base:   base,
		tracer: tracer,
	}
}

func (t *TracedHTTPTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, span := t.tracer.Start(req.Context(),
		req.Method+" "+req.URL.Host,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(HTTPMethod, req.Method),
			attribute.String(HTTPURL, req.URL.Scheme+"://"+req.URL.Host+req.URL.Path),
			attribute.String(HTTPHost, req.URL.Host),
		),
	)
	defer span.End()

	req = req.Clone(ctx)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return resp, Error(span, err)
	}
	span.SetAttributes(attribute.Int(HTTPStatusCode, resp.StatusCode))
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", resp.StatusCode))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return resp, nil
}
