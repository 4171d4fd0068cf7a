package assets

import (
	"context"
	"fmt"

	"github.com/KLTN-2025/PTNTYTST5951/lib/otel"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// withTracing records every attempt the S3 client sends as a client span. It hooks into the SDK's middleware stack
// instead of replacing the HTTP client, so that the SDK keeps applying its own transport options (e.g. AWS_CA_BUNDLE).
func withTracing(tracer trace.Tracer) func(*middleware.Stack) error {
	return func(stack *middleware.Stack) error {
		return stack.Deserialize.Add(middleware.DeserializeMiddlewareFunc("BeetaminTracing",
			func(ctx context.Context, in middleware.DeserializeInput, next middleware.DeserializeHandler) (middleware.DeserializeOutput, middleware.Metadata, error) {
				request, ok := in.Request.(*smithyhttp.Request)
				if !ok {
					return next.HandleDeserialize(ctx, in)
				}
				ctx, span := tracer.Start(ctx,
					request.Method+" "+request.URL.Host,
					trace.WithSpanKind(trace.SpanKindClient),
					trace.WithAttributes(
						attribute.String(otel.HTTPMethod, request.Method),
						attribute.String(otel.HTTPURL, request.URL.Scheme+"://"+request.URL.Host+request.URL.Path),
						attribute.String(otel.HTTPHost, request.URL.Host),
					),
				)
				defer span.End()
				otelapi.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(request.Header))

				out, metadata, err := next.HandleDeserialize(ctx, in)
				if response, ok := out.RawResponse.(*smithyhttp.Response); ok && response != nil && response.Response != nil {
					span.SetAttributes(attribute.Int(otel.HTTPStatusCode, response.StatusCode))
					if response.StatusCode >= 400 {
						span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", response.StatusCode))
					}
				}
				return out, metadata, otel.Error(span, err)
			}), middleware.After)
	}
}
