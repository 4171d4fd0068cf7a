//go:generate mockgen -destination=./mock/fhirclient_mock.go -package=mock github.com/SanteonNL/go-fhir-client Client
package fhirgateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	fhirclient "github.com/SanteonNL/go-fhir-client"
	"github.com/KLTN-2025/PTNTYTST5951/lib/coolfhir"
	"github.com/KLTN-2025/PTNTYTST5951/lib/otel"
	"github.com/rs/zerolog/log"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrNotFound is returned when the resource does not exist (404) or has been deleted (410).
	ErrNotFound = errors.New("resource not found")
	// ErrBadRequest is returned when the FHIR server rejected the request (400, 422).
	ErrBadRequest = errors.New("request rejected by FHIR server")
	// ErrPreconditionFailed is returned when a conditional operation matched more than one resource (412).
	ErrPreconditionFailed = errors.New("precondition failed")
	// ErrUpstream is returned when the FHIR server is unreachable or failed with another status.
	ErrUpstream = errors.New("FHIR server unavailable")
)

// Error describes a failed FHIR interaction. It matches (errors.Is) one of the sentinel errors of this package
// and wraps the underlying client error.
type Error struct {
	Operation  string
	Path       string
	StatusCode int
	Kind       error
	Cause      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("FHIR %s %s failed (status=%d): %v", e.Operation, e.Path, e.StatusCode, e.Cause)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Cause}
}

// Gateway is the typed entry point for all reads and writes to the clinical record store.
type Gateway struct {
	client fhirclient.Client
	tracer trace.Tracer
}

func New(client fhirclient.Client) *Gateway {
	return &Gateway{
		client: client,
		tracer: otelapi.Tracer("fhirgateway"),
	}
}

// Read reads the resource with the given type and id into target.
func (g *Gateway) Read(ctx context.Context, resourceType string, id string, target any) error {
	path := resourceType + "/" + id
	ctx, span := g.start(ctx, "read", resourceType)
	defer span.End()
	var statusCode int
	err := g.client.ReadWithContext(ctx, path, target, fhirclient.ResponseStatusCode(&statusCode))
	return otel.Error(span, classify("read", path, statusCode, err))
}

// Search performs a search on the given resource type and returns the search set.
func (g *Gateway) Search(ctx context.Context, resourceType string, query url.Values) (*fhir.Bundle, error) {
	ctx, span := g.start(ctx, "search", resourceType)
	defer span.End()
	var statusCode int
	var result fhir.Bundle
	err := g.client.SearchWithContext(ctx, resourceType, query, &result, fhirclient.ResponseStatusCode(&statusCode))
	if err != nil {
		return nil, otel.Error(span, classify("search", resourceType, statusCode, err))
	}
	span.SetAttributes(attribute.Int(otel.FHIREntryCount, len(result.Entry)))
	return &result, nil
}

// SearchByIdentifier searches for resources having the identifier system|value.
func (g *Gateway) SearchByIdentifier(ctx context.Context, resourceType string, system string, value string) (*fhir.Bundle, error) {
	return g.Search(ctx, resourceType, url.Values{"identifier": []string{coolfhir.TokenParam(system, value)}})
}

// SearchByTelecom searches for resources having a contact point with the given channel (phone, email, url) and value.
func (g *Gateway) SearchByTelecom(ctx context.Context, resourceType string, system fhir.ContactPointSystem, value string) (*fhir.Bundle, error) {
	return g.Search(ctx, resourceType, url.Values{"telecom": []string{coolfhir.TokenParam(system.Code(), value)}})
}

// Create creates the resource and unmarshals the stored resource into result. If ifNoneExist is set, it is sent as
// If-None-Exist header, making the create conditional. The returned bool is false when the server returned an existing
// resource matching the condition instead of creating a new one.
func (g *Gateway) Create(ctx context.Context, resource any, result any, ifNoneExist string) (bool, error) {
	desc, err := fhirclient.DescribeResource(resource)
	if err != nil {
		return false, fmt.Errorf("FHIR create: %w", err)
	}
	ctx, span := g.start(ctx, "create", desc.Type)
	defer span.End()
	var statusCode int
	opts := []fhirclient.Option{fhirclient.ResponseStatusCode(&statusCode)}
	if ifNoneExist != "" {
		opts = append(opts, fhirclient.RequestHeaders(http.Header{
			coolfhir.IfNoneExistHeader: []string{ifNoneExist},
		}))
	}
	if err := g.client.CreateWithContext(ctx, resource, result, opts...); err != nil {
		return false, otel.Error(span, classify("create", desc.Type, statusCode, err))
	}
	created := statusCode != http.StatusOK
	if !created {
		log.Ctx(ctx).Info().Msgf("Conditional create of %s matched an existing resource", desc.Type)
	}
	return created, nil
}

// Update replaces the resource with the given type and id.
func (g *Gateway) Update(ctx context.Context, resourceType string, id string, resource any, result any) error {
	path := resourceType + "/" + id
	ctx, span := g.start(ctx, "update", resourceType)
	defer span.End()
	var statusCode int
	err := g.client.UpdateWithContext(ctx, path, resource, result, fhirclient.ResponseStatusCode(&statusCode))
	return otel.Error(span, classify("update", path, statusCode, err))
}

// Delete deletes the resource with the given type and id.
func (g *Gateway) Delete(ctx context.Context, resourceType string, id string) error {
	path := resourceType + "/" + id
	ctx, span := g.start(ctx, "delete", resourceType)
	defer span.End()
	var statusCode int
	err := g.client.DeleteWithContext(ctx, path, fhirclient.ResponseStatusCode(&statusCode))
	return otel.Error(span, classify("delete", path, statusCode, err))
}

// SubmitTransaction posts a transaction bundle to the base URL of the FHIR server and returns the transaction-response.
func (g *Gateway) SubmitTransaction(ctx context.Context, bundle fhir.Bundle) (*fhir.Bundle, error) {
	if bundle.Type != fhir.BundleTypeTransaction {
		return nil, fmt.Errorf("FHIR transaction: bundle type must be transaction, got %s", bundle.Type.Code())
	}
	ctx, span := g.start(ctx, "transaction", "Bundle")
	defer span.End()
	span.SetAttributes(attribute.Int(otel.FHIREntryCount, len(bundle.Entry)))
	var statusCode int
	var result fhir.Bundle
	err := g.client.CreateWithContext(ctx, bundle, &result, fhirclient.AtPath("/"), fhirclient.ResponseStatusCode(&statusCode))
	if err != nil {
		return nil, otel.Error(span, classify("transaction", "/", statusCode, err))
	}
	return &result, nil
}

// FetchNextPage follows the 'next' link of a search set. It returns nil if there is no next page.
func (g *Gateway) FetchNextPage(ctx context.Context, bundle *fhir.Bundle) (*fhir.Bundle, error) {
	if bundle == nil {
		return nil, nil
	}
	for _, link := range bundle.Link {
		if link.Relation != "next" {
			continue
		}
		var statusCode int
		var result fhir.Bundle
		if err := g.client.ReadWithContext(ctx, link.Url, &result, fhirclient.ResponseStatusCode(&statusCode)); err != nil {
			return nil, classify("next page", link.Url, statusCode, err)
		}
		return &result, nil
	}
	return nil, nil
}

// Ping reads the CapabilityStatement of the FHIR server.
func (g *Gateway) Ping(ctx context.Context) error {
	var statusCode int
	var capabilityStatement fhir.CapabilityStatement
	err := g.client.ReadWithContext(ctx, "metadata", &capabilityStatement, fhirclient.ResponseStatusCode(&statusCode))
	return classify("read", "metadata", statusCode, err)
}

// Found reports whether the search set contains at least one match.
func Found(bundle *fhir.Bundle) bool {
	if bundle == nil {
		return false
	}
	if bundle.Total != nil && *bundle.Total == 0 {
		return false
	}
	return len(bundle.Entry) > 0
}

func (g *Gateway) start(ctx context.Context, operation string, resourceType string) (context.Context, trace.Span) {
	return g.tracer.Start(ctx, "fhir."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String(otel.FHIRResourceType, resourceType)),
	)
}

func classify(operation string, path string, statusCode int, err error) error {
	if err == nil {
		return nil
	}
	if statusCode == 0 {
		var outcomeErr fhirclient.OperationOutcomeError
		var outcomeErrPtr *fhirclient.OperationOutcomeError
		if errors.As(err, &outcomeErr) {
			statusCode = outcomeErr.HttpStatusCode
		} else if errors.As(err, &outcomeErrPtr) {
			statusCode = outcomeErrPtr.HttpStatusCode
		}
	}
	result := &Error{
		Operation:  operation,
		Path:       path,
		StatusCode: statusCode,
		Cause:      err,
	}
	switch statusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		result.Kind = ErrBadRequest
	case http.StatusNotFound, http.StatusGone:
		result.Kind = ErrNotFound
	case http.StatusPreconditionFailed:
		result.Kind = ErrPreconditionFailed
	default:
		result.Kind = ErrUpstream
	}
	return result
}
