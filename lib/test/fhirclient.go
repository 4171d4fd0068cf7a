package test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	fhirclient "github.com/SanteonNL/go-fhir-client"
	"github.com/KLTN-2025/PTNTYTST5951/lib/coolfhir"
	"github.com/KLTN-2025/PTNTYTST5951/lib/must"
	"github.com/KLTN-2025/PTNTYTST5951/lib/to"
	"github.com/google/uuid"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
)

type BaseResource struct {
	Id           string              `json:"id"`
	Identifier   []fhir.Identifier   `json:"identifier"`
	Telecom      []fhir.ContactPoint `json:"telecom"`
	Url          string              `json:"url"`
	Practitioner *fhir.Reference     `json:"practitioner"`
	Type         string              `json:"resourceType"`
	Data         []byte              `json:"-"`
}

var _ fhirclient.Client = &StubFHIRClient{}

// StubFHIRClient is an in-memory FHIR client for unit tests. It supports reads, token searches on identifier and telecom,
// searches on url and practitioner, (conditional) creates, updates, deletes and transaction bundles. It is safe for concurrent use.
type StubFHIRClient struct {
	mux       sync.Mutex
	Resources []any
	Metadata  fhir.CapabilityStatement
	// CreatedResources is a list of resources that have been created using this client.
	// It's not used by the client itself, but can be used by tests to verify that the client has been used correctly.
	CreatedResources map[string][]any
	// DeletedResources contains the paths of deleted resources.
	DeletedResources []string
	// Transactions contains the transaction bundles that were submitted.
	Transactions []fhir.Bundle
	// Error is an error that will be returned by all methods of this client.
	Error error
	// DeleteError is returned by delete operations only.
	DeleteError error
}

func (s *StubFHIRClient) Read(path string, target any, opts ...fhirclient.Option) error {
	return s.ReadWithContext(context.Background(), path, target, opts...)
}

func (s *StubFHIRClient) ReadWithContext(_ context.Context, path string, target any, opts ...fhirclient.Option) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.Error != nil {
		return s.Error
	}
	if path == "metadata" {
		unmarshalInto(s.Metadata, target)
		return respond(s, opts, http.StatusOK)
	}
	if idx := s.indexOf(path); idx >= 0 {
		unmarshalInto(s.Resources[idx], target)
		return respond(s, opts, http.StatusOK)
	}
	return notFound(s, opts)
}

func (s *StubFHIRClient) Search(resourceType string, query url.Values, target any, opts ...fhirclient.Option) error {
	return s.SearchWithContext(context.Background(), resourceType, query, target, opts...)
}

func (s *StubFHIRClient) SearchWithContext(_ context.Context, resourceType string, query url.Values, target any, opts ...fhirclient.Option) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.Error != nil {
		return s.Error
	}
	candidates, err := s.search(resourceType, query)
	if err != nil {
		return err
	}
	count := len(candidates)
	if values := query["_count"]; len(values) > 0 {
		if count, err = strconv.Atoi(values[0]); err != nil {
			return fmt.Errorf("invalid _count parameter value: %s", values[0])
		}
	}
	result := fhir.Bundle{
		Type:  fhir.BundleTypeSearchset,
		Total: to.Ptr(len(candidates)),
	}
	for i, candidate := range candidates {
		if i >= count {
			break
		}
		result.Entry = append(result.Entry, fhir.BundleEntry{
			Resource: candidate.Data,
		})
	}
	unmarshalInto(result, target)
	return respond(s, opts, http.StatusOK)
}

func (s *StubFHIRClient) search(resourceType string, query url.Values) ([]BaseResource, error) {
	var candidates []BaseResource
	for _, res := range s.Resources {
		baseResource := describe(res)
		if baseResource.Type != resourceType {
			continue
		}
		matches, err := matchesQuery(baseResource, query)
		if err != nil {
			return nil, err
		}
		if matches {
			candidates = append(candidates, baseResource)
		}
	}
	return candidates, nil
}

// matchesQuery evaluates the query with AND semantics: every value of every parameter must match.
func matchesQuery(resource BaseResource, query url.Values) (bool, error) {
	for name, values := range query {
		for _, value := range values {
			switch name {
			case "identifier":
				system, tokenValue := coolfhir.ParseTokenParam(value)
				matched := false
				for _, identifier := range resource.Identifier {
					if (system == "" || to.EmptyString(identifier.System) == system) &&
						(tokenValue == "" || to.EmptyString(identifier.Value) == tokenValue) {
						matched = true
					}
				}
				if !matched {
					return false, nil
				}
			case "telecom":
				system, tokenValue := coolfhir.ParseTokenParam(value)
				matched := false
				for _, contactPoint := range resource.Telecom {
					if (system == "" || (contactPoint.System != nil && contactPoint.System.Code() == system)) &&
						(tokenValue == "" || to.EmptyString(contactPoint.Value) == tokenValue) {
						matched = true
					}
				}
				if !matched {
					return false, nil
				}
			case "_id":
				if resource.Id != value {
					return false, nil
				}
			case "url":
				if resource.Url != value {
					return false, nil
				}
			case "practitioner":
				reference := ""
				if resource.Practitioner != nil {
					reference = to.EmptyString(resource.Practitioner.Reference)
				}
				if reference != value && reference != "Practitioner/"+value {
					return false, nil
				}
			case "_count", "_total":
			default:
				return false, fmt.Errorf("unsupported query parameter: %s", name)
			}
		}
	}
	return true, nil
}

func (s *StubFHIRClient) Create(resource any, result any, opts ...fhirclient.Option) error {
	return s.CreateWithContext(context.Background(), resource, result, opts...)
}

func (s *StubFHIRClient) CreateWithContext(_ context.Context, resource any, result any, opts ...fhirclient.Option) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.Error != nil {
		return s.Error
	}
	baseResource := describe(resource)
	if baseResource.Type == "" {
		return fmt.Errorf("can't defer resource type of %T", resource)
	}
	if baseResource.Type == "Bundle" {
		return s.transaction(resource, result, opts)
	}
	request := s.prepareRequest(opts)
	if ifNoneExist := request.Header.Get(coolfhir.IfNoneExistHeader); ifNoneExist != "" {
		query, err := url.ParseQuery(ifNoneExist)
		if err != nil {
			return badRequest(s, opts, "invalid If-None-Exist header")
		}
		existing, err := s.search(baseResource.Type, query)
		if err != nil {
			return err
		}
		if len(existing) > 1 {
			return operationOutcome(s, opts, http.StatusPreconditionFailed, "multiple matches for If-None-Exist")
		}
		if len(existing) == 1 {
			unmarshalInto(json.RawMessage(existing[0].Data), result)
			return respond(s, opts, http.StatusOK)
		}
	}

	var resourceAsMap = make(map[string]interface{})
	unmarshalInto(resource, &resourceAsMap)
	if resourceAsMap["id"] == nil {
		resourceAsMap["id"] = uuid.NewString()
	} else if s.indexOf(baseResource.Type+"/"+resourceAsMap["id"].(string)) >= 0 {
		return errors.New("resource already exists")
	}
	s.Resources = append(s.Resources, resourceAsMap)
	if s.CreatedResources == nil {
		s.CreatedResources = make(map[string][]any)
	}
	s.CreatedResources[baseResource.Type] = append(s.CreatedResources[baseResource.Type], resourceAsMap)
	unmarshalInto(resourceAsMap, result)
	return respond(s, opts, http.StatusCreated)
}

func (s *StubFHIRClient) transaction(resource any, result any, opts []fhirclient.Option) error {
	var bundle fhir.Bundle
	unmarshalInto(resource, &bundle)
	if bundle.Type != fhir.BundleTypeTransaction {
		return badRequest(s, opts, "only transaction bundles are supported")
	}
	response := fhir.Bundle{Type: fhir.BundleTypeTransactionResponse}
	// Created resources get their id up front, so local (urn:uuid) references to them can be resolved.
	var localReferences []string
	assignedIDs := make(map[int]string)
	for i, entry := range bundle.Entry {
		if entry.Request == nil {
			return badRequest(s, opts, "bundle entry without request")
		}
		if entry.Request.Method != fhir.HTTPVerbPOST {
			continue
		}
		assignedIDs[i] = uuid.NewString()
		if fullUrl := to.EmptyString(entry.FullUrl); fullUrl != "" {
			localReferences = append(localReferences, `"`+fullUrl+`"`, `"`+entry.Request.Url+"/"+assignedIDs[i]+`"`)
		}
	}
	resolver := strings.NewReplacer(localReferences...)
	for i, entry := range bundle.Entry {
		if len(entry.Resource) > 0 {
			entry.Resource = json.RawMessage(resolver.Replace(string(entry.Resource)))
		}
		var location *string
		switch entry.Request.Method {
		case fhir.HTTPVerbPOST:
			var resourceAsMap map[string]any
			unmarshalInto(entry.Resource, &resourceAsMap)
			if resourceAsMap == nil {
				return badRequest(s, opts, "bundle entry without resource")
			}
			resourceAsMap["id"] = assignedIDs[i]
			s.Resources = append(s.Resources, resourceAsMap)
			if s.CreatedResources == nil {
				s.CreatedResources = make(map[string][]any)
			}
			s.CreatedResources[entry.Request.Url] = append(s.CreatedResources[entry.Request.Url], resourceAsMap)
			location = to.Ptr(entry.Request.Url + "/" + assignedIDs[i] + "/_history/1")
		case fhir.HTTPVerbPUT:
			if idx := s.indexOf(entry.Request.Url); idx >= 0 {
				s.Resources[idx] = json.RawMessage(entry.Resource)
			} else {
				s.Resources = append(s.Resources, json.RawMessage(entry.Resource))
			}
		case fhir.HTTPVerbDELETE:
			s.remove(entry.Request.Url)
		default:
			return badRequest(s, opts, "unsupported bundle entry method: "+entry.Request.Method.Code())
		}
		response.Entry = append(response.Entry, fhir.BundleEntry{
			Response: &fhir.BundleEntryResponse{Status: "200 OK", Location: location},
		})
	}
	s.Transactions = append(s.Transactions, bundle)
	unmarshalInto(response, result)
	return respond(s, opts, http.StatusOK)
}

func (s *StubFHIRClient) Update(path string, resource any, result any, opts ...fhirclient.Option) error {
	return s.UpdateWithContext(context.Background(), path, resource, result, opts...)
}

func (s *StubFHIRClient) UpdateWithContext(_ context.Context, path string, resource any, result any, opts ...fhirclient.Option) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.Error != nil {
		return s.Error
	}
	idx := s.indexOf(path)
	if idx < 0 {
		return notFound(s, opts)
	}
	s.Resources[idx] = resource
	unmarshalInto(resource, result)
	return respond(s, opts, http.StatusOK)
}

func (s *StubFHIRClient) Delete(path string, opts ...fhirclient.Option) error {
	return s.DeleteWithContext(context.Background(), path, opts...)
}

func (s *StubFHIRClient) DeleteWithContext(_ context.Context, path string, opts ...fhirclient.Option) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.Error != nil {
		return s.Error
	}
	if s.DeleteError != nil {
		return s.DeleteError
	}
	s.remove(path)
	s.DeletedResources = append(s.DeletedResources, path)
	return respond(s, opts, http.StatusNoContent)
}

func (s *StubFHIRClient) Path(path ...string) *url.URL {
	return must.ParseURL("stub:" + strings.Join(path, "/"))
}

// Exists reports whether a resource with the given path (e.g. Patient/1) is stored.
func (s *StubFHIRClient) Exists(path string) bool {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.indexOf(path) >= 0
}

func (s *StubFHIRClient) indexOf(path string) int {
	for i, resource := range s.Resources {
		baseResource := describe(resource)
		if path == baseResource.Type+"/"+baseResource.Id {
			return i
		}
	}
	return -1
}

func (s *StubFHIRClient) remove(path string) {
	if idx := s.indexOf(path); idx >= 0 {
		s.Resources = append(s.Resources[:idx], s.Resources[idx+1:]...)
	}
}

// prepareRequest applies the pre-request options to a dummy request, so that the stub can inspect headers set by the caller.
func (s *StubFHIRClient) prepareRequest(opts []fhirclient.Option) *http.Request {
	request, _ := http.NewRequest(http.MethodPost, "stub:", nil)
	for _, opt := range opts {
		if pre, ok := opt.(fhirclient.PreRequestOption); ok {
			pre(s, request)
		}
	}
	return request
}

func respond(client fhirclient.Client, opts []fhirclient.Option, statusCode int) error {
	for _, opt := range opts {
		if post, ok := opt.(fhirclient.PostRequestOption); ok {
			if err := post(client, &http.Response{
				Status:     strconv.Itoa(statusCode) + " " + http.StatusText(statusCode),
				StatusCode: statusCode,
				Header:     http.Header{},
				Body:       io.NopCloser(strings.NewReader("")),
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func notFound(client fhirclient.Client, opts []fhirclient.Option) error {
	return operationOutcome(client, opts, http.StatusNotFound, "resource not found")
}

func badRequest(client fhirclient.Client, opts []fhirclient.Option, diagnostics string) error {
	return operationOutcome(client, opts, http.StatusBadRequest, diagnostics)
}

func operationOutcome(client fhirclient.Client, opts []fhirclient.Option, statusCode int, diagnostics string) error {
	if err := respond(client, opts, statusCode); err != nil {
		return err
	}
	return fhirclient.OperationOutcomeError{
		OperationOutcome: fhir.OperationOutcome{
			Issue: []fhir.OperationOutcomeIssue{
				{
					Severity:    fhir.IssueSeverityError,
					Code:        fhir.IssueTypeProcessing,
					Diagnostics: to.Ptr(diagnostics),
				},
			},
		},
		HttpStatusCode: statusCode,
	}
}

func describe(resource any) BaseResource {
	var baseResource BaseResource
	unmarshalInto(resource, &baseResource)
	return baseResource
}

func unmarshalInto(resource interface{}, target interface{}) {
	if target == nil {
		return
	}
	resJSON, err := json.Marshal(resource)
	if err != nil {
		panic(err)
	}
	switch t := target.(type) {
	case *[]byte:
		*t = resJSON
	default:
		if err := json.Unmarshal(resJSON, target); err != nil {
			panic(err)
		}
		if baseResource, ok := target.(*BaseResource); ok {
			baseResource.Data = resJSON
		}
	}
}
