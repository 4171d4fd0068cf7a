package fhirgateway

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	fhirclient "github.com/SanteonNL/go-fhir-client"
	"github.com/KLTN-2025/PTNTYTST5951/fhirgateway/mock"
	"github.com/KLTN-2025/PTNTYTST5951/lib/coolfhir"
	"github.com/KLTN-2025/PTNTYTST5951/lib/test"
	"github.com/KLTN-2025/PTNTYTST5951/lib/to"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
	"go.uber.org/mock/gomock"
)

func patient(id string, nationalID string, phone string) fhir.Patient {
	result := fhir.Patient{
		Identifier: []fhir.Identifier{
			{System: to.Ptr(coolfhir.NationalIDNamingSystem), Value: to.Ptr(nationalID)},
		},
		Telecom: []fhir.ContactPoint{
			{System: to.Ptr(fhir.ContactPointSystemPhone), Value: to.Ptr(phone)},
		},
	}
	if id != "" {
		result.Id = to.Ptr(id)
	}
	return result
}

func TestGateway_Read(t *testing.T) {
	ctx := context.Background()
	client := &test.StubFHIRClient{Resources: []any{patient("1", "001", "0901")}}
	gateway := New(client)

	t.Run("ok", func(t *testing.T) {
		var result fhir.Patient
		err := gateway.Read(ctx, "Patient", "1", &result)
		require.NoError(t, err)
		assert.Equal(t, "1", *result.Id)
	})
	t.Run("not found", func(t *testing.T) {
		var result fhir.Patient
		err := gateway.Read(ctx, "Patient", "2", &result)
		require.ErrorIs(t, err, ErrNotFound)
		var gatewayErr *Error
		require.ErrorAs(t, err, &gatewayErr)
		assert.Equal(t, http.StatusNotFound, gatewayErr.StatusCode)
		assert.Equal(t, "Patient/2", gatewayErr.Path)
	})
}

func TestGateway_Search(t *testing.T) {
	ctx := context.Background()
	client := &test.StubFHIRClient{Resources: []any{patient("1", "001", "0901"), patient("2", "002", "0902")}}
	gateway := New(client)

	t.Run("by identifier", func(t *testing.T) {
		bundle, err := gateway.SearchByIdentifier(ctx, "Patient", coolfhir.NationalIDNamingSystem, "002")
		require.NoError(t, err)
		assert.True(t, Found(bundle))
		require.Len(t, bundle.Entry, 1)
	})
	t.Run("by telecom", func(t *testing.T) {
		bundle, err := gateway.SearchByTelecom(ctx, "Patient", fhir.ContactPointSystemPhone, "0901")
		require.NoError(t, err)
		assert.True(t, Found(bundle))
	})
	t.Run("no match", func(t *testing.T) {
		bundle, err := gateway.SearchByTelecom(ctx, "Patient", fhir.ContactPointSystemEmail, "0901")
		require.NoError(t, err)
		assert.False(t, Found(bundle))
	})
	t.Run("transport failure", func(t *testing.T) {
		client := &test.StubFHIRClient{Error: errors.New("connection refused")}
		_, err := New(client).Search(ctx, "Patient", url.Values{})
		require.ErrorIs(t, err, ErrUpstream)
		assert.ErrorContains(t, err, "connection refused")
	})
}

func TestGateway_SearchEscapesTokenValues(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	client := mock.NewMockClient(ctrl)
	client.EXPECT().SearchWithContext(gomock.Any(), "Patient", url.Values{"telecom": []string{`phone|0916\,023`}}, gomock.Any(), gomock.Any()).
		Return(nil)
	client.EXPECT().SearchWithContext(gomock.Any(), "Patient", url.Values{"identifier": []string{coolfhir.NationalIDNamingSystem + `|001\|002`}}, gomock.Any(), gomock.Any()).
		Return(nil)
	gateway := New(client)

	_, err := gateway.SearchByTelecom(ctx, "Patient", fhir.ContactPointSystemPhone, "0916,023")
	require.NoError(t, err)
	_, err = gateway.SearchByIdentifier(ctx, "Patient", coolfhir.NationalIDNamingSystem, "001|002")
	require.NoError(t, err)
}

func TestGateway_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("created", func(t *testing.T) {
		client := &test.StubFHIRClient{}
		var result fhir.Patient
		created, err := New(client).Create(ctx, patient("", "001", "0901"), &result, "")
		require.NoError(t, err)
		assert.True(t, created)
		assert.NotEmpty(t, *result.Id)
		assert.Len(t, client.CreatedResources["Patient"], 1)
	})
	t.Run("conditional create matching existing resource", func(t *testing.T) {
		client := &test.StubFHIRClient{Resources: []any{patient("1", "001", "0901")}}
		var result fhir.Patient
		created, err := New(client).Create(ctx, patient("", "001", "0901"), &result, "identifier="+url.QueryEscape(coolfhir.NationalIDNamingSystem+"|001"))
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, "1", *result.Id)
		assert.Empty(t, client.CreatedResources)
	})
	t.Run("conditional create matching multiple resources", func(t *testing.T) {
		client := &test.StubFHIRClient{Resources: []any{patient("1", "001", "0901"), patient("2", "002", "0901")}}
		var result fhir.Patient
		_, err := New(client).Create(ctx, patient("", "003", "0901"), &result, "telecom=phone%7C0901")
		require.ErrorIs(t, err, ErrPreconditionFailed)
	})
	t.Run("resource without type", func(t *testing.T) {
		_, err := New(&test.StubFHIRClient{}).Create(ctx, map[string]string{}, nil, "")
		require.Error(t, err)
	})
}

func TestGateway_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	client := &test.StubFHIRClient{Resources: []any{patient("1", "001", "0901")}}
	gateway := New(client)

	updated := patient("1", "001", "0999")
	var result fhir.Patient
	require.NoError(t, gateway.Update(ctx, "Patient", "1", updated, &result))
	assert.Equal(t, "0999", *result.Telecom[0].Value)

	err := gateway.Update(ctx, "Patient", "2", updated, &result)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, gateway.Delete(ctx, "Patient", "1"))
	assert.False(t, client.Exists("Patient/1"))
	assert.Equal(t, []string{"Patient/1"}, client.DeletedResources)
}

func TestGateway_SubmitTransaction(t *testing.T) {
	ctx := context.Background()
	t.Run("ok", func(t *testing.T) {
		client := &test.StubFHIRClient{Resources: []any{patient("1", "001", "0901")}}
		bundle := coolfhir.Transaction().Delete("Patient/1").Bundle()
		result, err := New(client).SubmitTransaction(ctx, bundle)
		require.NoError(t, err)
		assert.Equal(t, fhir.BundleTypeTransactionResponse, result.Type)
		assert.False(t, client.Exists("Patient/1"))
		assert.Len(t, client.Transactions, 1)
	})
	t.Run("not a transaction", func(t *testing.T) {
		_, err := New(&test.StubFHIRClient{}).SubmitTransaction(ctx, fhir.Bundle{Type: fhir.BundleTypeBatch})
		require.EqualError(t, err, "FHIR transaction: bundle type must be transaction, got batch")
	})
	t.Run("posted at base URL", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		client := mock.NewMockClient(ctrl)
		client.EXPECT().Path("/").Return(&url.URL{Scheme: "http", Host: "example.com", Path: "/fhir/"})
		client.EXPECT().CreateWithContext(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ any, _ any, opts ...fhirclient.Option) error {
				request, _ := http.NewRequest(http.MethodPost, "http://example.com/fhir", nil)
				opts[0].(fhirclient.PreRequestOption)(client, request)
				assert.Equal(t, "/fhir/", request.URL.Path)
				return nil
			})
		_, err := New(client).SubmitTransaction(ctx, coolfhir.Transaction().Bundle())
		require.NoError(t, err)
	})
}

func TestGateway_FetchNextPage(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	client := mock.NewMockClient(ctrl)
	gateway := New(client)

	t.Run("no next link", func(t *testing.T) {
		result, err := gateway.FetchNextPage(ctx, &fhir.Bundle{Link: []fhir.BundleLink{{Relation: "self", Url: "http://example.com/fhir/Patient"}}})
		require.NoError(t, err)
		assert.Nil(t, result)
	})
	t.Run("follows next link", func(t *testing.T) {
		client.EXPECT().ReadWithContext(ctx, "http://example.com/fhir?page=2", gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, target any, _ ...fhirclient.Option) error {
				*target.(*fhir.Bundle) = fhir.Bundle{Entry: []fhir.BundleEntry{{}}}
				return nil
			})
		result, err := gateway.FetchNextPage(ctx, &fhir.Bundle{Link: []fhir.BundleLink{{Relation: "next", Url: "http://example.com/fhir?page=2"}}})
		require.NoError(t, err)
		assert.Len(t, result.Entry, 1)
	})
}

func TestGateway_Ping(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, New(&test.StubFHIRClient{}).Ping(ctx))
	err := New(&test.StubFHIRClient{Error: errors.New("timeout")}).Ping(ctx)
	require.ErrorIs(t, err, ErrUpstream)
}

func TestFound(t *testing.T) {
	assert.False(t, Found(nil))
	assert.False(t, Found(&fhir.Bundle{}))
	assert.False(t, Found(&fhir.Bundle{Total: to.Ptr(0), Entry: []fhir.BundleEntry{{}}}))
	assert.True(t, Found(&fhir.Bundle{Entry: []fhir.BundleEntry{{}}}))
	assert.True(t, Found(&fhir.Bundle{Total: to.Ptr(1), Entry: []fhir.BundleEntry{{}}}))
}

func Test_classify(t *testing.T) {
	tests := []struct {
		statusCode int
		expected   error
	}{
		{http.StatusBadRequest, ErrBadRequest},
		{http.StatusUnprocessableEntity, ErrBadRequest},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusGone, ErrNotFound},
		{http.StatusPreconditionFailed, ErrPreconditionFailed},
		{http.StatusInternalServerError, ErrUpstream},
		{0, ErrUpstream},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.statusCode), func(t *testing.T) {
			err := classify("read", "Patient/1", tt.statusCode, errors.New("failed"))
			assert.ErrorIs(t, err, tt.expected)
		})
	}
	t.Run("status from OperationOutcome", func(t *testing.T) {
		err := classify("read", "Patient/1", 0, fhirclient.OperationOutcomeError{HttpStatusCode: http.StatusGone})
		assert.ErrorIs(t, err, ErrNotFound)
	})
	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, classify("read", "Patient/1", http.StatusOK, nil))
	})
}
