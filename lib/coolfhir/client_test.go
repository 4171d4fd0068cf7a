package coolfhir

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/KLTN-2025/PTNTYTST5951/lib/must"
	"github.com/stretchr/testify/require"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
)

func TestNewClient(t *testing.T) {
	var capturedRequest *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedRequest = r
		w.Header().Set("Content-Type", FHIRContentType)
		_, _ = w.Write([]byte(`{"resourceType":"Patient","id":"1"}`))
	}))
	defer server.Close()

	client := NewClient(must.ParseURL(server.URL+"/fhir"), time.Second)
	var patient fhir.Patient
	err := client.Read("Patient/1", &patient)

	require.NoError(t, err)
	require.Equal(t, "1", *patient.Id)
	require.Equal(t, "/fhir/Patient/1", capturedRequest.URL.Path)
	require.Equal(t, "no-cache", capturedRequest.Header.Get(CacheControlHeader))
}

func TestNewClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(must.ParseURL(server.URL), 50*time.Millisecond)
	var patient fhir.Patient
	err := client.Read("Patient/1", &patient)

	require.Error(t, err)
}
