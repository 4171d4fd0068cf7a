package coolfhir

import (
	"net/http"
	"net/url"
	"time"

	fhirclient "github.com/SanteonNL/go-fhir-client"
	"github.com/KLTN-2025/PTNTYTST5951/lib/otel"
	"github.com/rs/zerolog/log"
	otelapi "go.opentelemetry.io/otel"
)

// DefaultTimeout bounds every request to the FHIR server.
const DefaultTimeout = 8 * time.Second

// Config returns the FHIR client configuration: caching is disabled and non-2xx responses are logged.
func Config() *fhirclient.Config {
	config := fhirclient.DefaultConfig()
	config.UsePostSearch = false
	config.DefaultOptions = []fhirclient.Option{
		fhirclient.RequestHeaders(map[string][]string{
			CacheControlHeader: {"no-cache"},
		}),
	}
	config.Non2xxStatusHandler = func(response *http.Response, responseBody []byte) {
		log.Debug().Msgf("Non-2xx status code from FHIR server (%s %s, status=%d), content: %s",
			response.Request.Method, FhirUrlLoggerSanitizer(response.Request.URL), response.StatusCode, string(responseBody))
	}
	return &config
}

// NewClient creates a FHIR client for the given base URL. Requests are traced and time out after the given duration.
func NewClient(baseURL *url.URL, timeout time.Duration) fhirclient.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: otel.NewTracedHTTPTransport(http.DefaultTransport, otelapi.Tracer("fhirclient")),
	}
	return fhirclient.New(baseURL, httpClient, Config())
}
