package coolfhir

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFhirUrlLoggerSanitizer(t *testing.T) {
	u, _ := url.Parse("http://example.com/fhir/Patient?identifier=" + url.QueryEscape(NationalIDNamingSystem+"|001") + "&_count=1")

	actual := FhirUrlLoggerSanitizer(u)

	assert.Equal(t, "http://example.com/fhir/Patient?_count=1&identifier=%2A%2A%2A%2A", actual.String())
	assert.Nil(t, FhirUrlLoggerSanitizer(nil))
}
