package coolfhir

import "net/url"

// FhirUrlLoggerSanitizer masks query parameter values, since search parameters carry personal data
// (national IDs, phone numbers, e-mail addresses).
func FhirUrlLoggerSanitizer(in *url.URL) *url.URL {
	if in == nil {
		return nil
	}
	result := *in
	q := url.Values{}
	for name, values := range in.Query() {
		for _, value := range values {
			switch name {
			case "_count", "_include", "_sort":
				q.Add(name, value)
			default:
				q.Add(name, "****")
			}
		}
	}
	result.RawQuery = q.Encode()
	return &result
}
