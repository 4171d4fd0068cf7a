package must

import "net/url"

// ParseURL parses the given URL and panics if it is invalid. Only use it for compile-time constants and tests.
func ParseURL(s string) *url.URL {
	u, err := url.Parse(s)
	if err != nil {
		panic("invalid URL: " + err.Error())
	}
	return u
}
