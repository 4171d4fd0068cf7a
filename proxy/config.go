package proxy

import (
	"errors"
	"net/url"
	"strings"
)

type Config struct {
	Enabled bool `koanf:"enabled"`
	// Upstream is the base URL of the API server requests are forwarded to (as {upstream}/api/{path}).
	Upstream string `koanf:"upstream"`
	// ProtectedPaths lists the path prefixes (relative to /api/proxy) that require a logged-in session.
	ProtectedPaths []string    `koanf:"protectedpaths"`
	Login          LoginConfig `koanf:"login"`
}

type LoginConfig struct {
	// PostLoginURL is where the browser is sent after login and logout.
	PostLoginURL string `koanf:"postloginurl"`
	// StateCookieSecret protects the state cookie of the authorization code flow. A random secret is generated when
	// empty, which breaks logins that start and end on different instances.
	StateCookieSecret string   `koanf:"statecookiesecret"`
	Scopes            []string `koanf:"scopes"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ProtectedPaths: []string{"/patients", "/practitioners", "/identities"},
		Login: LoginConfig{
			PostLoginURL: "/",
			Scopes:       []string{"openid", "profile", "email"},
		},
	}
}

func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Upstream == "" {
		return errors.New("proxy.upstream is not configured")
	}
	upstream, err := url.Parse(c.Upstream)
	if err != nil || upstream.Scheme == "" || upstream.Host == "" {
		return errors.New("proxy.upstream must be an absolute URL")
	}
	for _, path := range c.ProtectedPaths {
		if !strings.HasPrefix(path, "/") {
			return errors.New("proxy.protectedpaths must start with /")
		}
	}
	return nil
}
