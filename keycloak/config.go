package keycloak

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// DefaultGroupCacheTTL is how long a resolved group id is reused before it's looked up again.
const DefaultGroupCacheTTL = 5 * time.Minute

func DefaultConfig() Config {
	return Config{
		GroupCacheTTL: DefaultGroupCacheTTL,
	}
}

type Config struct {
	// BaseURL is the base URL of the Keycloak server, e.g. https://id.example.com
	BaseURL string `koanf:"baseurl"`
	// Realm is the realm holding the portal's users and groups.
	Realm string `koanf:"realm"`
	// ClientID and ClientSecret identify the service account used for the admin API.
	ClientID      string        `koanf:"clientid"`
	ClientSecret  string        `koanf:"clientsecret"`
	GroupCacheTTL time.Duration `koanf:"groupcachettl"`
}

func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("keycloak.baseurl is not configured")
	}
	if parsed, err := url.Parse(c.BaseURL); err != nil || !parsed.IsAbs() {
		return errors.New("keycloak.baseurl must be an absolute URL")
	}
	if c.Realm == "" {
		return errors.New("keycloak.realm is not configured")
	}
	if c.ClientID == "" || c.ClientSecret == "" {
		return errors.New("keycloak.clientid and keycloak.clientsecret must be configured")
	}
	return nil
}

// IssuerURL returns the OpenID Connect issuer of the realm.
func (c Config) IssuerURL() string {
	return strings.TrimSuffix(c.BaseURL, "/") + "/realms/" + c.Realm
}

// TokenURL returns the token endpoint of the realm.
func (c Config) TokenURL() string {
	return c.IssuerURL() + "/protocol/openid-connect/token"
}
