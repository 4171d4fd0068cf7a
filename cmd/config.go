package cmd

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/KLTN-2025/PTNTYTST5951/assets"
	"github.com/KLTN-2025/PTNTYTST5951/keycloak"
	"github.com/KLTN-2025/PTNTYTST5951/lib/coolfhir"
	"github.com/KLTN-2025/PTNTYTST5951/lib/otel"
	"github.com/KLTN-2025/PTNTYTST5951/proxy"
	"github.com/KLTN-2025/PTNTYTST5951/user"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
)

const envPrefix = "BEETAMIN_"

type Config struct {
	// Public holds the configuration for the public interface.
	Public InterfaceConfig `koanf:"public"`
	// FHIR holds the connection to the FHIR server that stores all clinical resources.
	FHIR     FHIRConfig      `koanf:"fhir"`
	Keycloak keycloak.Config `koanf:"keycloak"`
	Assets   assets.Config   `koanf:"assets"`
	Proxy    proxy.Config    `koanf:"proxy"`
	Session  user.Config     `koanf:"session"`
	LogLevel zerolog.Level   `koanf:"loglevel"`
	// StrictMode enables secure cookies and other production-only safeguards.
	StrictMode bool `koanf:"strictmode"`
	// OpenTelemetry holds the configuration for observability
	OpenTelemetry otel.Config `koanf:"opentelemetry"`
}

type FHIRConfig struct {
	BaseURL string        `koanf:"baseurl"`
	Timeout time.Duration `koanf:"timeout"`
}

func (c FHIRConfig) Validate() error {
	if c.BaseURL == "" {
		return errors.New("fhir.baseurl is not configured")
	}
	if parsed, err := url.Parse(c.BaseURL); err != nil || !parsed.IsAbs() {
		return errors.New("fhir.baseurl must be an absolute URL")
	}
	return nil
}

func (c Config) Validate() error {
	if c.Public.URL == "" {
		return errors.New("public base URL is not configured")
	}
	if _, err := url.Parse(c.Public.URL); err != nil {
		return errors.New("invalid public base URL")
	}
	if err := c.FHIR.Validate(); err != nil {
		return fmt.Errorf("invalid FHIR configuration: %w", err)
	}
	if err := c.Keycloak.Validate(); err != nil {
		return fmt.Errorf("invalid Keycloak configuration: %w", err)
	}
	if err := c.Assets.Validate(); err != nil {
		return fmt.Errorf("invalid assets configuration: %w", err)
	}
	if err := c.Proxy.Validate(); err != nil {
		return fmt.Errorf("invalid proxy configuration: %w", err)
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("invalid session configuration: %w", err)
	}
	if err := c.OpenTelemetry.Validate(); err != nil {
		return fmt.Errorf("invalid OpenTelemetry configuration: %w", err)
	}
	return nil
}

// InterfaceConfig holds the configuration for an HTTP interface.
type InterfaceConfig struct {
	// Address holds the address to listen on.
	Address string `koanf:"address"`
	// URL holds the base URL of the interface, used to build asset links and the login redirect URL.
	URL string `koanf:"url"`
}

func (i InterfaceConfig) ParseURL() *url.URL {
	u, _ := url.Parse(i.URL)
	return u
}

func DefaultConfig() Config {
	return Config{
		Public: InterfaceConfig{
			Address: ":8080",
		},
		FHIR: FHIRConfig{
			Timeout: coolfhir.DefaultTimeout,
		},
		Keycloak:      keycloak.DefaultConfig(),
		Assets:        assets.DefaultConfig(),
		Proxy:         proxy.DefaultConfig(),
		Session:       user.DefaultConfig(),
		LogLevel:      zerolog.InfoLevel,
		StrictMode:    true,
		OpenTelemetry: otel.DefaultConfig(),
	}
}

// LoadConfig loads the configuration from the environment.
func LoadConfig() (*Config, error) {
	result := DefaultConfig()
	err := loadConfigInto(&result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func loadConfigInto(target any) error {
	k := koanf.New(".")
	err := k.Load(env.ProviderWithValue(envPrefix, ".", func(key string, value string) (string, interface{}) {
		key = strings.Replace(strings.ToLower(strings.TrimPrefix(key, envPrefix)), "_", ".", -1)
		if len(value) == 0 {
			return key, nil
		}
		sliceValues := splitWithEscaping(value, ",", "\\")
		for i, s := range sliceValues {
			sliceValues[i] = strings.TrimSpace(s)
		}
		var parsedValue any = sliceValues
		if len(sliceValues) == 1 {
			parsedValue = sliceValues[0]
		}
		return key, parsedValue
	}), nil)
	if err != nil {
		return err
	}
	return k.Unmarshal("", target)
}

func splitWithEscaping(s, separator, escape string) []string {
	s = strings.ReplaceAll(s, escape+separator, "\x00")
	tokens := strings.Split(s, separator)
	for i, token := range tokens {
		tokens[i] = strings.ReplaceAll(token, "\x00", separator)
	}
	return tokens
}
