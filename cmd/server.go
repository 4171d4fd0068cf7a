package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/KLTN-2025/PTNTYTST5951/assets"
	"github.com/KLTN-2025/PTNTYTST5951/fhirgateway"
	"github.com/KLTN-2025/PTNTYTST5951/globals"
	"github.com/KLTN-2025/PTNTYTST5951/healthcheck"
	"github.com/KLTN-2025/PTNTYTST5951/identities"
	"github.com/KLTN-2025/PTNTYTST5951/keycloak"
	"github.com/KLTN-2025/PTNTYTST5951/lib/auth"
	"github.com/KLTN-2025/PTNTYTST5951/lib/coolfhir"
	"github.com/KLTN-2025/PTNTYTST5951/lib/otel"
	"github.com/KLTN-2025/PTNTYTST5951/metrics"
	"github.com/KLTN-2025/PTNTYTST5951/profiles"
	"github.com/KLTN-2025/PTNTYTST5951/proxy"
	"github.com/KLTN-2025/PTNTYTST5951/user"
	"github.com/KLTN-2025/PTNTYTST5951/usercontext"
	"github.com/rs/zerolog/log"
	otelapi "go.opentelemetry.io/otel"
)

const shutdownTimeout = 10 * time.Second

type Service interface {
	RegisterHandlers(mux *http.ServeMux)
}

// Start wires all services and serves them on the public interface until SIGINT or SIGTERM is received.
func Start(config Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracerProvider, err := otel.Initialize(ctx, config.OpenTelemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Failed to shut down tracer provider")
		}
	}()

	httpHandler, closer, err := newHandler(ctx, config)
	if err != nil {
		return err
	}
	defer closer()

	server := &http.Server{
		Addr:              config.Public.Address,
		Handler:           otel.HandlerWithTracing(otelapi.Tracer("beetamin"), "http.request", httpHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err = <-serverErr:
	case <-ctx.Done():
		log.Info().Msg("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = server.Shutdown(shutdownCtx)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// newHandler builds the services from the configuration and registers their handlers. The returned function releases
// resources held by the services.
func newHandler(ctx context.Context, config Config) (http.Handler, func(), error) {
	httpHandler := http.NewServeMux()
	closer := func() {}

	// Set up dependencies
	fhirBaseURL, err := url.Parse(config.FHIR.BaseURL)
	if err != nil {
		return nil, closer, fmt.Errorf("invalid FHIR base URL: %w", err)
	}
	gateway := fhirgateway.New(coolfhir.NewClient(fhirBaseURL, config.FHIR.Timeout))
	identityProvider := keycloak.New(config.Keycloak, otel.NewTracedHTTPClient("keycloak"))
	verifier := auth.NewOIDCVerifier(config.Keycloak.IssuerURL(),
		config.Keycloak.IssuerURL()+"/protocol/openid-connect/certs", otel.NewTracedHTTPClient("oidc"))
	authenticate := auth.Middleware(verifier)
	collector := metrics.New()
	resolver := usercontext.NewResolver(gateway)

	checks := map[string]healthcheck.Checker{
		"fhir": gateway,
	}

	// Register services
	services := []Service{
		identities.New(gateway, identityProvider, collector, authenticate),
		profiles.New(gateway, resolver, authenticate),
	}
	if config.Assets.Enabled {
		objectStore, err := assets.NewS3Store(ctx, config.Assets)
		if err != nil {
			return nil, closer, fmt.Errorf("failed to create asset store: %w", err)
		}
		services = append(services, assets.New(objectStore, config.Public.URL, collector, authenticate))
	}
	if config.Proxy.Enabled {
		sessionStore, closeSessions, err := newSessionStore(ctx, config.Session)
		if err != nil {
			return nil, closer, err
		}
		closer = closeSessions
		if pinger, ok := sessionStore.(healthcheck.Checker); ok {
			checks["sessions"] = pinger
		}
		sessionManager := user.NewSessionManager(sessionStore, config.Session.SessionLifetime, globals.StrictMode)

		upstream, _ := url.Parse(config.Proxy.Upstream)
		services = append(services, proxy.New(upstream, config.Proxy.ProtectedPaths, sessionManager, collector, newTransport()))

		login, err := proxy.NewLogin(config.Keycloak.IssuerURL(), config.Keycloak.ClientID, config.Keycloak.ClientSecret,
			config.Public.URL, config.Proxy.Login, sessionManager, globals.StrictMode)
		if err != nil {
			closer()
			return nil, func() {}, fmt.Errorf("failed to create login service: %w", err)
		}
		services = append(services, login)
	}
	services = append(services, healthcheck.New(checks))

	for _, service := range services {
		service.RegisterHandlers(httpHandler)
	}
	httpHandler.Handle("GET /metrics", collector.Handler())
	return httpHandler, closer, nil
}

func newSessionStore(ctx context.Context, config user.Config) (user.SessionStore, func(), error) {
	if config.RedisURL == "" {
		log.Ctx(ctx).Info().Msg("Keeping sessions in memory")
		return user.NewMemoryStore(), func() {}, nil
	}
	store, err := user.NewRedisStore(ctx, config.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Redis session store: %w", err)
	}
	log.Ctx(ctx).Info().Msg("Keeping sessions in Redis")
	return store, func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis session store")
		}
	}, nil
}

func newTransport() http.RoundTripper {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = globals.DefaultTLSConfig.Clone()
	return transport
}
