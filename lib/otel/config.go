package otel

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"
	ExporterNone   = "none"
)

// Config holds the OpenTelemetry configuration
type Config struct {
	// Enabled controls whether OpenTelemetry is enabled
	Enabled bool `koanf:"enabled"`
	// ServiceName is the name of the service for tracing
	ServiceName    string         `koanf:"servicename"`
	ServiceVersion string         `koanf:"serviceversion"`
	Exporter       ExporterConfig `koanf:"exporter"`
}

type ExporterConfig struct {
	// Type of exporter: "otlp", "stdout", or "none"
	Type string     `koanf:"type"`
	OTLP OTLPConfig `koanf:"otlp"`
}

type OTLPConfig struct {
	// Endpoint is the host:port of the OTLP gRPC collector.
	Endpoint string            `koanf:"endpoint"`
	Headers  map[string]string `koanf:"headers"`
	Timeout  time.Duration     `koanf:"timeout"`
	// Insecure disables TLS towards the collector.
	Insecure bool `koanf:"insecure"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "beetamin-backend",
		ServiceVersion: "1.0.0",
		Exporter: ExporterConfig{
			Type: ExporterStdout,
			OTLP: OTLPConfig{
				Endpoint: "localhost:4317",
				Timeout:  10 * time.Second,
			},
		},
	}
}

func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required when OpenTelemetry is enabled")
	}
	switch c.Exporter.Type {
	case ExporterOTLP:
		if c.Exporter.OTLP.Endpoint == "" {
			return fmt.Errorf("OTLP endpoint is required when using OTLP exporter")
		}
	case ExporterStdout, ExporterNone:
	default:
		return fmt.Errorf("unsupported exporter type: %s (supported: otlp, stdout, none)", c.Exporter.Type)
	}
	return nil
}

// TracerProvider wraps the SDK tracer provider so it can be shut down on exit.
type TracerProvider struct {
	provider *trace.TracerProvider
	cleanup  func(context.Context) error
}

// Initialize sets up the global tracer provider and propagator based on the configuration.
func Initialize(ctx context.Context, config Config) (*TracerProvider, error) {
	if !config.Enabled {
		noopProvider := trace.NewTracerProvider()
		otel.SetTracerProvider(noopProvider)
		return &TracerProvider{
			provider: noopProvider,
			cleanup:  func(context.Context) error { return nil },
		}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter trace.SpanExporter
	switch config.Exporter.Type {
	case ExporterOTLP:
		log.Ctx(ctx).Info().Msgf("Exporting traces over OTLP/gRPC to %s", config.Exporter.OTLP.Endpoint)
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(config.Exporter.OTLP.Endpoint),
			otlptracegrpc.WithTimeout(config.Exporter.OTLP.Timeout),
			otlptracegrpc.WithRetry(otlptracegrpc.RetryConfig{
				Enabled:         true,
				InitialInterval: 1 * time.Second,
				MaxInterval:     5 * time.Second,
				MaxElapsedTime:  30 * time.Second,
			}),
		}
		if len(config.Exporter.OTLP.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(config.Exporter.OTLP.Headers))
		}
		if config.Exporter.OTLP.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
	case ExporterStdout:
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
	case ExporterNone:
		// traces are recorded, but not exported
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", config.Exporter.Type)
	}

	opts := []trace.TracerProviderOption{trace.WithResource(res)}
	if exporter != nil {
		opts = append(opts, trace.WithBatcher(exporter))
	}
	tp := trace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return &TracerProvider{
		provider: tp,
		cleanup:  tp.Shutdown,
	}, nil
}

// Shutdown flushes pending spans and stops the tracer provider.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.cleanup != nil {
		return tp.cleanup(ctx)
	}
	return nil
}
