// Package tracing sets up OpenTelemetry tracing for a spycheck run.
//
// Units of work always create spans through the global tracer provider. Without
// an OTLP endpoint that provider is the no-op default and spans cost nothing.
package tracing

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

// Config holds tracing configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// OTLPEndpoint is host:port of an OTLP/HTTP collector. Empty disables export.
	OTLPEndpoint string
	// Insecure uses plain HTTP towards the collector.
	Insecure    bool
	SampleRatio float64
}

// DefaultConfig returns a configuration with export disabled.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "spycheck",
		ServiceVersion: "0.1.0",
		Insecure:       true,
		SampleRatio:    1.0,
	}
}

// Enabled reports whether spans will be exported.
func (c Config) Enabled() bool {
	return c.OTLPEndpoint != ""
}

// Setup installs a batching OTLP/HTTP tracer provider as the global provider.
// When export is disabled it leaves the global provider untouched and returns
// a no-op shutdown.
func Setup(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	logger := log.With().Str("component", "tracing").Logger()

	if !cfg.Enabled() {
		logger.Debug().Msg("Tracing export disabled")
		return func(context.Context) error { return nil }, nil
	}
	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		return nil, fmt.Errorf("sample ratio must be within [0, 1], got %v", cfg.SampleRatio)
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	logger.Info().
		Str("otlp_endpoint", cfg.OTLPEndpoint).
		Float64("sample_ratio", cfg.SampleRatio).
		Msg("Tracing enabled")

	return tp.Shutdown, nil
}

// Shutdown calls shutdown with a bounded deadline and logs the result.
func Shutdown(shutdown ShutdownFunc, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to flush traces")
		return err
	}
	return nil
}
