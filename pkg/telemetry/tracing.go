// Package telemetry wires OpenTelemetry into the partial node: the global tracer provider,
// trace context propagation over HTTP and tracing decorators of the core contracts.
package telemetry

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"github.com/inertialabsxyz/movement/pkg/config"
)

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// InitTracing installs a global OpenTelemetry tracer provider exporting to the configured
// OTLP/HTTP endpoint. It is a no-op when tracing is disabled. The returned function must be
// called on process exit.
func InitTracing(ctx context.Context, cfg *config.InstrumentationConfig, chainID string, logger zerolog.Logger) (ShutdownFunc, error) {
	if !cfg.IsTracingEnabled() {
		return noopShutdown, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.TracingServiceName),
			attribute.String("movement.chain_id", chainID),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create otel resource: %w", err)
	}

	exp, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(endpointURL(cfg.TracingEndpoint)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create otlp exporter: %w", err)
	}

	ratio := clamp(cfg.TracingSampleRate, 0, 1)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info().
		Str("endpoint", cfg.TracingEndpoint).
		Str("service", cfg.TracingServiceName).
		Float64("sample_rate", ratio).
		Msg("OpenTelemetry tracing initialized")

	return tp.Shutdown, nil
}

// endpointURL adds the http scheme to a bare host:port endpoint.
func endpointURL(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return "http://" + endpoint
}

func clamp(x, lo, hi float64) float64 {
	return min(max(x, lo), hi)
}
