// Package otel provides OpenTelemetry integration for tool dispatch.
package otel

import (
	"context"
	"fmt"
	"strings"

	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ShutdownFunc flushes and stops a provider.
type ShutdownFunc func(ctx context.Context) error

// SetupTracing installs a global tracer provider exporting to an OTLP/HTTP
// endpoint. An empty endpoint leaves the global provider untouched.
func SetupTracing(ctx context.Context, endpoint, serviceName, serviceVersion string) (ShutdownFunc, error) {
	clean := strings.TrimSpace(endpoint)
	if clean == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(clean))
	if err != nil {
		return nil, fmt.Errorf("otel: creating otlp exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", serviceVersion),
		)),
	)
	otelapi.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
