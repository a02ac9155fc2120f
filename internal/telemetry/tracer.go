// Package telemetry wires OpenTelemetry tracing for the client. Spans are
// emitted by the gateway's instrumented transport; this package only owns the
// provider lifecycle.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// ShutdownFunc flushes and stops the trace provider.
type ShutdownFunc func(context.Context) error

// Setup installs a global tracer provider writing pretty-printed spans to
// stdout. The returned ShutdownFunc must be called on exit to flush batched
// spans.
func Setup(serviceName string, logger *slog.Logger) (ShutdownFunc, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes("", semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	logger.Debug("tracing enabled", slog.String("service", serviceName))

	return tp.Shutdown, nil
}
