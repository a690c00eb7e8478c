package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the global tracer instance.
var Tracer trace.Tracer

// InitTracer initializes OpenTelemetry tracing with a stdout exporter and
// registers the provider globally. The returned function flushes and shuts
// down the provider.
func InitTracer(serviceName, serviceVersion string) (func(context.Context) error, error) {
	ctx := context.Background()

	res, err := resource.New(
		ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	Tracer = tp.Tracer(serviceName)

	return tp.Shutdown, nil
}

// StartSpan starts a span from the global tracer. Safe to call before
// InitTracer; it falls back to the globally registered provider.
func StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if Tracer == nil {
		return otel.Tracer("ride-admin").Start(ctx, name)
	}
	return Tracer.Start(ctx, name)
}
