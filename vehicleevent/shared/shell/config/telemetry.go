package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const metricExportInterval = 5 * time.Second

// Telemetry holds the OpenTelemetry providers of the service.
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
}

// NewTelemetry builds both providers for the configured exporter and installs them as the globals.
// The OTLP exporters read their endpoints from the standard OTEL_EXPORTER_OTLP_* variables.
func NewTelemetry(ctx context.Context, cfg Config) (*Telemetry, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create otel resource: %w", err)
	}

	tracerProvider, err := NewTracerProvider(ctx, cfg.OTelExporter, res)
	if err != nil {
		return nil, err
	}

	meterProvider, err := NewMeterProvider(ctx, cfg.OTelExporter, res)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		return nil, err
	}

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Telemetry{TracerProvider: tracerProvider, MeterProvider: meterProvider}, nil
}

// NewTracerProvider builds a tracer provider that exports to stdout, OTLP over HTTP, or nowhere.
func NewTracerProvider(ctx context.Context, exporter string, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	options := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	switch exporter {
	case ExporterStdout:
		spanExporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout trace exporter: %w", err)
		}

		options = append(options, sdktrace.WithBatcher(spanExporter))

	case ExporterOTLP:
		spanExporter, err := otlptracehttp.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("create otlp trace exporter: %w", err)
		}

		options = append(options, sdktrace.WithBatcher(spanExporter))
	}

	return sdktrace.NewTracerProvider(options...), nil
}

// NewMeterProvider builds a meter provider. Only the OTLP exporter ships metrics; otherwise
// instruments are recorded but not exported.
func NewMeterProvider(ctx context.Context, exporter string, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	options := []sdkmetric.Option{sdkmetric.WithResource(res)}

	if exporter == ExporterOTLP {
		metricExporter, err := otlpmetricgrpc.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("create otlp metric exporter: %w", err)
		}

		options = append(options, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(metricExportInterval)),
		))
	}

	return sdkmetric.NewMeterProvider(options...), nil
}

// Shutdown flushes and stops both providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(t.TracerProvider.Shutdown(ctx), t.MeterProvider.Shutdown(ctx))
}
