// Package telemetry bootstraps OpenTelemetry for ogi.
//
// It exports spans for the HTTP surface and batch dispatch, and the
// collection instruments (ogi.collect.duration, ogi.queries.total, the
// http.server.* pair) over OTLP/HTTP. With no collector endpoint
// configured the bootstrap is a no-op and the global providers stay as
// the SDK defaults, so library code can record against them freely.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Export cadence. Collections run for seconds, not milliseconds, so a
// slower flush than the SDK defaults loses nothing.
const (
	spanFlushInterval  = 5 * time.Second
	metricPushInterval = 15 * time.Second
)

// Config identifies this process to the collector.
type Config struct {
	// Endpoint is the OTLP/HTTP collector address. Empty disables export.
	Endpoint string
	// ServiceName and Version become the service resource attributes.
	ServiceName string
	Version     string
	// Insecure sends OTLP over plain HTTP (local collectors).
	Insecure bool
}

// ShutdownFunc flushes and stops the exporters. Call it during graceful
// shutdown with a bounded context.
type ShutdownFunc func(ctx context.Context) error

// Init installs the global tracer and meter providers per cfg and
// returns the combined shutdown hook.
func Init(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	if cfg.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	tp, err := startTraces(ctx, cfg, res)
	if err != nil {
		return nil, err
	}

	mp, err := startMetrics(ctx, cfg, res)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

func startTraces(ctx context.Context, cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: span exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(spanFlushInterval)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	// Extract incoming traceparent headers and carry the context onto
	// outgoing venue calls.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp, nil
}

func startMetrics(ctx context.Context, cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exp, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp,
			sdkmetric.WithInterval(metricPushInterval),
		)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	return mp, nil
}

// Meter returns a meter on the global provider for the given
// instrumentation scope (e.g. "ogi/batch").
func Meter(scope string) metric.Meter {
	return otel.GetMeterProvider().Meter(scope)
}

// Tracer returns a tracer on the global provider for the given
// instrumentation scope.
func Tracer(scope string) trace.Tracer {
	return otel.GetTracerProvider().Tracer(scope)
}
