// Package telemetry wires up the OTel SDK the same way the teacher's
// internal/storage/dolt package consumes it: other packages register their
// tracers/meters against the global delegating provider at init time (see
// internal/store.tracer, internal/store.storeMetrics), so instruments work
// as no-ops until Init installs the real SDK providers here.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Config names the service in the telemetry resource Init builds. Init
// wires no exporters: spans and metrics are computed but never exported,
// which also suits tests that just want real tracer/meter objects without a
// collector endpoint.
type Config struct {
	ServiceName    string
	ServiceVersion string
}

// Providers holds the constructed SDK providers so the caller can shut them
// down cleanly on agent exit.
type Providers struct {
	Tracer trace.TracerProvider
	Meter  metric.MeterProvider

	shutdownTracer func(context.Context) error
	shutdownMeter  func(context.Context) error
}

// Init installs SDK-backed global tracer/meter providers, replacing the
// no-op ones every package's init() already registered tracers/meters
// against. Call once at agent startup, before any reconciliation pass.
func Init(cfg Config) (*Providers, error) {
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)

	return &Providers{
		Tracer:         tp,
		Meter:          mp,
		shutdownTracer: tp.Shutdown,
		shutdownMeter:  mp.Shutdown,
	}, nil
}

// Shutdown flushes and stops both providers. Errors from either are joined.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	if p.shutdownTracer != nil {
		if err := p.shutdownTracer(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if p.shutdownMeter != nil {
		if err := p.shutdownMeter(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return fmt.Errorf("telemetry: shutdown: %v", errs)
	}
}
