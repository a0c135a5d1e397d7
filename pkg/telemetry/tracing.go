// Package telemetry provides OpenTelemetry tracing for docsync. Tracing is
// off unless enabled in configuration; spans are exported over OTLP/HTTP
// to the endpoint named by the standard OTEL_EXPORTER_OTLP_* variables.
package telemetry

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// ServiceName is the service.name resource attribute of docsync spans.
const ServiceName = "docsync"

// Config mirrors the tracing section of the docsync configuration.
type Config struct {
	Enabled        bool
	ServiceVersion string
	// Sampler is one of always, never or ratio.
	Sampler string
	Ratio   float64
}

// Option customises Setup.
type Option func(*setupOptions)

type setupOptions struct {
	processor sdktrace.SpanProcessor
}

// WithSpanProcessor replaces the OTLP exporter with processor.
func WithSpanProcessor(processor sdktrace.SpanProcessor) Option {
	return func(o *setupOptions) {
		o.processor = processor
	}
}

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// Setup installs the global tracer provider described by cfg. When tracing
// is disabled the global no-op provider stays in place.
func Setup(ctx context.Context, cfg Config, opts ...Option) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return noopShutdown, nil
	}

	o := &setupOptions{}
	for _, opt := range opts {
		opt(o)
	}

	sampler, err := newSampler(cfg.Sampler, cfg.Ratio)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create trace resource")
	}

	processor := o.processor
	if processor == nil {
		exporter, err := otlptracehttp.New(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create OTLP trace exporter")
		}
		processor = sdktrace.NewBatchSpanProcessor(exporter,
			sdktrace.WithBatchTimeout(time.Second),
		)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
		sdktrace.WithSpanProcessor(processor),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return func(ctx context.Context) error {
		return errors.Wrap(provider.Shutdown(ctx), "failed to shut down tracer provider")
	}, nil
}

func newSampler(name string, ratio float64) (sdktrace.Sampler, error) {
	switch name {
	case "", "always":
		return sdktrace.AlwaysSample(), nil
	case "never":
		return sdktrace.NeverSample(), nil
	case "ratio":
		if ratio < 0 || ratio > 1 {
			return nil, errors.Errorf("tracing ratio must be between 0 and 1, got %v", ratio)
		}
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio)), nil
	default:
		return nil, errors.Errorf("unknown tracing sampler %q, must be one of: always, never, ratio", name)
	}
}
