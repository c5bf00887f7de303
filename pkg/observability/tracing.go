// Package observability wires OpenTelemetry tracing for the tap. Spans are
// exported as JSON lines to a writer, stderr by default, so they never mix
// with the Singer messages on stdout.
package observability

import (
	"context"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-returnless/pkg/errors"
)

// TracingConfig contains tracing configuration
type TracingConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	// SamplingRate in [0,1]; values outside are clamped
	SamplingRate float64
	BatchTimeout time.Duration
	// Writer receives exported spans. Nil means stderr.
	Writer io.Writer
}

// DefaultTracingConfig returns a disabled configuration sampling every span
func DefaultTracingConfig(serviceName, version string) TracingConfig {
	return TracingConfig{
		ServiceName:    serviceName,
		ServiceVersion: version,
		SamplingRate:   1.0,
		BatchTimeout:   5 * time.Second,
	}
}

// ShutdownFunc flushes pending spans and releases the provider
type ShutdownFunc func(ctx context.Context) error

// InitTracing installs the global tracer provider. When tracing is disabled
// a no-op provider is installed and the returned shutdown does nothing.
func InitTracing(ctx context.Context, config TracingConfig, log *zap.Logger) (ShutdownFunc, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if !config.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create trace resource")
	}

	w := config.Writer
	if w == nil {
		w = os.Stderr
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create span exporter")
	}

	batchTimeout := config.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 5 * time.Second
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(config.SamplingRate)),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(batchTimeout)),
	)
	otel.SetTracerProvider(tp)

	log.Info("tracing enabled",
		zap.String("service", config.ServiceName),
		zap.Float64("sampling_rate", config.SamplingRate))

	return func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "failed to shut down tracing")
		}
		return nil
	}, nil
}

// Tracer returns a named tracer from the global provider
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate <= 0:
		return sdktrace.NeverSample()
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}
