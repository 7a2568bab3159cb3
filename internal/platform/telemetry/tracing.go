package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"rescue/internal/platform/config"
)

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

// Init installs the global tracer provider. Spans go to stdout when tracing
// is enabled; otherwise a noop provider is installed.
func Init(ctx context.Context, cfg config.Tracing, logger *slog.Logger) (ShutdownFunc, error) {
	return InitWithWriter(ctx, cfg, os.Stdout, logger)
}

// InitWithWriter is Init with an explicit span destination.
func InitWithWriter(ctx context.Context, cfg config.Tracing, w io.Writer, logger *slog.Logger) (ShutdownFunc, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		logger.DebugContext(ctx, "tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	exp, err := stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithoutTimestamps(),
	)
	if err != nil {
		return nil, fmt.Errorf("create span exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	logger.InfoContext(ctx, "tracing enabled",
		"service_name", cfg.ServiceName,
		"sample_ratio", cfg.SampleRatio,
	)
	return tp.Shutdown, nil
}

// Shutdown runs fn with a bounded timeout and logs failures.
func Shutdown(ctx context.Context, fn ShutdownFunc, logger *slog.Logger) {
	if fn == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		logger.WarnContext(ctx, "tracing shutdown failed", "error", err)
	}
}
