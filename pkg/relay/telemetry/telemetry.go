// Package telemetry builds the process logger and tracer provider. Without
// an OTLP endpoint both stay local: slog writes text or JSON to stderr and
// tracing is a no-op. With an endpoint, logs go through the otelslog bridge
// and spans through a batching OTLP/gRPC exporter.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ScopeName is the instrumentation scope used for logs.
const ScopeName = "github.com/watt-toolkit/relay"

// Options selects where logs and spans go.
type Options struct {
	ServiceName string
	// Endpoint is an OTLP/gRPC collector address (host:port). Empty keeps
	// everything local.
	Endpoint string
	Level    slog.Level
	// Format is "text" or "json" for the local handler.
	Format string
	// Output receives local logs. Default: os.Stderr.
	Output io.Writer
}

// Shutdown flushes and releases an exporter pipeline.
type Shutdown func(context.Context) error

func nopShutdown(context.Context) error { return nil }

// NewLogger returns the process logger.
func NewLogger(ctx context.Context, opts Options) (*slog.Logger, Shutdown, error) {
	if opts.Endpoint == "" {
		return slog.New(localHandler(opts)), nopShutdown, nil
	}

	res, err := newResource(ctx, opts.ServiceName)
	if err != nil {
		return nil, nil, err
	}
	exp, err := otlploggrpc.New(ctx,
		otlploggrpc.WithEndpoint(opts.Endpoint),
		otlploggrpc.WithInsecure(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: log exporter: %w", err)
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exp)),
		sdklog.WithResource(res),
	)
	h := otelslog.NewHandler(ScopeName, otelslog.WithLoggerProvider(lp))
	return slog.New(&leveled{Handler: h, level: opts.Level}), lp.Shutdown, nil
}

// NewTracerProvider returns the tracer provider and installs it globally.
func NewTracerProvider(ctx context.Context, opts Options) (trace.TracerProvider, Shutdown, error) {
	if opts.Endpoint == "" {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return tp, nopShutdown, nil
	}

	res, err := newResource(ctx, opts.ServiceName)
	if err != nil {
		return nil, nil, err
	}
	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(opts.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp, tp.Shutdown, nil
}

// Join runs every shutdown and reports all failures.
func Join(fns ...Shutdown) Shutdown {
	return func(ctx context.Context) error {
		var errs []error
		for _, fn := range fns {
			if fn == nil {
				continue
			}
			errs = append(errs, fn(ctx))
		}
		return errors.Join(errs...)
	}
}

func newResource(ctx context.Context, service string) (*resource.Resource, error) {
	if service == "" {
		service = "relay"
	}
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(attribute.String("service.name", service)),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: resource: %w", err)
	}
	return res, nil
}

func localHandler(opts Options) slog.Handler {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	ho := &slog.HandlerOptions{Level: opts.Level}
	if opts.Format == "json" {
		return slog.NewJSONHandler(out, ho)
	}
	return slog.NewTextHandler(out, ho)
}

// leveled drops records below level before they reach the bridge.
type leveled struct {
	slog.Handler
	level slog.Level
}

func (h *leveled) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= h.level && h.Handler.Enabled(ctx, l)
}

func (h *leveled) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &leveled{Handler: h.Handler.WithAttrs(attrs), level: h.level}
}

func (h *leveled) WithGroup(name string) slog.Handler {
	return &leveled{Handler: h.Handler.WithGroup(name), level: h.level}
}
