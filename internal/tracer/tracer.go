// Package tracer wires OpenTelemetry spans around the selection and
// execution pipeline.
package tracer

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/lastagent/lastagent/internal/config"
)

const tracerName = "lastagent"

// Setup installs the global TracerProvider and returns its shutdown func.
// Disabled tracing installs a noop provider.
func Setup(ctx context.Context, cfg config.TracingConfig) (func(context.Context) error, error) {
	return SetupWithWriter(ctx, cfg, os.Stderr)
}

// SetupWithWriter is Setup with an explicit destination for the stdout exporter.
func SetupWithWriter(_ context.Context, cfg config.TracingConfig, w io.Writer) (func(context.Context) error, error) {
	noopShutdown := func(context.Context) error { return nil }

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return noopShutdown, nil
	}

	switch cfg.Exporter {
	case "stdout":
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
		)
		otel.SetTracerProvider(tp)
		return tp.Shutdown, nil
	case "noop", "":
		otel.SetTracerProvider(noop.NewTracerProvider())
		return noopShutdown, nil
	default:
		return nil, fmt.Errorf("unsupported exporter: %s", cfg.Exporter)
	}
}

// StartSpan starts a named span on the global provider.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordError records err on the span and marks it failed.
func RecordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// RecordFailure marks the span failed with a message when there is no error value.
func RecordFailure(span trace.Span, msg string) {
	span.SetStatus(codes.Error, msg)
}

// SetOK marks the span successful.
func SetOK(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// StringAttr is a convenience for attribute.String.
func StringAttr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// IntAttr is a convenience for attribute.Int.
func IntAttr(key string, value int) attribute.KeyValue {
	return attribute.Int(key, value)
}

// FloatAttr is a convenience for attribute.Float64.
func FloatAttr(key string, value float64) attribute.KeyValue {
	return attribute.Float64(key, value)
}

// BoolAttr is a convenience for attribute.Bool.
func BoolAttr(key string, value bool) attribute.KeyValue {
	return attribute.Bool(key, value)
}
