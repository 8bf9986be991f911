// Package apm configures OpenTelemetry tracing.
package apm

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"

	"github.com/fd1az/etfkit/internal/logger"
)

// Exporter names accepted in telemetry.exporter.
type Exporter string

const (
	StdoutExporter   Exporter = "stdout"
	ZipkinExporter   Exporter = "zipkin"
	OTLPGRPCExporter Exporter = "otlp-grpc"
	OTLPHTTPExporter Exporter = "otlp-http"
)

// TraceProvider is a started tracer provider.
type TraceProvider interface {
	Stop() error
}

type noopProvider struct{}

func (noopProvider) Stop() error { return nil }

type traceProvider struct {
	tp *sdktrace.TracerProvider
}

// TracerOptions configures NewTraceProvider.
type TracerOptions struct {
	serviceName string
	exporter    Exporter
	endpoint    string
	headers     map[string]string
	disabled    bool
}

type TracerOption func(*TracerOptions)

// WithServiceName sets the service.name resource attribute.
func WithServiceName(name string) TracerOption {
	return func(o *TracerOptions) { o.serviceName = name }
}

// WithExporter selects the span exporter and its endpoint.
func WithExporter(exporter Exporter, endpoint string) TracerOption {
	return func(o *TracerOptions) {
		o.exporter = exporter
		o.endpoint = endpoint
	}
}

// WithHeaders sets headers sent by OTLP exporters.
func WithHeaders(headers map[string]string) TracerOption {
	return func(o *TracerOptions) { o.headers = headers }
}

// Disabled returns a provider that records nothing.
func Disabled() TracerOption {
	return func(o *TracerOptions) { o.disabled = true }
}

func newExporter(ctx context.Context, o *TracerOptions) (sdktrace.SpanExporter, error) {
	switch o.exporter {
	case StdoutExporter, "":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case ZipkinExporter:
		return zipkin.New(o.endpoint)
	case OTLPGRPCExporter:
		return otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpointURL(o.endpoint),
			otlptracegrpc.WithHeaders(o.headers),
		)
	case OTLPHTTPExporter:
		return otlptracehttp.New(ctx,
			otlptracehttp.WithEndpointURL(o.endpoint),
			otlptracehttp.WithHeaders(o.headers),
		)
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", o.exporter)
	}
}

// NewTraceProvider installs a global tracer provider and the W3C trace
// context propagator.
func NewTraceProvider(ctx context.Context, log logger.LoggerInterface, options ...TracerOption) (TraceProvider, error) {
	opts := &TracerOptions{exporter: StdoutExporter}
	for _, opt := range options {
		opt(opts)
	}

	if opts.disabled {
		log.Debug(ctx, "tracing disabled")
		return noopProvider{}, nil
	}

	exp, err := newExporter(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("create %s exporter: %w", opts.exporter, err)
	}

	rsrc, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(opts.serviceName),
			attribute.String("otel.exporter", string(opts.exporter)),
		))
	if err != nil {
		// schema URL conflicts still yield a usable merged resource
		log.Warn(ctx, "merge trace resource", "error", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(rsrc),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))

	log.Info(ctx, "tracing enabled", "exporter", string(opts.exporter), "endpoint", opts.endpoint)

	return &traceProvider{tp}, nil
}

func (o *traceProvider) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return o.tp.Shutdown(ctx)
}
