// Package metrics installs the global OpenTelemetry meter provider. Readers
// are a Prometheus registry for scraping and any number of OTLP collectors.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"

	"github.com/fd1az/etfkit/internal/logger"
)

const collectorInterval = 15 * time.Second

// MeterProvider is the SDK provider plus the registry Handler serves.
type MeterProvider struct {
	*sdkmetric.MeterProvider
	registry *prometheus.Registry
}

// NewMetricProvider builds the provider and sets it as the otel global.
// Without readers, instruments still work but nothing is exported.
func NewMetricProvider(ctx context.Context, opts ...Option) (*MeterProvider, error) {
	s := settings{service: "etfkit"}
	for _, o := range opts {
		o(&s)
	}

	registry := prometheus.NewRegistry()
	sdkOpts := []sdkmetric.Option{
		sdkmetric.WithResource(resource.NewSchemaless(semconv.ServiceNameKey.String(s.service))),
	}

	if s.prometheus {
		exp, err := otelprom.New(otelprom.WithRegisterer(registry))
		if err != nil {
			return nil, fmt.Errorf("prometheus exporter: %w", err)
		}
		sdkOpts = append(sdkOpts, sdkmetric.WithReader(exp))
	}

	for _, c := range s.collectors {
		reader, err := collectorReader(ctx, c)
		if err != nil {
			return nil, err
		}
		sdkOpts = append(sdkOpts, sdkmetric.WithReader(reader))
	}

	mp := sdkmetric.NewMeterProvider(sdkOpts...)
	otel.SetMeterProvider(mp)
	return &MeterProvider{MeterProvider: mp, registry: registry}, nil
}

func collectorReader(ctx context.Context, c Collector) (sdkmetric.Reader, error) {
	grpcOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpointURL(c.Endpoint)}
	if len(c.Headers) > 0 {
		grpcOpts = append(grpcOpts, otlpmetricgrpc.WithHeaders(c.Headers))
	}
	if c.Insecure {
		grpcOpts = append(grpcOpts, otlpmetricgrpc.WithInsecure())
	}

	exp, err := otlpmetricgrpc.New(ctx, grpcOpts...)
	if err != nil {
		return nil, fmt.Errorf("otlp metric exporter %s: %w", c.Endpoint, err)
	}
	return sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(collectorInterval)), nil
}

// Handler serves the registry in the Prometheus text format.
func (p *MeterProvider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// ServePrometheusMetrics serves /metrics on port until ctx is done.
func (p *MeterProvider) ServePrometheusMetrics(ctx context.Context, log logger.LoggerInterface, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	defer stop()

	log.Info(ctx, "serving metrics", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
