package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	catalogDI "github.com/fd1az/etfkit/business/catalog/di"
	etfDI "github.com/fd1az/etfkit/business/etf/di"
	pricingDI "github.com/fd1az/etfkit/business/pricing/di"
	"github.com/fd1az/etfkit/internal/apm"
	"github.com/fd1az/etfkit/internal/config"
	"github.com/fd1az/etfkit/internal/di"
	"github.com/fd1az/etfkit/internal/health"
	"github.com/fd1az/etfkit/internal/logger"
	"github.com/fd1az/etfkit/internal/metrics"
	"github.com/fd1az/etfkit/pkg/api"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with health and metrics endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, log, err := loadConfig(opts)
	if err != nil {
		return err
	}

	log.Info(ctx, "starting etfkit",
		"version", version,
		"environment", cfg.App.Environment,
	)

	traceProvider, err := newTraceProvider(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := traceProvider.Stop(); err != nil {
			log.Warn(ctx, "failed to stop trace provider", "error", err)
		}
	}()

	meterProvider, err := metrics.NewMetricProvider(ctx,
		metrics.WithServiceName(cfg.Telemetry.ServiceName),
		metrics.WithPrometheus(),
		collectorOption(cfg),
	)
	if err != nil {
		return fmt.Errorf("failed to create meter provider: %w", err)
	}

	healthServer := health.NewServer(cfg.Telemetry.HealthPort, version, log)

	rt, err := startApp(ctx, opts, false, func(c di.Container) {
		c.Register("health", healthServer)
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	deps := api.Deps{
		Prices:  pricingDI.GetPriceService(rt.mono.Services()),
		Catalog: catalogDI.GetCatalogService(rt.mono.Services()),
		Metrics: meterProvider.Handler(),
	}
	if rt.hasChain() {
		deps.Estimator = etfDI.GetTracker(rt.mono.Services())
	} else {
		log.Warn(ctx, "no node configured, estimation endpoint disabled")
	}

	server := api.NewServer(api.Config{
		Port:         cfg.API.Port,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}, deps, log)

	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(server.Start)

	if port := cfg.Telemetry.PrometheusPort; port > 0 {
		g.Go(func() error {
			return meterProvider.ServePrometheusMetrics(gctx, log, port)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info(ctx, "shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.API.ShutdownTimeout)
		defer cancel()

		if err := healthServer.Stop(shutdownCtx); err != nil {
			log.Warn(ctx, "failed to stop health server", "error", err)
		}
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func newTraceProvider(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) (apm.TraceProvider, error) {
	if !cfg.Telemetry.Enabled {
		return apm.NewTraceProvider(ctx, log, apm.Disabled())
	}
	tp, err := apm.NewTraceProvider(ctx, log,
		apm.WithServiceName(cfg.Telemetry.ServiceName),
		apm.WithExporter(apm.Exporter(cfg.Telemetry.Exporter), cfg.Telemetry.OTLPEndpoint),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace provider: %w", err)
	}
	return tp, nil
}

// collectorOption pushes metrics alongside traces when the OTLP gRPC
// exporter is enabled.
func collectorOption(cfg *config.Config) metrics.Option {
	endpoint := ""
	if cfg.Telemetry.Enabled && cfg.Telemetry.Exporter == "otlp-grpc" {
		endpoint = cfg.Telemetry.OTLPEndpoint
	}
	return metrics.WithCollector(endpoint, nil)
}
