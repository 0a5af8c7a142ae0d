package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/spec-kit/trustmesh/internal/api/http"
	"github.com/spec-kit/trustmesh/internal/api/http/handlers"
	"github.com/spec-kit/trustmesh/internal/broker"
	"github.com/spec-kit/trustmesh/internal/config"
	"github.com/spec-kit/trustmesh/internal/observability"
	"github.com/spec-kit/trustmesh/internal/worker"
)

const serviceName = "mediagc"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App, serviceName)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("collector stopped", zap.Error(err))
	}
	logger.Info("collector stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics(serviceName)

	conn, err := broker.Dial(ctx, cfg.AMQP, serviceName, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()
	if err := broker.TopologyFromConfig(cfg.AMQP).Declare(ch); err != nil {
		return err
	}

	consumer := broker.NewConsumer(ch, broker.ConsumerOptionsFromConfig(cfg.AMQP), logger, metrics)
	collector := worker.NewMediaCollector(
		worker.NewMediaClient(cfg.Media.ServiceURL, cfg.Media.RequestTimeout, nil),
		logger,
	)

	// Probes and metrics only; the collector has no public API.
	app := httptransport.NewApp(cfg.App.Name+"-"+serviceName, logger, metrics)
	httptransport.RegisterMiddlewares(app, logger, metrics, 0)
	httptransport.RegisterHealthRoutes(app, handlers.NewHealthHandler(serviceName, cfg.App.Version, nil), metrics)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("media collector consuming", zap.String("queue", cfg.AMQP.Queue))
		return worker.RunMediaCollector(gctx, consumer, collector)
	})
	g.Go(func() error {
		return httptransport.Serve(gctx, app, cfg.App.Addr(), logger)
	})
	return g.Wait()
}
