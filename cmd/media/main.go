package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/trustmesh/internal/api/http"
	"github.com/spec-kit/trustmesh/internal/api/http/handlers"
	"github.com/spec-kit/trustmesh/internal/config"
	"github.com/spec-kit/trustmesh/internal/observability"
	"github.com/spec-kit/trustmesh/internal/persistence"
	"github.com/spec-kit/trustmesh/internal/repository"
	"github.com/spec-kit/trustmesh/internal/service"
)

const serviceName = "media"

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
		logger.Fatal("service stopped", zap.Error(err))
	}
	logger.Info("service stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.DSN == "" {
		return errors.New("POSTGRES_DSN is required")
	}
	metrics := observability.NewMetrics(serviceName)

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool(), persistence.SchemaMedia, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	store, err := persistence.NewS3BlobStore(ctx, cfg.Media, logger)
	if err != nil {
		return err
	}
	var blobs service.BlobDeleter
	if store != nil {
		blobs = store
	}

	mediaService := service.NewMediaService(repository.NewMediaRepository(pg.Pool()), blobs, logger)

	app := httptransport.NewApp(cfg.App.Name+"-"+serviceName, logger, metrics)
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout)
	httptransport.RegisterHealthRoutes(app, handlers.NewHealthHandler(serviceName, cfg.App.Version, map[string]handlers.Pinger{
		"postgres": pg,
	}), metrics)
	httptransport.RegisterMediaRoutes(app, handlers.NewMediaHandler(mediaService))

	return httptransport.Serve(ctx, app, cfg.App.Addr(), logger)
}
