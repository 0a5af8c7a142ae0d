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
	"github.com/spec-kit/trustmesh/internal/auth"
	"github.com/spec-kit/trustmesh/internal/broker"
	"github.com/spec-kit/trustmesh/internal/config"
	"github.com/spec-kit/trustmesh/internal/events"
	"github.com/spec-kit/trustmesh/internal/observability"
	"github.com/spec-kit/trustmesh/internal/persistence"
	"github.com/spec-kit/trustmesh/internal/repository"
	"github.com/spec-kit/trustmesh/internal/service"
)

const serviceName = "content"

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
		if err := persistence.RunMigrations(ctx, pg.Pool(), persistence.SchemaContent, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	conn, err := broker.Dial(ctx, cfg.AMQP, serviceName, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	publisher, err := broker.NewPublisher(conn, broker.TopologyFromConfig(cfg.AMQP), logger, metrics)
	if err != nil {
		return err
	}
	defer publisher.Close()

	dispatcher := events.NewInMemoryDispatcher()
	dispatcher.Subscribe(events.EventMediaDeletionRequested, publisher.HandleMediaDeletion)
	service.NewNotificationService(dispatcher, logger).RegisterHandlers()

	contentService := service.NewContentService(repository.NewContentRepository(pg.Pool()), dispatcher, logger)

	app := httptransport.NewApp(cfg.App.Name+"-"+serviceName, logger, metrics)
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout)
	httptransport.RegisterHealthRoutes(app, handlers.NewHealthHandler(serviceName, cfg.App.Version, map[string]handlers.Pinger{
		"postgres": pg,
	}), metrics)
	httptransport.RegisterContentRoutes(app, httptransport.ContentRoutes{
		Content:        handlers.NewContentHandler(contentService),
		AuthMiddleware: auth.NewAuthMiddleware(newVerifier(cfg, logger)),
	})

	return httptransport.Serve(ctx, app, cfg.App.Addr(), logger)
}

// newVerifier picks the token strategy. The content service holds no
// identities, so local checks trust the signed role claim.
func newVerifier(cfg *config.Config, logger *zap.Logger) auth.TokenVerifier {
	if cfg.Auth.VerifierMode == config.VerifierModeRemote {
		logger.Info("delegating token checks", zap.String("endpoint", cfg.Delegation.CheckTokenURL))
		return auth.NewRemoteVerifier(auth.RemoteVerifierOptions{
			Endpoint:  cfg.Delegation.CheckTokenURL,
			Timeout:   cfg.Delegation.Timeout,
			CacheTTL:  cfg.Delegation.CacheTTL,
			CacheSize: cfg.Delegation.CacheSize,
		})
	}
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.Issuer, cfg.Auth.Audience)
	return auth.NewLocalVerifier(tokens, nil)
}
