package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/trustmesh/internal/api/http"
	"github.com/spec-kit/trustmesh/internal/api/http/handlers"
	"github.com/spec-kit/trustmesh/internal/auth"
	"github.com/spec-kit/trustmesh/internal/config"
	"github.com/spec-kit/trustmesh/internal/events"
	"github.com/spec-kit/trustmesh/internal/observability"
	"github.com/spec-kit/trustmesh/internal/persistence"
	"github.com/spec-kit/trustmesh/internal/repository"
	"github.com/spec-kit/trustmesh/internal/service"
)

const serviceName = "iam"

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

	metrics := observability.NewMetrics(serviceName)
	deps := map[string]handlers.Pinger{}

	var identities repository.IdentityRepository
	if cfg.Postgres.DSN != "" {
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()

		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.Pool(), persistence.SchemaIdentity, logger); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
		}
		identities = repository.NewIdentityRepository(pg.Pool())
		deps["postgres"] = pg
	} else {
		logger.Warn("identities are kept in memory and lost on restart")
		identities = repository.NewMemoryIdentityRepository()
	}

	rdb := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer rdb.Close()
	deps["redis"] = rdb

	hasher, err := auth.NewHasher(cfg.Auth.Hasher, cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.Issuer, cfg.Auth.Audience)
	verifier := auth.NewLocalVerifier(tokens, identities)

	dispatcher := events.NewInMemoryDispatcher()
	service.NewNotificationService(dispatcher, logger).RegisterHandlers()

	identityService := service.NewIdentityService(identities, hasher, tokens, dispatcher, logger)
	challengeService := service.NewChallengeService(service.ChallengeDependencies{
		Verifier:   verifier,
		Identities: identities,
		Store:      service.NewRedisChallengeStore(rdb.Client, cfg.Challenge.KeyPrefix),
		Codes:      auth.NumericCodeGenerator{Length: cfg.Challenge.CodeLength},
		Sender:     service.NewCodeSender(cfg.Challenge, logger),
		Dispatcher: dispatcher,
		Metrics:    metrics,
	}, cfg.Challenge.TTL, logger)

	app := httptransport.NewApp(cfg.App.Name+"-"+serviceName, logger, metrics)
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout)
	httptransport.RegisterHealthRoutes(app, handlers.NewHealthHandler(serviceName, cfg.App.Version, deps), metrics)
	httptransport.RegisterIAMRoutes(app, httptransport.IAMRoutes{
		Identity:       handlers.NewIdentityHandler(identityService),
		Challenge:      handlers.NewChallengeHandler(challengeService),
		AuthMiddleware: auth.NewAuthMiddleware(verifier),
	})

	return httptransport.Serve(ctx, app, cfg.App.Addr(), logger)
}
