package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/identity-service/internal/api/http"
	"github.com/spec-kit/identity-service/internal/api/http/handlers"
	"github.com/spec-kit/identity-service/internal/auth"
	"github.com/spec-kit/identity-service/internal/batch"
	"github.com/spec-kit/identity-service/internal/config"
	"github.com/spec-kit/identity-service/internal/events"
	"github.com/spec-kit/identity-service/internal/identifier"
	"github.com/spec-kit/identity-service/internal/issuer"
	"github.com/spec-kit/identity-service/internal/observability"
	"github.com/spec-kit/identity-service/internal/persistence"
	"github.com/spec-kit/identity-service/internal/platform/ratelimiter"
	"github.com/spec-kit/identity-service/internal/provider"
	"github.com/spec-kit/identity-service/internal/queue"
	"github.com/spec-kit/identity-service/internal/repository"
	"github.com/spec-kit/identity-service/internal/service"
	"github.com/spec-kit/identity-service/internal/token"
	"github.com/spec-kit/identity-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	directory, err := issuer.LoadDirectory(cfg.Issuer.DirectoryPath)
	if err != nil {
		logger.Fatal("failed to load issuer directory", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	pool := pg.PoolHandle()
	identityRepo := repository.NewIdentityRepository(pool)
	counterRepo := repository.NewCounterRepository(pool)
	keyRepo := repository.NewKeyRepository(pool)
	clientRepo := repository.NewClientRepository(pool)

	var identityProvider provider.IdentityProvider = provider.Noop{}
	if cfg.Provider.BaseURL != "" {
		identityProvider = provider.NewHTTPClient(
			cfg.Provider.BaseURL,
			time.Duration(cfg.Provider.TimeoutSeconds)*time.Second,
			cfg.Provider.RetryAttempts,
			logger,
		)
	}

	dispatcher := events.NewInMemoryDispatcher()
	events.NewStreamPublisher(redis.Client, cfg.Events.Stream, logger).RegisterHandlers(dispatcher)

	identityService := service.NewIdentityService(service.IdentityDependencies{
		IdentityRepo: identityRepo,
		Allocator:    identifier.NewAllocator(counterRepo),
		KeyRegistry:  service.NewKeyRegistry(keyRepo, identityRepo),
		Tokens:       token.NewActivationService(cfg.Issuer.ActivationTTL()),
		Directory:    directory,
		Provider:     identityProvider,
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Logger:       logger,
	})
	authService := service.NewAuthService(cfg.Auth, clientRepo)
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager())

	batchStream, err := queue.NewStream(ctx, redis.Client,
		cfg.Batch.Stream, cfg.Batch.Group, cfg.Batch.Consumer,
		time.Duration(cfg.Batch.ClaimIdleSeconds)*time.Second, logger)
	if err != nil {
		logger.Fatal("failed to init batch stream", zap.Error(err))
	}
	batchResults := batch.NewRedisResults(redis.Client, time.Duration(cfg.Batch.ResultTTLHours)*time.Hour)
	batchIntake := batch.NewIntake(batchStream, batchResults, cfg.Batch.MaxItems)
	batchWorker := batch.NewWorker(batchStream, identityService, batchResults, metrics, logger, cfg.Batch.Concurrency)
	go batchWorker.Run(ctx)

	expiryWorker := worker.NewExpiryWorker(identityService, cfg.Issuer.ExpirySweepInterval(), logger)
	go expiryWorker.Run(ctx)

	issueLimiter := ratelimiter.New(cfg.RateLimit.IssuePerSecond, cfg.RateLimit.IssueBurst, 0)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Identities:     handlers.NewIdentitiesHandler(identityService, issueLimiter),
		Batches:        handlers.NewBatchesHandler(batchIntake, batchResults, issueLimiter),
		AuthMiddleware: authMiddleware,
		Registry:       registry,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()
	logger.Info("listening", zap.String("addr", cfg.App.Addr()))

	waitForShutdown(logger)
	cancel()

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
