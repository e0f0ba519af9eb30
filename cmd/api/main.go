package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/tenant-session/internal/api/http"
	"github.com/spec-kit/tenant-session/internal/api/http/handlers"
	"github.com/spec-kit/tenant-session/internal/auth"
	"github.com/spec-kit/tenant-session/internal/config"
	"github.com/spec-kit/tenant-session/internal/events"
	"github.com/spec-kit/tenant-session/internal/identity"
	"github.com/spec-kit/tenant-session/internal/observability"
	"github.com/spec-kit/tenant-session/internal/persistence"
	"github.com/spec-kit/tenant-session/internal/repository"
	"github.com/spec-kit/tenant-session/internal/resolver"
	"github.com/spec-kit/tenant-session/internal/service"
	"github.com/spec-kit/tenant-session/internal/session"
	"github.com/spec-kit/tenant-session/internal/worker"
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
	if pg.Pool == nil {
		logger.Fatal("postgres is required for sign-in and role resolution")
	}

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, persistence.DefaultMigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	auditLog := logger.Named("audit")
	for _, t := range []events.EventType{events.EventSignedIn, events.EventSignedOut, events.EventTokenRefreshed, events.EventSessionExpired} {
		dispatcher.Handle(t, func(_ context.Context, e events.Event) error {
			auditLog.Info("identity event", zap.String("type", string(e.Type)), zap.String("event_id", e.ID))
			return nil
		})
	}

	tokens := auth.NewTokenManager(cfg.Auth)
	provider := identity.NewLocalProvider(identity.LocalProviderDeps{
		Accounts:   repository.NewAccountRepository(pg.Pool),
		Passwords:  auth.NewPasswordHasher(cfg.Auth.BcryptCost),
		Tokens:     tokens,
		Dispatcher: dispatcher,
		Grants:     identity.NewRedisGrantStore(redis.Client, redis.Prefix, cfg.Auth.RefreshTTL()),
		Revoked:    identity.NewRevocationList(cfg.Auth.RevocationCacheSize, cfg.Auth.RefreshTTL()),
		Logger:     logger.Named("identity"),
	})

	resolverOpts := []resolver.Option{resolver.WithMetrics(metrics)}
	if cfg.Roles.UnassignedFallback != "" {
		logger.Warn("unassigned principals fall back to a concrete role",
			zap.String("role", string(cfg.Roles.UnassignedFallback)))
		resolverOpts = append(resolverOpts, resolver.WithFallbackRole(cfg.Roles.UnassignedFallback))
	}
	roles := resolver.NewDefault(logger.Named("resolver"), repository.RoleProbes(pg.Pool), resolverOpts...)

	store := session.NewStore(
		session.WithPersister(session.NewRedisPersister(redis.Client, redis.Prefix, cfg.Auth.RefreshTTL())),
		session.WithLogger(logger.Named("session")),
	)
	defer store.Close()

	controller := service.NewAuthController(service.AuthDependencies{
		Provider:  provider,
		Resolver:  roles,
		Store:     store,
		Redirects: cfg.Roles.Redirects(),
		Logger:    logger.Named("auth"),
		Metrics:   metrics,
	})
	if err := controller.Init(ctx); err != nil {
		logger.Warn("initial session not restored", zap.Error(err))
	}
	defer controller.Dispose()

	go worker.NewTokenRefresher(provider, cfg.Auth.RefreshMargin(), logger.Named("refresher")).Run(ctx)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Auth:           handlers.NewAuthHandler(controller),
		Metrics:        handlers.NewMetricsHandler(metrics),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, controller),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
