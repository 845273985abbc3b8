package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pumpmusic/backend/api/controllers"
	"github.com/pumpmusic/backend/api/routes"
	"github.com/pumpmusic/backend/internal/accounts"
	"github.com/pumpmusic/backend/internal/catalog"
	"github.com/pumpmusic/backend/internal/generation"
	"github.com/pumpmusic/backend/internal/ledger"
	"github.com/pumpmusic/backend/pkg/config"
	"github.com/pumpmusic/backend/pkg/db"
	"github.com/pumpmusic/backend/pkg/logger"
	"github.com/pumpmusic/backend/pkg/metrics"
	"github.com/pumpmusic/backend/pkg/migrate"
	"github.com/pumpmusic/backend/pkg/outbox"
	"github.com/pumpmusic/backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	guard, err := ledger.NewGuard(ledger.NewRepository(dbClient.DB()), dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create balance guard", err)
		os.Exit(1)
	}

	accountsSvc, err := accounts.NewService(accounts.ServiceParams{
		Repo:        accounts.NewRepository(dbClient.DB()),
		DBClient:    dbClient,
		Guard:       guard,
		Outbox:      outboxSvc,
		Logger:      logg,
		SignupGrant: cfg.Tokens.SignupGrant,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create accounts service", err)
		os.Exit(1)
	}

	purchaseSvc, err := ledger.NewPurchaseService(guard, dbClient, outboxSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create purchase service", err)
		os.Exit(1)
	}

	catalogSvc, err := catalog.NewService(catalog.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	provider, err := generation.NewHTTPProvider(cfg.Generation.ProviderBaseURL, cfg.Generation.ProviderAPIKey)
	if err != nil {
		logg.Error(context.Background(), "failed to create generation provider", err)
		os.Exit(1)
	}

	generationSvc, err := generation.NewService(generation.ServiceParams{
		Jobs:     generation.NewRepository(dbClient.DB()),
		Guard:    guard,
		Tracks:   catalog.NewRepository(dbClient.DB()),
		DBClient: dbClient,
		Provider: provider,
		Cache:    redisClient,
		Outbox:   outboxSvc,
		Metrics:  metrics.NewGenerationMetrics(prometheus.DefaultRegisterer),
		Logger:   logg,
		Config:   cfg.Generation,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create generation service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:     cfg,
			Logger:     logg,
			Accounts:   accountsSvc,
			Guard:      guard,
			Purchases:  purchaseSvc,
			Catalog:    catalogSvc,
			Generation: generationSvc,
			ReadyChecks: map[string]controllers.Pinger{
				"database": dbClient,
				"redis":    redisClient,
			},
		}),
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			logg.Error(ctx, "api server shutdown error", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "api server shut down gracefully")
}
