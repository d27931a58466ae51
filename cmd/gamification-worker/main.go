package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/cashstore-backend/api/controllers"
	"github.com/angelmondragon/cashstore-backend/api/routes"
	"github.com/angelmondragon/cashstore-backend/internal/gamification"
	"github.com/angelmondragon/cashstore-backend/pkg/config"
	"github.com/angelmondragon/cashstore-backend/pkg/db"
	"github.com/angelmondragon/cashstore-backend/pkg/instance"
	"github.com/angelmondragon/cashstore-backend/pkg/logger"
	"github.com/angelmondragon/cashstore-backend/pkg/metrics"
	"github.com/angelmondragon/cashstore-backend/pkg/migrate"
	"github.com/angelmondragon/cashstore-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "gamification-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "gamification-worker"

	logg = logger.New(logger.Options{
		ServiceName: "gamification-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "gamification worker stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sink, err := buildRelaySink(ctx, cfg, logg)
	if err != nil {
		return err
	}

	pipeline, err := gamification.NewPipeline(gamification.Params{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		Redis:      redisClient,
		Registerer: prometheus.DefaultRegisterer,
		Sink:       sink,
	})
	if err != nil {
		if sink != nil {
			_ = sink.Close()
		}
		return err
	}
	if err := pipeline.Start(ctx); err != nil {
		return err
	}

	deps := map[string]controllers.Pinger{
		"db":    dbClient,
		"redis": redisClient,
	}
	if pinger, ok := sink.(controllers.Pinger); ok {
		deps["pubsub"] = pinger
	}

	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           routes.NewOpsRouter(cfg, logg, deps, prometheus.DefaultGatherer, metrics.NewHTTPMetrics(prometheus.DefaultRegisterer)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logg.Info(logg.WithField(ctx, "addr", server.Addr), "ops server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	logg.Info(ctx, "gamification worker running")

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serverErr:
	}

	logg.Info(context.Background(), "gamification worker shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(shutdownCtx, "ops server shutdown failed", err)
	}
	if err := pipeline.Close(shutdownCtx); err != nil {
		logg.Error(shutdownCtx, "pipeline drain incomplete", err)
	}
	return runErr
}
