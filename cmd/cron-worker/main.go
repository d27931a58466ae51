package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/cashstore-backend/internal/activity"
	"github.com/angelmondragon/cashstore-backend/internal/cron"
	"github.com/angelmondragon/cashstore-backend/internal/gamification"
	"github.com/angelmondragon/cashstore-backend/pkg/config"
	"github.com/angelmondragon/cashstore-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/cashstore-backend/pkg/errors"
	"github.com/angelmondragon/cashstore-backend/pkg/instance"
	"github.com/angelmondragon/cashstore-backend/pkg/logger"
	"github.com/angelmondragon/cashstore-backend/pkg/metrics"
	"github.com/angelmondragon/cashstore-backend/pkg/migrate"
	"github.com/angelmondragon/cashstore-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
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

	// The bus is never started here; the pipeline only supplies the engine.
	pipeline, err := gamification.NewPipeline(gamification.Params{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		Redis:      redisClient,
		Registerer: prometheus.DefaultRegisterer,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build gamification pipeline", err)
		os.Exit(1)
	}

	activityRepo := activity.NewRepository(dbClient.DB())
	var jobs []cron.Job

	reconcileJob, err := cron.NewAchievementReconcileJob(cron.AchievementReconcileJobParams{
		Logger:              logg,
		Users:               activityRepo,
		Engine:              pipeline.Achievements,
		BatchSize:           cfg.Gamification.ReconcileBatchSize,
		Lookback:            cfg.Gamification.ReconcileLookback,
		ActivityLogDisabled: !cfg.Eventing.ActivityLogging,
	})
	switch {
	case pkgerrors.IsCode(err, pkgerrors.CodeConfiguration):
		logg.Warn(logg.WithField(context.Background(), "error", err.Error()), "achievement reconcile job not registered")
	case err != nil:
		logg.Error(context.Background(), "failed to create achievement reconcile job", err)
		os.Exit(1)
	default:
		jobs = append(jobs, reconcileJob)
	}

	retentionJob, err := cron.NewActivityRetentionJob(cron.ActivityRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: activityRepo,
		Retention:  cfg.Cron.ActivityRetentionDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create activity retention job", err)
		os.Exit(1)
	}

	jobs = append(jobs, retentionJob)

	registry := cron.NewRegistry()
	for _, job := range jobs {
		if err := registry.Register(job); err != nil {
			logg.Error(context.Background(), "failed to register cron job", err)
			os.Exit(1)
		}
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(cron.LockName(cfg.App.Env)), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
		"jobs":        registry.Names(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
