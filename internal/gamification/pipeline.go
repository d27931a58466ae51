// Package gamification is the composition root of the activity pipeline: it
// builds the bus and wires every consumer onto it exactly once.
package gamification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/cashstore-backend/internal/achievements"
	"github.com/angelmondragon/cashstore-backend/internal/activity"
	"github.com/angelmondragon/cashstore-backend/internal/challenges"
	"github.com/angelmondragon/cashstore-backend/internal/events"
	"github.com/angelmondragon/cashstore-backend/internal/leaderboard"
	"github.com/angelmondragon/cashstore-backend/internal/learning"
	"github.com/angelmondragon/cashstore-backend/internal/metricregistry"
	"github.com/angelmondragon/cashstore-backend/internal/relay"
	"github.com/angelmondragon/cashstore-backend/internal/rewards"
	"github.com/angelmondragon/cashstore-backend/internal/streaks"
	"github.com/angelmondragon/cashstore-backend/internal/usermetrics"
	"github.com/angelmondragon/cashstore-backend/internal/wallet"
	"github.com/angelmondragon/cashstore-backend/pkg/config"
	"github.com/angelmondragon/cashstore-backend/pkg/idempotency"
	"github.com/angelmondragon/cashstore-backend/pkg/logger"
	"github.com/angelmondragon/cashstore-backend/pkg/metrics"
	"github.com/angelmondragon/cashstore-backend/pkg/redis"
)

// Database is the slice of the DB client the pipeline needs.
type Database interface {
	DB() *gorm.DB
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Cache is the Redis surface shared by the leaderboard cache and the
// processed-event guard.
type Cache interface {
	redis.IdempotencyStore
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Params wires a pipeline. Registry, Registerer and Sink are optional.
type Params struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         Database
	Redis      Cache
	Registry   *metricregistry.Registry
	Registerer prometheus.Registerer
	Sink       relay.Sink
	Now        func() time.Time
}

// Pipeline owns the bus and the services subscribed to it.
type Pipeline struct {
	Bus          *events.Bus
	Metrics      *usermetrics.Service
	Rewards      *rewards.Service
	Achievements *achievements.Engine
	Challenges   *challenges.Service
	Streaks      *streaks.Service
	Leaderboard  *leaderboard.Cache
	Learning     *learning.Service
	Wallet       wallet.Service
	Activity     *activity.Recorder

	logg  *logger.Logger
	drain time.Duration
	relay *relay.Relay
	once  sync.Once
}

// NewPipeline builds every service and registers the consumers. Invalid
// configuration fails here rather than at first event.
func NewPipeline(params Params) (*Pipeline, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("database required")
	}
	if params.Redis == nil {
		return nil, fmt.Errorf("redis required")
	}
	registry := params.Registry
	if registry == nil {
		registry = metricregistry.Default()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	cfg := params.Config
	logg := params.Logger
	conn := params.DB.DB()

	bus, err := events.NewBus(events.Options{
		Logger:         logg,
		Metrics:        metrics.NewBusMetrics(params.Registerer),
		Workers:        cfg.Eventing.Workers,
		QueueSize:      cfg.Eventing.QueueSize,
		HandlerTimeout: cfg.Eventing.HandlerTimeout,
		Now:            now,
	})
	if err != nil {
		return nil, fmt.Errorf("activity bus: %w", err)
	}

	metricSvc, err := usermetrics.NewService(usermetrics.ServiceParams{
		Registry: registry,
		Store:    usermetrics.NewStore(conn, now),
	})
	if err != nil {
		return nil, err
	}

	walletRepo := wallet.NewRepository(conn)
	walletSvc, err := wallet.NewService(walletRepo)
	if err != nil {
		return nil, err
	}

	rewardSvc, err := rewards.NewService(rewards.ServiceParams{
		Logger:           logg,
		Tx:               params.DB,
		Claims:           rewards.NewClaimRepository(conn),
		Wallets:          walletRepo,
		Metrics:          metrics.NewRewardMetrics(params.Registerer),
		LedgerBestEffort: cfg.Gamification.LedgerBestEffort,
		Now:              now,
	})
	if err != nil {
		return nil, err
	}

	guard, err := idempotency.NewManager(params.Redis, cfg.Eventing.ProcessedTTL)
	if err != nil {
		return nil, fmt.Errorf("processed-event guard: %w", err)
	}

	engine, err := achievements.NewEngine(achievements.EngineParams{
		Logger:  logg,
		Repo:    achievements.NewRepository(conn),
		Metrics: metricSvc,
		Rewards: rewardSvc,
		Guard:   guard,
		Now:     now,
	})
	if err != nil {
		return nil, err
	}

	challengeSvc, err := challenges.NewService(challenges.ServiceParams{
		Logger:  logg,
		Repo:    challenges.NewRepository(conn),
		Rewards: rewardSvc,
		Now:     now,
	})
	if err != nil {
		return nil, err
	}

	streakSvc, err := streaks.NewService(streaks.ServiceParams{
		Logger: logg,
		Repo:   streaks.NewRepository(conn),
	})
	if err != nil {
		return nil, err
	}

	rankCache, err := leaderboard.NewCache(params.Redis, cfg.Gamification.LeaderboardCacheTTL, logg)
	if err != nil {
		return nil, err
	}

	learningSvc, err := learning.NewService(learning.ServiceParams{
		Logger:     logg,
		Repo:       learning.NewRepository(conn),
		Rewards:    rewardSvc,
		Emitter:    bus,
		FloorRatio: cfg.Gamification.LearningFloorRatio,
	})
	if err != nil {
		return nil, err
	}

	recorder, err := activity.NewRecorder(activity.NewRepository(conn))
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		Bus:          bus,
		Metrics:      metricSvc,
		Rewards:      rewardSvc,
		Achievements: engine,
		Challenges:   challengeSvc,
		Streaks:      streakSvc,
		Leaderboard:  rankCache,
		Learning:     learningSvc,
		Wallet:       walletSvc,
		Activity:     recorder,
		logg:         logg,
		drain:        cfg.Eventing.DrainTimeout,
	}

	if params.Sink != nil {
		p.relay, err = relay.New(params.Sink, logg, cfg.Relay.Timeout)
		if err != nil {
			return nil, err
		}
	}

	if err := p.register(cfg.Eventing.ActivityLogging); err != nil {
		return nil, err
	}
	return p, nil
}

type consumer struct {
	name    string
	handler events.HandlerFunc
}

func (p *Pipeline) register(activityLogging bool) error {
	consumers := []consumer{
		{achievements.ConsumerName, p.Achievements.HandleEvent},
		{challenges.ConsumerName, p.Challenges.HandleEvent},
		{streaks.ConsumerName, p.Streaks.HandleEvent},
		{leaderboard.ConsumerName, p.Leaderboard.HandleEvent},
	}
	if activityLogging {
		consumers = append(consumers, consumer{activity.ConsumerName, p.Activity.HandleEvent})
	}
	if p.relay != nil {
		consumers = append(consumers, consumer{relay.ConsumerName, p.relay.HandleEvent})
	}

	var errs error
	for _, c := range consumers {
		errs = multierr.Append(errs, p.Bus.OnAll(c.name, c.handler))
	}
	return errs
}

// Initialize exists for callers that expect an explicit init step. Consumers
// are registered by NewPipeline, so repeated calls only log once.
func (p *Pipeline) Initialize(ctx context.Context) {
	p.once.Do(func() {
		p.logg.Info(p.logg.WithField(ctx, "consumers", p.Bus.Subscriptions()), "gamification pipeline initialized")
	})
}

// Emitter returns the producer-facing side of the bus.
func (p *Pipeline) Emitter() events.Emitter {
	return p.Bus
}

// Start launches the bus workers.
func (p *Pipeline) Start(ctx context.Context) error {
	p.Initialize(ctx)
	return p.Bus.Start(ctx)
}

// Close drains the bus within the configured drain timeout and releases the relay sink.
func (p *Pipeline) Close(ctx context.Context) error {
	drainCtx := ctx
	if p.drain > 0 {
		var cancel context.CancelFunc
		drainCtx, cancel = context.WithTimeout(ctx, p.drain)
		defer cancel()
	}
	err := p.Bus.Close(drainCtx)
	if p.relay != nil {
		err = multierr.Append(err, p.relay.Close())
	}
	return err
}
