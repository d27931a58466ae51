package gamification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/cashstore-backend/internal/achievements"
	"github.com/angelmondragon/cashstore-backend/internal/activity"
	"github.com/angelmondragon/cashstore-backend/internal/challenges"
	"github.com/angelmondragon/cashstore-backend/internal/events"
	"github.com/angelmondragon/cashstore-backend/internal/leaderboard"
	"github.com/angelmondragon/cashstore-backend/internal/relay"
	"github.com/angelmondragon/cashstore-backend/internal/streaks"
	"github.com/angelmondragon/cashstore-backend/pkg/config"
	"github.com/angelmondragon/cashstore-backend/pkg/db"
	"github.com/angelmondragon/cashstore-backend/pkg/db/dbtest"
	"github.com/angelmondragon/cashstore-backend/pkg/db/models"
	"github.com/angelmondragon/cashstore-backend/pkg/enums"
	"github.com/angelmondragon/cashstore-backend/pkg/logger"
	"github.com/angelmondragon/cashstore-backend/pkg/pagination"
	"github.com/angelmondragon/cashstore-backend/pkg/redis"
	"github.com/angelmondragon/cashstore-backend/pkg/types"
)

type memoryRedis struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{data: map[string]string{}}
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryRedis) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case string:
		m.data[key] = v
	case []byte:
		m.data[key] = string(v)
	default:
		m.data[key] = "set"
	}
	return nil
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = "1"
	return true, nil
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryRedis) IdempotencyKey(scope, id string) string {
	return "cs:idempotency:" + scope + ":" + id
}

func (m *memoryRedis) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

type captureSink struct {
	mu     sync.Mutex
	msgs   []relay.Message
	closed bool
}

func (s *captureSink) Publish(_ context.Context, msg relay.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *captureSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Eventing: config.EventingConfig{
			Workers:         4,
			QueueSize:       64,
			HandlerTimeout:  5 * time.Second,
			DrainTimeout:    10 * time.Second,
			ProcessedTTL:    time.Hour,
			ActivityLogging: true,
		},
		Gamification: config.GamificationConfig{
			LearningFloorRatio:  0.3,
			LeaderboardCacheTTL: time.Minute,
		},
		Relay: config.RelayConfig{Driver: config.RelayDriverNone, Timeout: time.Second},
	}
}

func openDB(t *testing.T) *db.Client {
	t.Helper()
	conn := dbtest.Open(t,
		&models.User{}, &models.Order{}, &models.Review{}, &models.Video{},
		&models.ProjectSubmission{}, &models.OfferRedemption{}, &models.PollVote{},
		&models.BillUpload{}, &models.UserStreak{},
		&models.Achievement{}, &models.UserAchievementProgress{},
		&models.Challenge{}, &models.UserChallengeProgress{},
		&models.LearningContent{}, &models.ActivityLog{},
		&models.Wallet{}, &models.WalletLedgerEntry{}, &models.RewardClaim{},
	)
	return db.NewFromGorm(conn)
}

func TestPipelineProcessesEventsEndToEnd(t *testing.T) {
	ctx := context.Background()
	client := openDB(t)
	cache := newMemoryRedis()
	sink := &captureSink{}

	p, err := NewPipeline(Params{
		Config:     testConfig(),
		Logger:     logger.Nop(),
		DB:         client,
		Redis:      cache,
		Registerer: prometheus.NewRegistry(),
		Sink:       sink,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		achievements.ConsumerName,
		challenges.ConsumerName,
		streaks.ConsumerName,
		leaderboard.ConsumerName,
		activity.ConsumerName,
		relay.ConsumerName,
	}, p.Bus.Subscriptions())

	conn := client.DB()
	userID := uuid.New()
	require.NoError(t, conn.Create(&models.User{ID: userID, Email: "ana@example.com"}).Error)
	require.NoError(t, conn.Create(&models.Order{
		ID: uuid.New(), UserID: userID, StoreID: uuid.New(),
		Status: models.OrderStatusDelivered, TotalPrice: decimal.NewFromInt(40),
	}).Error)
	first := models.Achievement{
		Slug:          "first_order",
		Title:         "First order",
		Conditions:    types.ConditionSet{Type: enums.ConditionTypeSimple, Rules: []types.ConditionRule{{Metric: enums.MetricTotalOrders, Operator: enums.OperatorGTE, Target: 1}}},
		CoinReward:    50,
		Repeatability: enums.RepeatabilityOneTime,
		IsActive:      true,
	}
	require.NoError(t, achievements.NewRepository(conn).Create(ctx, &first))

	rankKey := redis.LeaderboardRankKey(string(enums.LeaderboardWeekly), userID.String())
	require.NoError(t, cache.Set(ctx, rankKey, `{"rank":3}`, time.Minute))

	require.NoError(t, p.Start(ctx))
	p.Initialize(ctx)

	for _, eventType := range []enums.ActivityEventType{
		enums.ActivityEventOrderDelivered,
		enums.ActivityEventOrderDelivered,
		enums.ActivityEventLogin,
	} {
		_, err := p.Emitter().Emit(ctx, eventType, events.Payload{UserID: userID, Source: "test"})
		require.NoError(t, err)
	}
	require.NoError(t, p.Close(ctx))

	balance, err := p.Wallet.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance.AvailableCoins, "the achievement pays exactly once")

	streak, err := streaks.NewRepository(conn).Get(ctx, userID, enums.StreakTypeLogin)
	require.NoError(t, err)
	assert.Equal(t, 1, streak.CurrentStreak)

	history, err := p.Activity.History(ctx, userID, pagination.Params{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, history.Items, 3)

	assert.False(t, cache.has(rankKey))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Len(t, sink.msgs, 3)
	assert.True(t, sink.closed)
}

func TestPipelineWithoutActivityLogOrRelay(t *testing.T) {
	cfg := testConfig()
	cfg.Eventing.ActivityLogging = false

	p, err := NewPipeline(Params{
		Config: cfg,
		Logger: logger.Nop(),
		DB:     openDB(t),
		Redis:  newMemoryRedis(),
	})
	require.NoError(t, err)
	assert.Len(t, p.Bus.Subscriptions(), 4)
	require.NoError(t, p.Close(context.Background()))
}

func TestNewPipelineRequiresDependencies(t *testing.T) {
	full := Params{Config: testConfig(), Logger: logger.Nop(), DB: openDB(t), Redis: newMemoryRedis()}

	cases := map[string]func(p *Params){
		"config": func(p *Params) { p.Config = nil },
		"logger": func(p *Params) { p.Logger = nil },
		"db":     func(p *Params) { p.DB = nil },
		"redis":  func(p *Params) { p.Redis = nil },
		"ttl":    func(p *Params) { p.Config = testConfig(); p.Config.Eventing.ProcessedTTL = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			params := full
			mutate(&params)
			_, err := NewPipeline(params)
			require.Error(t, err)
		})
	}
}
