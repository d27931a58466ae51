package achievements

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/cashstore-backend/internal/events"
	"github.com/angelmondragon/cashstore-backend/internal/metricregistry"
	"github.com/angelmondragon/cashstore-backend/internal/rewards"
	"github.com/angelmondragon/cashstore-backend/internal/usermetrics"
	"github.com/angelmondragon/cashstore-backend/internal/wallet"
	"github.com/angelmondragon/cashstore-backend/pkg/db"
	"github.com/angelmondragon/cashstore-backend/pkg/db/dbtest"
	"github.com/angelmondragon/cashstore-backend/pkg/db/models"
	"github.com/angelmondragon/cashstore-backend/pkg/enums"
	"github.com/angelmondragon/cashstore-backend/pkg/logger"
	"github.com/angelmondragon/cashstore-backend/pkg/types"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

type harness struct {
	conn    *gorm.DB
	repo    Repository
	wallets wallet.Repository
	engine  *Engine
	clock   *clock
}

func newHarness(t *testing.T, guard ProcessedGuard) *harness {
	t.Helper()
	conn := dbtest.Open(t,
		&models.User{}, &models.Order{}, &models.Review{}, &models.Video{},
		&models.ProjectSubmission{}, &models.OfferRedemption{}, &models.PollVote{},
		&models.BillUpload{}, &models.UserStreak{},
		&models.Achievement{}, &models.UserAchievementProgress{},
		&models.Wallet{}, &models.WalletLedgerEntry{}, &models.RewardClaim{},
	)
	clk := &clock{now: wednesday}

	metricsSvc, err := usermetrics.NewService(usermetrics.ServiceParams{
		Registry: metricregistry.Default(),
		Store:    usermetrics.NewStore(conn, clk.Now),
	})
	require.NoError(t, err)

	wallets := wallet.NewRepository(conn)
	rewardSvc, err := rewards.NewService(rewards.ServiceParams{
		Logger:  logger.Nop(),
		Tx:      db.NewFromGorm(conn),
		Claims:  rewards.NewClaimRepository(conn),
		Wallets: wallets,
		Now:     clk.Now,
	})
	require.NoError(t, err)

	repo := NewRepository(conn)
	engine, err := NewEngine(EngineParams{
		Logger:  logger.Nop(),
		Repo:    repo,
		Metrics: metricsSvc,
		Rewards: rewardSvc,
		Guard:   guard,
		Now:     clk.Now,
	})
	require.NoError(t, err)
	return &harness{conn: conn, repo: repo, wallets: wallets, engine: engine, clock: clk}
}

func (h *harness) achievement(t *testing.T, a models.Achievement) models.Achievement {
	t.Helper()
	a.IsActive = true
	if a.Repeatability == "" {
		a.Repeatability = enums.RepeatabilityOneTime
	}
	if a.Title == "" {
		a.Title = a.Slug
	}
	require.NoError(t, h.repo.Create(context.Background(), &a))
	return a
}

func (h *harness) deliveredOrder(t *testing.T, userID uuid.UUID, amount int64) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, h.conn.Create(&models.Order{
		ID:         id,
		UserID:     userID,
		StoreID:    uuid.New(),
		Status:     models.OrderStatusDelivered,
		TotalPrice: decimal.NewFromInt(amount),
	}).Error)
	return id
}

func (h *harness) balance(t *testing.T, userID uuid.UUID) int64 {
	t.Helper()
	w, err := h.wallets.Get(context.Background(), userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0
	}
	require.NoError(t, err)
	return w.AvailableCoins
}

func (h *harness) ledgerCount(t *testing.T, userID uuid.UUID, key string) int64 {
	t.Helper()
	n, err := h.wallets.CountEntries(context.Background(), userID, key)
	require.NoError(t, err)
	return n
}

func (h *harness) progressRow(t *testing.T, userID, achievementID uuid.UUID) models.UserAchievementProgress {
	t.Helper()
	var row models.UserAchievementProgress
	require.NoError(t, h.conn.Where("user_id = ? AND achievement_id = ?", userID, achievementID).Take(&row).Error)
	return row
}

func simple(metric enums.MetricKey, target float64) types.ConditionSet {
	return types.ConditionSet{Type: enums.ConditionTypeSimple, Rules: []types.ConditionRule{rule(metric, target)}}
}

func TestHandleEvent_FirstOrderUnlocksOnceEvenWhenDeliveredTwice(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	userID := uuid.New()
	first := h.achievement(t, models.Achievement{Slug: "first-order", Conditions: simple(enums.MetricTotalOrders, 1), CoinReward: 50})
	h.deliveredOrder(t, userID, 500)

	event := events.ActivityEvent{EventID: uuid.New(), UserID: userID, Type: enums.ActivityEventOrderDelivered}
	require.NoError(t, h.engine.HandleEvent(ctx, event))
	require.NoError(t, h.engine.HandleEvent(ctx, event))

	row := h.progressRow(t, userID, first.ID)
	assert.True(t, row.Unlocked)
	assert.Equal(t, 100, row.Progress)
	assert.Equal(t, 1, row.TimesCompleted)
	assert.Equal(t, int64(50), h.balance(t, userID))
	assert.Equal(t, int64(1), h.ledgerCount(t, userID, CreditKey(first.ID, "")))
}

type memoryGuard struct {
	seen     map[uuid.UUID]bool
	released []uuid.UUID
}

func (g *memoryGuard) CheckAndMarkProcessed(_ context.Context, _ string, id uuid.UUID) (bool, error) {
	if g.seen[id] {
		return true, nil
	}
	g.seen[id] = true
	return false, nil
}

func (g *memoryGuard) Release(ctx context.Context, _ string, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	delete(g.seen, id)
	g.released = append(g.released, id)
	return nil
}

func TestHandleEvent_GuardSkipsDuplicateDelivery(t *testing.T) {
	guard := &memoryGuard{seen: map[uuid.UUID]bool{}}
	h := newHarness(t, guard)
	ctx := context.Background()
	userID := uuid.New()
	h.achievement(t, models.Achievement{Slug: "first-order", Conditions: simple(enums.MetricTotalOrders, 1), CoinReward: 50})
	h.deliveredOrder(t, userID, 500)

	event := events.ActivityEvent{EventID: uuid.New(), UserID: userID, Type: enums.ActivityEventOrderDelivered}
	require.NoError(t, h.engine.HandleEvent(ctx, event))
	require.NoError(t, h.engine.HandleEvent(ctx, event))

	assert.True(t, guard.seen[event.EventID])
	assert.Empty(t, guard.released)
	assert.Equal(t, int64(50), h.balance(t, userID))
}

func TestHandleEvent_ReleasesGuardAfterCancelledHandler(t *testing.T) {
	guard := &memoryGuard{seen: map[uuid.UUID]bool{}}
	h := newHarness(t, guard)
	userID := uuid.New()
	h.achievement(t, models.Achievement{Slug: "first-order", Conditions: simple(enums.MetricTotalOrders, 1), CoinReward: 50})
	h.deliveredOrder(t, userID, 500)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	event := events.ActivityEvent{EventID: uuid.New(), UserID: userID, Type: enums.ActivityEventOrderDelivered}
	require.Error(t, h.engine.HandleEvent(ctx, event))

	assert.Equal(t, []uuid.UUID{event.EventID}, guard.released)
	assert.False(t, guard.seen[event.EventID], "a redelivery must be processed again")

	require.NoError(t, h.engine.HandleEvent(context.Background(), event))
	assert.Equal(t, int64(50), h.balance(t, userID))
}

func TestHandleEvent_UnmappedTypeDoesNothing(t *testing.T) {
	h := newHarness(t, nil)
	userID := uuid.New()
	h.achievement(t, models.Achievement{Slug: "first-order", Conditions: simple(enums.MetricTotalOrders, 1), CoinReward: 50})

	event := events.ActivityEvent{EventID: uuid.New(), UserID: userID, Type: enums.ActivityEventProfileUpdated}
	require.NoError(t, h.engine.HandleEvent(context.Background(), event))

	var count int64
	require.NoError(t, h.conn.Model(&models.UserAchievementProgress{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestProcessMetricUpdate_CompoundUnlocksWhenBothRulesMet(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	userID := uuid.New()
	critic := h.achievement(t, models.Achievement{
		Slug: "helpful-critic",
		Conditions: types.ConditionSet{
			Type:       enums.ConditionTypeCompound,
			Combinator: enums.CombinatorAnd,
			Rules: []types.ConditionRule{
				rule(enums.MetricTotalReviews, 5),
				rule(enums.MetricTotalHelpfulVotes, 10),
			},
		},
		CoinReward: 100,
	})

	res, err := h.engine.ProcessMetricUpdate(ctx, userID, usermetrics.Snapshot{enums.MetricTotalReviews: 5}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Unlocked)
	row := h.progressRow(t, userID, critic.ID)
	assert.False(t, row.Unlocked)
	assert.Equal(t, 50, row.Progress, "unfetched helpful votes count as zero")
	require.Len(t, row.RuleProgress, 2)
	assert.True(t, row.RuleProgress[0].Met)
	assert.False(t, row.RuleProgress[1].Met)

	res, err = h.engine.ProcessMetricUpdate(ctx, userID, usermetrics.Snapshot{
		enums.MetricTotalReviews:      5,
		enums.MetricTotalHelpfulVotes: 10,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{critic.ID}, res.Unlocked)
	assert.Equal(t, int64(100), h.balance(t, userID))
}

func TestProcessMetricUpdate_UntypedRulesRequireEveryCondition(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	userID := uuid.New()
	critic := h.achievement(t, models.Achievement{
		Slug: "untyped-critic",
		Conditions: types.ConditionSet{Rules: []types.ConditionRule{
			rule(enums.MetricTotalReviews, 5),
			rule(enums.MetricTotalHelpfulVotes, 10),
		}},
		CoinReward: 50,
	})

	res, err := h.engine.ProcessMetricUpdate(ctx, userID, usermetrics.Snapshot{
		enums.MetricTotalReviews:      5,
		enums.MetricTotalHelpfulVotes: 0,
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Unlocked)
	assert.False(t, h.progressRow(t, userID, critic.ID).Unlocked)
	assert.Zero(t, h.balance(t, userID))
}

func TestProcessMetricUpdate_ComputesMissingRuleMetrics(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	userID := uuid.New()
	critic := h.achievement(t, models.Achievement{
		Slug: "helpful-critic",
		Conditions: types.ConditionSet{Type: enums.ConditionTypeCompound, Rules: []types.ConditionRule{
			rule(enums.MetricTotalReviews, 2),
			rule(enums.MetricTotalHelpfulVotes, 10),
		}},
		CoinReward: 10,
	})
	for i := 0; i < 2; i++ {
		require.NoError(t, h.conn.Create(&models.Review{ID: uuid.New(), UserID: userID, StoreID: uuid.New(), Rating: 5, HelpfulVotes: 5}).Error)
	}

	res, err := h.engine.ProcessMetricUpdate(ctx, userID, usermetrics.Snapshot{enums.MetricTotalReviews: 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{critic.ID}, res.Unlocked)
}

func TestRecalculateAll_UnlockIsMonotonic(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	userID := uuid.New()
	first := h.achievement(t, models.Achievement{Slug: "first-order", Conditions: simple(enums.MetricTotalOrders, 1), CoinReward: 50})
	orderID := h.deliveredOrder(t, userID, 500)

	res, err := h.engine.RecalculateAll(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{first.ID}, res.Unlocked)

	require.NoError(t, h.conn.Delete(&models.Order{}, "id = ?", orderID).Error)

	res, err = h.engine.RecalculateAll(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, res.Unlocked)

	row := h.progressRow(t, userID, first.ID)
	assert.True(t, row.Unlocked)
	assert.Equal(t, 1, row.TimesCompleted)
	assert.Equal(t, int64(50), h.balance(t, userID))
	assert.Equal(t, int64(1), h.ledgerCount(t, userID, CreditKey(first.ID, "")))
}

func TestRepeatableAchievementCompletesOncePerPeriod(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	userID := uuid.New()
	daily := h.achievement(t, models.Achievement{
		Slug:          "daily-shopper",
		Conditions:    simple(enums.MetricTotalOrders, 1),
		CoinReward:    5,
		Repeatability: enums.RepeatabilityDaily,
	})
	snapshot := usermetrics.Snapshot{enums.MetricTotalOrders: 1}

	_, err := h.engine.ProcessMetricUpdate(ctx, userID, snapshot, nil)
	require.NoError(t, err)
	_, err = h.engine.ProcessMetricUpdate(ctx, userID, snapshot, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), h.balance(t, userID))

	h.clock.now = wednesday.AddDate(0, 0, 1)
	res, err := h.engine.ProcessMetricUpdate(ctx, userID, usermetrics.Snapshot{enums.MetricTotalOrders: 0}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Unlocked)
	row := h.progressRow(t, userID, daily.ID)
	assert.True(t, row.Unlocked, "a new period never relocks the achievement")
	assert.Equal(t, "2026-05-20", row.PeriodKey)
	assert.Equal(t, 0, row.Progress)

	res, err = h.engine.ProcessMetricUpdate(ctx, userID, snapshot, nil)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{daily.ID}, res.Unlocked)

	row = h.progressRow(t, userID, daily.ID)
	assert.True(t, row.Unlocked)
	assert.Equal(t, 2, row.TimesCompleted)
	assert.Equal(t, "2026-05-21", row.PeriodKey)
	assert.Equal(t, int64(10), h.balance(t, userID))
	assert.Equal(t, int64(1), h.ledgerCount(t, userID, CreditKey(daily.ID, "2026-05-20")))
	assert.Equal(t, int64(1), h.ledgerCount(t, userID, CreditKey(daily.ID, "2026-05-21")))
}

func TestPrerequisitesGateEvaluation(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	userID := uuid.New()
	base := h.achievement(t, models.Achievement{Slug: "two-orders", Conditions: simple(enums.MetricTotalOrders, 2), CoinReward: 20, SortOrder: 0})
	follow := h.achievement(t, models.Achievement{
		Slug:          "after-two-orders",
		Conditions:    simple(enums.MetricTotalOrders, 1),
		CoinReward:    30,
		Prerequisites: types.UUIDList{base.ID},
		SortOrder:     1,
	})

	res, err := h.engine.ProcessMetricUpdate(ctx, userID, usermetrics.Snapshot{enums.MetricTotalOrders: 1}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Unlocked)

	res, err = h.engine.ProcessMetricUpdate(ctx, userID, usermetrics.Snapshot{enums.MetricTotalOrders: 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{base.ID, follow.ID}, res.Unlocked)
	assert.Equal(t, int64(50), h.balance(t, userID))
}

func TestProgressView(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	userID := uuid.New()
	orders := h.achievement(t, models.Achievement{Slug: "four-orders", Conditions: simple(enums.MetricTotalOrders, 4), CoinReward: 20})
	h.achievement(t, models.Achievement{Slug: "reviewer", Conditions: simple(enums.MetricTotalReviews, 1), CoinReward: 5, SortOrder: 1})

	_, err := h.engine.ProcessMetricUpdate(ctx, userID, usermetrics.Snapshot{enums.MetricTotalOrders: 1}, nil)
	require.NoError(t, err)

	views, err := h.engine.Progress(ctx, userID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, orders.ID, views[0].AchievementID)
	assert.Equal(t, 25, views[0].Progress)
	assert.Equal(t, 1.0, views[0].CurrentValue)
	assert.False(t, views[0].Unlocked)
	assert.Equal(t, "reviewer", views[1].Slug)
	assert.Zero(t, views[1].Progress)
	assert.Equal(t, 1.0, views[1].TargetValue)
}

func TestNewEngineRequiresDependencies(t *testing.T) {
	_, err := NewEngine(EngineParams{})
	require.EqualError(t, err, "logger required")

	_, err = NewEngine(EngineParams{Logger: logger.Nop()})
	require.EqualError(t, err, "achievement repository required")
}
