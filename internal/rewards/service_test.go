package rewards

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/cashstore-backend/internal/wallet"
	"github.com/angelmondragon/cashstore-backend/pkg/db"
	"github.com/angelmondragon/cashstore-backend/pkg/db/dbtest"
	"github.com/angelmondragon/cashstore-backend/pkg/db/models"
	"github.com/angelmondragon/cashstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cashstore-backend/pkg/errors"
	"github.com/angelmondragon/cashstore-backend/pkg/logger"
	"github.com/angelmondragon/cashstore-backend/pkg/metrics"
)

type fixture struct {
	conn    *gorm.DB
	wallets wallet.Repository
	claims  ClaimRepository
	svc     *Service
}

func newFixture(t *testing.T, mutate func(*ServiceParams)) fixture {
	t.Helper()
	conn := dbtest.Open(t, &models.Wallet{}, &models.WalletLedgerEntry{}, &models.RewardClaim{})
	wallets := wallet.NewRepository(conn)
	claims := NewClaimRepository(conn)
	params := ServiceParams{
		Logger:  logger.Nop(),
		Tx:      db.NewFromGorm(conn),
		Claims:  claims,
		Wallets: wallets,
		Metrics: metrics.NewRewardMetrics(prometheus.NewRegistry()),
	}
	if mutate != nil {
		mutate(&params)
	}
	svc, err := NewService(params)
	require.NoError(t, err)
	return fixture{conn: conn, wallets: wallets, claims: claims, svc: svc}
}

func creditInput(userID uuid.UUID) CreditInput {
	return CreditInput{
		UserID:         userID,
		IdempotencyKey: "achievement:first-order",
		Amount:         50,
		Reason:         enums.RewardReasonAchievement,
		Description:    "First order",
	}
}

func TestCredit_FirstCallCreditsAndReplayIsNoop(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	userID := uuid.New()

	first, err := f.svc.Credit(ctx, creditInput(userID))
	require.NoError(t, err)
	assert.True(t, first.Credited)
	assert.False(t, first.AlreadyClaimed)
	assert.Equal(t, int64(50), first.Amount)
	assert.Equal(t, int64(50), first.Balance)

	second, err := f.svc.Credit(ctx, creditInput(userID))
	require.NoError(t, err)
	assert.False(t, second.Credited)
	assert.True(t, second.AlreadyClaimed)

	w, err := f.wallets.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), w.AvailableCoins)
	assert.Equal(t, int64(50), w.TotalEarned)

	count, err := f.wallets.CountEntries(ctx, userID, "achievement:first-order")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	claimed, err := f.svc.Status(ctx, userID, "achievement:first-order")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestCredit_ConcurrentCallsCreditOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	userID := uuid.New()

	const callers = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		credited int
		replays  int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.Credit(ctx, creditInput(userID))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if res.Credited {
				credited++
			}
			if res.AlreadyClaimed {
				replays++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, credited)
	assert.Equal(t, callers-1, replays)

	w, err := f.wallets.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), w.AvailableCoins)

	count, err := f.wallets.CountEntries(ctx, userID, "achievement:first-order")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCredit_DistinctKeysCreditSeparately(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	userID := uuid.New()

	in := creditInput(userID)
	_, err := f.svc.Credit(ctx, in)
	require.NoError(t, err)

	in.IdempotencyKey = "challenge:weekly"
	in.Reason = enums.RewardReasonChallenge
	in.Amount = 25
	res, err := f.svc.Credit(ctx, in)
	require.NoError(t, err)
	assert.True(t, res.Credited)
	assert.Equal(t, int64(75), res.Balance)
}

type failingLedger struct {
	wallet.Repository
}

func (f failingLedger) WithTx(tx *gorm.DB) wallet.Repository {
	return failingLedger{Repository: f.Repository.WithTx(tx)}
}

func (f failingLedger) AppendEntry(context.Context, *models.WalletLedgerEntry) error {
	return errors.New("ledger unavailable")
}

func TestCredit_LedgerFailureRollsBackEverything(t *testing.T) {
	f := newFixture(t, func(p *ServiceParams) {
		p.Wallets = failingLedger{Repository: p.Wallets}
	})
	ctx := context.Background()
	userID := uuid.New()

	_, err := f.svc.Credit(ctx, creditInput(userID))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	_, err = f.wallets.Get(ctx, userID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	claimed, err := f.svc.Status(ctx, userID, "achievement:first-order")
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestCredit_LedgerBestEffortKeepsBalance(t *testing.T) {
	f := newFixture(t, func(p *ServiceParams) {
		p.Wallets = failingLedger{Repository: p.Wallets}
		p.LedgerBestEffort = true
	})
	ctx := context.Background()
	userID := uuid.New()

	res, err := f.svc.Credit(ctx, creditInput(userID))
	require.NoError(t, err)
	assert.True(t, res.Credited)

	w, err := f.wallets.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), w.AvailableCoins)

	count, err := f.wallets.CountEntries(ctx, userID, "achievement:first-order")
	require.NoError(t, err)
	assert.Zero(t, count)

	replay, err := f.svc.Credit(ctx, creditInput(userID))
	require.NoError(t, err)
	assert.True(t, replay.AlreadyClaimed)
}

func TestCredit_Validation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	cases := map[string]CreditInput{
		"missing user":   {IdempotencyKey: "k", Amount: 1, Reason: enums.RewardReasonAchievement},
		"missing key":    {UserID: uuid.New(), Amount: 1, Reason: enums.RewardReasonAchievement},
		"zero amount":    {UserID: uuid.New(), IdempotencyKey: "k", Reason: enums.RewardReasonAchievement},
		"unknown reason": {UserID: uuid.New(), IdempotencyKey: "k", Amount: 1, Reason: "bonus"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Credit(ctx, in)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
		})
	}
}

func TestNewService_RequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.EqualError(t, err, "logger required")

	_, err = NewService(ServiceParams{Logger: logger.Nop()})
	require.EqualError(t, err, "transaction runner required")
}
