package streaks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/cashstore-backend/internal/events"
	"github.com/angelmondragon/cashstore-backend/pkg/db/dbtest"
	"github.com/angelmondragon/cashstore-backend/pkg/db/models"
	"github.com/angelmondragon/cashstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cashstore-backend/pkg/errors"
	"github.com/angelmondragon/cashstore-backend/pkg/logger"
)

var day1 = time.Date(2026, 5, 20, 8, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Service, Repository) {
	t.Helper()
	repo := NewRepository(dbtest.Open(t, &models.UserStreak{}))
	svc, err := NewService(ServiceParams{Logger: logger.Nop(), Repo: repo})
	require.NoError(t, err)
	return svc, repo
}

func login(userID uuid.UUID, at time.Time) events.ActivityEvent {
	return events.ActivityEvent{EventID: uuid.New(), UserID: userID, Type: enums.ActivityEventLogin, Timestamp: at}
}

func TestLoginStreakAcrossDays(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()
	userID := uuid.New()

	steps := []struct {
		at      time.Time
		current int
		longest int
		total   int
	}{
		{day1, 1, 1, 1},
		{day1.Add(10 * time.Hour), 1, 1, 1},
		{day1.AddDate(0, 0, 1), 2, 2, 2},
		{day1.AddDate(0, 0, 2).Add(15 * time.Hour), 3, 3, 3},
		{day1.AddDate(0, 0, 4), 1, 3, 4},
		{day1.AddDate(0, 0, 5), 2, 3, 5},
	}
	for i, step := range steps {
		require.NoError(t, svc.HandleEvent(ctx, login(userID, step.at)), "step %d", i)
		row, err := repo.Get(ctx, userID, enums.StreakTypeLogin)
		require.NoError(t, err)
		assert.Equal(t, step.current, row.CurrentStreak, "current at step %d", i)
		assert.Equal(t, step.longest, row.LongestStreak, "longest at step %d", i)
		assert.Equal(t, step.total, row.TotalDays, "total at step %d", i)
		assert.Equal(t, step.at.UTC().Format(models.StreakDayLayout), row.LastActivityDate)
	}
}

func TestDayBoundaryIsUTC(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	userID := uuid.New()
	tz := time.FixedZone("UTC-5", -5*3600)

	_, err := svc.Record(ctx, userID, enums.StreakTypeLogin, time.Date(2026, 5, 20, 22, 0, 0, 0, tz))
	require.NoError(t, err)
	row, err := svc.Record(ctx, userID, enums.StreakTypeLogin, time.Date(2026, 5, 21, 1, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, row.CurrentStreak, "22:00 UTC-5 is already the 21st in UTC")
}

func TestOlderActivityIsIgnored(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.Record(ctx, userID, enums.StreakTypeOrder, day1)
	require.NoError(t, err)
	row, err := svc.Record(ctx, userID, enums.StreakTypeOrder, day1.AddDate(0, 0, -3))
	require.NoError(t, err)
	assert.Equal(t, day1.Format(models.StreakDayLayout), row.LastActivityDate)
	assert.Equal(t, 1, row.CurrentStreak)
}

func TestConcurrentSameDayActivityCountsOnce(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()
	userID := uuid.New()
	_, err := svc.Record(ctx, userID, enums.StreakTypeLogin, day1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Record(ctx, userID, enums.StreakTypeLogin, day1.AddDate(0, 0, 1))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	row, err := repo.Get(ctx, userID, enums.StreakTypeLogin)
	require.NoError(t, err)
	assert.Equal(t, 2, row.CurrentStreak)
	assert.Equal(t, 2, row.TotalDays)
}

type racingRepo struct {
	Repository
	losses int
}

func (r *racingRepo) Advance(ctx context.Context, id uuid.UUID, expectedDay string, next Next) (bool, error) {
	if r.losses > 0 {
		r.losses--
		return false, nil
	}
	return r.Repository.Advance(ctx, id, expectedDay, next)
}

func TestRecordRetriesLostRaces(t *testing.T) {
	_, base := setup(t)
	ctx := context.Background()
	userID := uuid.New()

	racing := &racingRepo{Repository: base, losses: 2}
	svc, err := NewService(ServiceParams{Logger: logger.Nop(), Repo: racing, MaxAttempts: 3})
	require.NoError(t, err)

	_, err = svc.Record(ctx, userID, enums.StreakTypeReview, day1)
	require.NoError(t, err)
	row, err := svc.Record(ctx, userID, enums.StreakTypeReview, day1.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, row.CurrentStreak)

	racing.losses = 3
	_, err = svc.Record(ctx, userID, enums.StreakTypeReview, day1.AddDate(0, 0, 2))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestUnmappedEventsAreIgnored(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, svc.HandleEvent(ctx, events.ActivityEvent{EventID: uuid.New(), UserID: userID, Type: enums.ActivityEventVideoViewed, Timestamp: day1}))
	rows, err := repo.ListByUser(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, ok := StreakFor(enums.ActivityEventLearningCompleted)
	assert.True(t, ok)
}
