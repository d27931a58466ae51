package activity

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/cashstore-backend/internal/events"
	"github.com/angelmondragon/cashstore-backend/pkg/db/dbtest"
	"github.com/angelmondragon/cashstore-backend/pkg/db/models"
	"github.com/angelmondragon/cashstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cashstore-backend/pkg/errors"
	"github.com/angelmondragon/cashstore-backend/pkg/pagination"
)

var base = time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)

func newEvent(userID uuid.UUID, eventType enums.ActivityEventType, at time.Time) events.ActivityEvent {
	return events.ActivityEvent{
		EventID:   uuid.New(),
		UserID:    userID,
		Type:      eventType,
		Category:  eventType.Category(),
		Timestamp: at,
	}
}

func TestRecorderPersistsEvents(t *testing.T) {
	repo := NewRepository(dbtest.Open(t, &models.ActivityLog{}))
	recorder, err := NewRecorder(repo)
	require.NoError(t, err)
	ctx := context.Background()
	userID := uuid.New()

	amount := decimal.RequireFromString("49.90")
	placed := newEvent(userID, enums.ActivityEventOrderPlaced, base)
	placed.Data.Amount = &amount
	placed.Data.Metadata = map[string]any{"orderNumber": "CS-1001"}
	placed.Source = "checkout"

	require.NoError(t, recorder.HandleEvent(ctx, placed))
	require.NoError(t, recorder.HandleEvent(ctx, placed), "duplicate deliveries are ignored")
	require.NoError(t, recorder.HandleEvent(ctx, newEvent(userID, enums.ActivityEventLogin, base.Add(time.Hour))))
	require.NoError(t, recorder.HandleEvent(ctx, newEvent(uuid.New(), enums.ActivityEventLogin, base)))

	page, err := recorder.History(ctx, userID, pagination.Params{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, page.NextCursor)
	history := page.Items
	require.Len(t, history, 2)
	assert.Equal(t, enums.ActivityEventLogin, history[0].Type)
	assert.Equal(t, enums.ActivityCategoryAccount, history[0].Category)
	assert.Equal(t, placed.EventID, history[1].EventID)
	require.NotNil(t, history[1].Amount)
	assert.True(t, amount.Equal(*history[1].Amount))
	assert.Equal(t, "CS-1001", history[1].Metadata["orderNumber"])
	assert.Equal(t, "checkout", history[1].Source)

	first, err := recorder.History(ctx, userID, pagination.Params{Limit: 1})
	require.NoError(t, err)
	require.Len(t, first.Items, 1)
	require.NotEmpty(t, first.NextCursor)
	older, err := recorder.History(ctx, userID, pagination.Params{Limit: 1, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, older.Items, 1)
	assert.Equal(t, placed.EventID, older.Items[0].EventID)
	assert.Empty(t, older.NextCursor)

	_, err = recorder.History(ctx, userID, pagination.Params{Cursor: "not-a-cursor!"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestListByUserBreaksTiesByEventID(t *testing.T) {
	repo := NewRepository(dbtest.Open(t, &models.ActivityLog{}))
	ctx := context.Background()
	userID := uuid.New()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Insert(ctx, FromEvent(newEvent(userID, enums.ActivityEventLogin, base))))
	}
	all, err := repo.ListByUser(ctx, userID, nil, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)

	rest, err := repo.ListByUser(ctx, userID, &pagination.Cursor{At: base, ID: all[0].EventID}, 10)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, all[1].EventID, rest[0].EventID)
	assert.Equal(t, all[2].EventID, rest[1].EventID)
}

func TestUsersActiveSinceAndDeleteBefore(t *testing.T) {
	repo := NewRepository(dbtest.Open(t, &models.ActivityLog{}))
	ctx := context.Background()
	recent := uuid.New()
	stale := uuid.New()

	require.NoError(t, repo.Insert(ctx, FromEvent(newEvent(recent, enums.ActivityEventLogin, base))))
	require.NoError(t, repo.Insert(ctx, FromEvent(newEvent(recent, enums.ActivityEventPollVoted, base.Add(time.Minute)))))
	require.NoError(t, repo.Insert(ctx, FromEvent(newEvent(stale, enums.ActivityEventLogin, base.AddDate(0, 0, -100)))))

	users, err := repo.UsersActiveSince(ctx, base.Add(-time.Hour), uuid.Nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{recent}, users)

	page, err := repo.UsersActiveSince(ctx, base.AddDate(0, 0, -200), uuid.Nil, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	rest, err := repo.UsersActiveSince(ctx, base.AddDate(0, 0, -200), page[0], 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.ElementsMatch(t, []uuid.UUID{recent, stale}, append(page, rest...))

	deleted, err := repo.DeleteBefore(ctx, nil, base.AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	history, err := repo.ListByUser(ctx, stale, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}
