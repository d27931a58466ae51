package leaderboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/cashstore-backend/internal/events"
	"github.com/angelmondragon/cashstore-backend/pkg/enums"
	"github.com/angelmondragon/cashstore-backend/pkg/logger"
	"github.com/angelmondragon/cashstore-backend/pkg/redis"
)

type memoryStore struct {
	mu      sync.Mutex
	values  map[string]string
	ttls    map[string]time.Duration
	delErr  error
	deleted []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.delErr != nil {
		return m.delErr
	}
	for _, key := range keys {
		delete(m.values, key)
		m.deleted = append(m.deleted, key)
	}
	return nil
}

type countingRanker struct {
	calls int
	entry Entry
}

func (r *countingRanker) Rank(context.Context, enums.LeaderboardPeriod, uuid.UUID) (Entry, error) {
	r.calls++
	return r.entry, nil
}

func newCache(t *testing.T, store Store) *Cache {
	t.Helper()
	cache, err := NewCache(store, 15*time.Minute, logger.Nop())
	require.NoError(t, err)
	return cache
}

func TestAffectingEventInvalidatesRank(t *testing.T) {
	store := newMemoryStore()
	cache := newCache(t, store)
	ctx := context.Background()
	userID := uuid.New()
	other := uuid.New()

	for _, period := range enums.LeaderboardPeriods() {
		require.NoError(t, cache.SetRank(ctx, period, userID, Entry{Rank: 3, Score: 120}))
	}
	require.NoError(t, cache.SetRank(ctx, enums.LeaderboardWeekly, other, Entry{Rank: 1}))

	require.NoError(t, cache.HandleEvent(ctx, events.ActivityEvent{UserID: userID, Type: enums.ActivityEventOrderPlaced}))

	for _, period := range enums.LeaderboardPeriods() {
		_, ok, err := cache.GetRank(ctx, period, userID)
		require.NoError(t, err)
		assert.False(t, ok, "period %s should be invalidated", period)
	}
	_, ok, err := cache.GetRank(ctx, enums.LeaderboardWeekly, other)
	require.NoError(t, err)
	assert.True(t, ok, "other users keep their cached rank")
}

func TestNonAffectingEventLeavesCache(t *testing.T) {
	store := newMemoryStore()
	cache := newCache(t, store)
	ctx := context.Background()
	userID := uuid.New()
	require.NoError(t, cache.SetRank(ctx, enums.LeaderboardDaily, userID, Entry{Rank: 7}))

	require.NoError(t, cache.HandleEvent(ctx, events.ActivityEvent{UserID: userID, Type: enums.ActivityEventProfileUpdated}))

	entry, ok, err := cache.GetRank(ctx, enums.LeaderboardDaily, userID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 7, entry.Rank)
	assert.Empty(t, store.deleted)
}

func TestLookupIsCacheAside(t *testing.T) {
	store := newMemoryStore()
	cache := newCache(t, store)
	ctx := context.Background()
	userID := uuid.New()
	ranker := &countingRanker{entry: Entry{Rank: 2, Score: 80}}

	first, err := cache.Lookup(ctx, enums.LeaderboardMonthly, userID, ranker)
	require.NoError(t, err)
	second, err := cache.Lookup(ctx, enums.LeaderboardMonthly, userID, ranker)
	require.NoError(t, err)

	assert.Equal(t, 1, ranker.calls)
	assert.Equal(t, first.Rank, second.Rank)
	key := redis.LeaderboardRankKey(string(enums.LeaderboardMonthly), userID.String())
	assert.Equal(t, 15*time.Minute, store.ttls[key])
}

func TestInvalidateReportsStoreErrors(t *testing.T) {
	store := newMemoryStore()
	store.delErr = errors.New("connection refused")
	cache := newCache(t, store)

	err := cache.HandleEvent(context.Background(), events.ActivityEvent{UserID: uuid.New(), Type: enums.ActivityEventGamePlayed})
	require.ErrorContains(t, err, "connection refused")
}

func TestAffects(t *testing.T) {
	assert.True(t, Affects(enums.ActivityEventLearningCompleted))
	assert.False(t, Affects(enums.ActivityEventVideoViewed))
}
