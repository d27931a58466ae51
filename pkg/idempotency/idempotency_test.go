package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	seen        map[string]bool
	setNXError  error
	lastTTL     time.Duration
	lastDeleted string
}

func newFakeStore() *fakeStore {
	return &fakeStore{seen: map[string]bool{}}
}

func (f *fakeStore) Get(context.Context, string) (string, error) {
	return "", nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	if f.setNXError != nil {
		return false, f.setNXError
	}
	f.lastTTL = ttl
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "cs:idempotency:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.seen, key)
		f.lastDeleted = key
	}
	return nil
}

func TestCheckAndMarkProcessed(t *testing.T) {
	store := newFakeStore()
	manager, err := NewManager(store, 24*time.Hour)
	require.NoError(t, err)

	ctx := context.Background()
	eventID := uuid.New()

	already, err := manager.CheckAndMarkProcessed(ctx, "achievements", eventID)
	require.NoError(t, err)
	assert.False(t, already)
	assert.Equal(t, 24*time.Hour, store.lastTTL)
	assert.True(t, store.seen["cs:idempotency:evt:processed:achievements:"+eventID.String()])

	already, err = manager.CheckAndMarkProcessed(ctx, "achievements", eventID)
	require.NoError(t, err)
	assert.True(t, already)

	already, err = manager.CheckAndMarkProcessed(ctx, "challenges", eventID)
	require.NoError(t, err)
	assert.False(t, already, "consumers are tracked independently")
}

func TestReleaseAllowsReprocessing(t *testing.T) {
	store := newFakeStore()
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)

	ctx := context.Background()
	eventID := uuid.New()
	_, err = manager.CheckAndMarkProcessed(ctx, "achievements", eventID)
	require.NoError(t, err)

	require.NoError(t, manager.Release(ctx, "achievements", eventID))
	assert.Equal(t, "cs:idempotency:evt:processed:achievements:"+eventID.String(), store.lastDeleted)

	already, err := manager.CheckAndMarkProcessed(ctx, "achievements", eventID)
	require.NoError(t, err)
	assert.False(t, already)
}

func TestCheckAndMarkProcessedErrors(t *testing.T) {
	store := newFakeStore()
	store.setNXError = errors.New("boom")
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)

	_, err = manager.CheckAndMarkProcessed(context.Background(), "achievements", uuid.New())
	require.ErrorContains(t, err, "boom")

	_, err = manager.CheckAndMarkProcessed(context.Background(), "", uuid.New())
	require.EqualError(t, err, "consumer name is required")

	_, err = manager.CheckAndMarkProcessed(context.Background(), "achievements", uuid.Nil)
	require.EqualError(t, err, "event id is required")
}

func TestNewManagerValidation(t *testing.T) {
	_, err := NewManager(nil, time.Hour)
	require.Error(t, err)

	_, err = NewManager(newFakeStore(), 0)
	require.Error(t, err)
}
