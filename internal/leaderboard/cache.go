// Package leaderboard caches per-user leaderboard ranks in Redis and drops
// them when activity that moves the leaderboard arrives.
package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/cashstore-backend/internal/events"
	"github.com/angelmondragon/cashstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cashstore-backend/pkg/errors"
	"github.com/angelmondragon/cashstore-backend/pkg/logger"
	"github.com/angelmondragon/cashstore-backend/pkg/redis"
)

// ConsumerName identifies the leaderboard subscription on the bus.
const ConsumerName = "leaderboard-cache"

var affectingEvents = map[enums.ActivityEventType]struct{}{
	enums.ActivityEventOrderPlaced:       {},
	enums.ActivityEventOrderDelivered:    {},
	enums.ActivityEventReviewSubmitted:   {},
	enums.ActivityEventReferralCompleted: {},
	enums.ActivityEventPollVoted:         {},
	enums.ActivityEventGamePlayed:        {},
	enums.ActivityEventLearningCompleted: {},
	enums.ActivityEventOfferRedeemed:     {},
}

// Affects reports whether the event type can change leaderboard standings.
func Affects(eventType enums.ActivityEventType) bool {
	_, ok := affectingEvents[eventType]
	return ok
}

// Store is the subset of the Redis client the cache uses.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Ranker computes a user's rank from the source of truth.
type Ranker interface {
	Rank(ctx context.Context, period enums.LeaderboardPeriod, userID uuid.UUID) (Entry, error)
}

// Entry is a cached rank.
type Entry struct {
	Rank       int       `json:"rank"`
	Score      float64   `json:"score"`
	ComputedAt time.Time `json:"computedAt"`
}

// Cache is a cache-aside store for leaderboard ranks.
type Cache struct {
	store Store
	ttl   time.Duration
	logg  *logger.Logger
}

// NewCache builds a rank cache.
func NewCache(store Store, ttl time.Duration, logg *logger.Logger) (*Cache, error) {
	if store == nil {
		return nil, fmt.Errorf("redis store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("cache ttl must be positive")
	}
	return &Cache{store: store, ttl: ttl, logg: logg}, nil
}

// GetRank returns the cached entry and whether it was present.
func (c *Cache) GetRank(ctx context.Context, period enums.LeaderboardPeriod, userID uuid.UUID) (Entry, bool, error) {
	raw, err := c.store.Get(ctx, redis.LeaderboardRankKey(string(period), userID.String()))
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read cached rank")
	}
	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "period", string(period)), "discarding unreadable cached rank")
		return Entry{}, false, nil
	}
	return entry, true, nil
}

// SetRank stores entry with the cache TTL.
func (c *Cache) SetRank(ctx context.Context, period enums.LeaderboardPeriod, userID uuid.UUID, entry Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := c.store.Set(ctx, redis.LeaderboardRankKey(string(period), userID.String()), string(payload), c.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write cached rank")
	}
	return nil
}

// Lookup serves the rank from cache, falling back to ranker and filling the cache.
func (c *Cache) Lookup(ctx context.Context, period enums.LeaderboardPeriod, userID uuid.UUID, ranker Ranker) (Entry, error) {
	if entry, ok, err := c.GetRank(ctx, period, userID); err == nil && ok {
		return entry, nil
	} else if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "rank cache read failed")
	}
	entry, err := ranker.Rank(ctx, period, userID)
	if err != nil {
		return Entry{}, err
	}
	if err := c.SetRank(ctx, period, userID, entry); err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "rank cache write failed")
	}
	return entry, nil
}

// Invalidate drops every cached period rank for the user.
func (c *Cache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	periods := enums.LeaderboardPeriods()
	keys := make([]string, 0, len(periods))
	for _, period := range periods {
		keys = append(keys, redis.LeaderboardRankKey(string(period), userID.String()))
	}
	if err := c.store.Del(ctx, keys...); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "invalidate cached ranks")
	}
	return nil
}

// HandleEvent invalidates the user's ranks for leaderboard-affecting events.
func (c *Cache) HandleEvent(ctx context.Context, event events.ActivityEvent) error {
	if !Affects(event.Type) {
		return nil
	}
	return c.Invalidate(ctx, event.UserID)
}
