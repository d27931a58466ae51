package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/cashstore-backend/internal/achievements"
	pkgerrors "github.com/angelmondragon/cashstore-backend/pkg/errors"
	"github.com/angelmondragon/cashstore-backend/pkg/logger"
)

const (
	reconcileBatchSize = 200
	reconcileLookback  = 26 * time.Hour
)

type AchievementReconcileJobParams struct {
	Logger    *logger.Logger
	Users     activeUserLister
	Engine    achievementRecalculator
	BatchSize int
	Lookback  time.Duration
	// ActivityLogDisabled reports that events are not written to activity_logs,
	// which leaves the job no way to find users.
	ActivityLogDisabled bool
}

type activeUserLister interface {
	UsersActiveSince(ctx context.Context, since time.Time, after uuid.UUID, limit int) ([]uuid.UUID, error)
}

type achievementRecalculator interface {
	RecalculateAll(ctx context.Context, userID uuid.UUID) (achievements.Result, error)
}

// NewAchievementReconcileJob re-evaluates every achievement for users with
// recent activity. It catches unlocks or credits lost to handler failures.
func NewAchievementReconcileJob(params AchievementReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("activity repository required")
	}
	if params.Engine == nil {
		return nil, fmt.Errorf("achievement engine required")
	}
	if params.ActivityLogDisabled {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "achievement reconcile needs activity logging enabled")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = reconcileBatchSize
	}
	lookback := params.Lookback
	if lookback <= 0 {
		lookback = reconcileLookback
	}
	return &achievementReconcileJob{
		logg:     params.Logger,
		users:    params.Users,
		engine:   params.Engine,
		batch:    batch,
		lookback: lookback,
		now:      time.Now,
	}, nil
}

type achievementReconcileJob struct {
	logg     *logger.Logger
	users    activeUserLister
	engine   achievementRecalculator
	batch    int
	lookback time.Duration
	now      func() time.Time
}

func (j *achievementReconcileJob) Name() string { return "achievement-reconcile" }

func (j *achievementReconcileJob) Run(ctx context.Context) error {
	since := j.now().UTC().Add(-j.lookback)
	var (
		errs     error
		after    uuid.UUID
		users    int
		unlocked int
		failed   int
	)
	for {
		ids, err := j.users.UsersActiveSince(ctx, since, after, j.batch)
		if err != nil {
			return fmt.Errorf("list active users: %w", err)
		}
		for _, id := range ids {
			if ctx.Err() != nil {
				return multierr.Append(errs, ctx.Err())
			}
			users++
			res, err := j.engine.RecalculateAll(ctx, id)
			if err != nil {
				failed++
				errs = multierr.Append(errs, fmt.Errorf("user %s: %w", id, err))
				continue
			}
			unlocked += len(res.Unlocked)
		}
		if len(ids) < j.batch {
			break
		}
		after = ids[len(ids)-1]
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"since":          since,
		"users":          users,
		"users_failed":   failed,
		"newly_unlocked": unlocked,
	})
	j.logg.Info(logCtx, "achievement reconcile complete")
	return errs
}
