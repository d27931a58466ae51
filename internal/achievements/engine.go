// Package achievements evaluates achievement conditions against user metrics
// and credits the reward when an achievement unlocks.
package achievements

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/cashstore-backend/internal/events"
	"github.com/angelmondragon/cashstore-backend/internal/rewards"
	"github.com/angelmondragon/cashstore-backend/internal/usermetrics"
	"github.com/angelmondragon/cashstore-backend/pkg/db/models"
	"github.com/angelmondragon/cashstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cashstore-backend/pkg/errors"
	"github.com/angelmondragon/cashstore-backend/pkg/logger"
)

// ConsumerName identifies the engine's bus subscription and processed-event scope.
const ConsumerName = "achievements"

const guardReleaseTimeout = 2 * time.Second

// MetricComputer produces metric snapshots for a user.
type MetricComputer interface {
	ComputeForEvent(ctx context.Context, userID uuid.UUID, eventType enums.ActivityEventType) (usermetrics.Snapshot, error)
	ComputeAll(ctx context.Context, userID uuid.UUID) (usermetrics.Snapshot, error)
	Compute(ctx context.Context, userID uuid.UUID, keys []enums.MetricKey) (usermetrics.Snapshot, error)
}

// ProcessedGuard remembers which events were already handled.
type ProcessedGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Result lists the achievements unlocked by one evaluation pass.
type Result struct {
	Unlocked []uuid.UUID
}

// ProgressView is the read model returned by Progress.
type ProgressView struct {
	AchievementID  uuid.UUID
	Slug           string
	Title          string
	CoinReward     int64
	Repeatability  enums.Repeatability
	Progress       int
	CurrentValue   float64
	TargetValue    float64
	Unlocked       bool
	UnlockedAt     *time.Time
	TimesCompleted int
	PeriodKey      string
	Rules          []RuleView
}

// RuleView reports progress on a single rule.
type RuleView struct {
	Metric       enums.MetricKey
	CurrentValue float64
	TargetValue  float64
	Met          bool
}

// EngineParams wires the engine's collaborators. Guard is optional.
type EngineParams struct {
	Logger  *logger.Logger
	Repo    Repository
	Metrics MetricComputer
	Rewards rewards.Crediter
	Guard   ProcessedGuard
	Now     func() time.Time
}

// Engine evaluates achievements for a user.
type Engine struct {
	logg    *logger.Logger
	repo    Repository
	metrics MetricComputer
	rewards rewards.Crediter
	guard   ProcessedGuard
	now     func() time.Time
}

// NewEngine validates dependencies and builds an engine.
func NewEngine(params EngineParams) (*Engine, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("achievement repository required")
	}
	if params.Metrics == nil {
		return nil, fmt.Errorf("metric computer required")
	}
	if params.Rewards == nil {
		return nil, fmt.Errorf("reward crediter required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		logg:    params.Logger,
		repo:    params.Repo,
		metrics: params.Metrics,
		rewards: params.Rewards,
		guard:   params.Guard,
		now:     now,
	}, nil
}

// HandleEvent is the bus consumer: it recomputes the metrics the event affects
// and evaluates the achievements that track them.
func (e *Engine) HandleEvent(ctx context.Context, event events.ActivityEvent) error {
	if e.guard != nil {
		seen, err := e.guard.CheckAndMarkProcessed(ctx, ConsumerName, event.EventID)
		if err != nil {
			e.logg.Warn(e.logg.WithField(ctx, "error", err.Error()), "processed-event guard unavailable")
		} else if seen {
			e.logg.Debug(ctx, "event already processed")
			return nil
		}
	}

	err := e.handle(ctx, event)
	if err != nil && e.guard != nil {
		// The handler context may already be cancelled by the bus timeout.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), guardReleaseTimeout)
		defer cancel()
		if releaseErr := e.guard.Release(rctx, ConsumerName, event.EventID); releaseErr != nil {
			err = multierr.Append(err, releaseErr)
		}
	}
	return err
}

func (e *Engine) handle(ctx context.Context, event events.ActivityEvent) error {
	snapshot, err := e.metrics.ComputeForEvent(ctx, event.UserID, event.Type)
	if err != nil {
		return err
	}
	if len(snapshot) == 0 {
		return nil
	}
	metadata := map[string]any{
		"event_id":   event.EventID.String(),
		"event_type": string(event.Type),
	}
	for k, v := range event.Data.Metadata {
		if _, reserved := metadata[k]; !reserved {
			metadata[k] = v
		}
	}
	_, err = e.ProcessMetricUpdate(ctx, event.UserID, snapshot, metadata)
	return err
}

// ProcessMetricUpdate evaluates every active achievement that tracks at least
// one metric in snapshot. Rule metrics missing from snapshot are computed so
// compound conditions see current values. Failures on one achievement do not
// stop the others; they are combined in the returned error.
func (e *Engine) ProcessMetricUpdate(ctx context.Context, userID uuid.UUID, snapshot usermetrics.Snapshot, metadata map[string]any) (Result, error) {
	if userID == uuid.Nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if len(snapshot) == 0 {
		return Result{}, nil
	}

	active, err := e.repo.ListActive(ctx)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list achievements")
	}
	relevant := make([]models.Achievement, 0, len(active))
	for _, a := range active {
		if a.Tracks(snapshot) {
			relevant = append(relevant, a)
		}
	}
	if len(relevant) == 0 {
		return Result{}, nil
	}

	values, err := e.completeSnapshot(ctx, userID, snapshot, relevant)
	if err != nil {
		return Result{}, err
	}
	return e.evaluate(ctx, userID, relevant, values, metadata, false)
}

// RecalculateAll recomputes every metric for the user and evaluates every
// active achievement. Rewards for achievements already unlocked in the current
// period are credited again, which is a no-op unless an earlier credit failed.
func (e *Engine) RecalculateAll(ctx context.Context, userID uuid.UUID) (Result, error) {
	if userID == uuid.Nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	values, err := e.metrics.ComputeAll(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	active, err := e.repo.ListActive(ctx)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list achievements")
	}
	ctx = e.logg.WithUserID(ctx, userID.String())
	return e.evaluate(ctx, userID, active, values, map[string]any{"source": "recalculate"}, true)
}

func (e *Engine) completeSnapshot(ctx context.Context, userID uuid.UUID, snapshot usermetrics.Snapshot, relevant []models.Achievement) (usermetrics.Snapshot, error) {
	values := snapshot.Clone()
	var missing []enums.MetricKey
	seen := map[enums.MetricKey]bool{}
	for _, a := range relevant {
		for _, key := range a.Conditions.Metrics() {
			if _, ok := values[key]; ok || seen[key] {
				continue
			}
			seen[key] = true
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return values, nil
	}
	extra, err := e.metrics.Compute(ctx, userID, missing)
	if err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, ok := values[k]; !ok {
			values[k] = v
		}
	}
	return values, nil
}

func (e *Engine) evaluate(ctx context.Context, userID uuid.UUID, achievements []models.Achievement, values usermetrics.Snapshot, metadata map[string]any, recredit bool) (Result, error) {
	unlockedSet, err := e.repo.UnlockedIDs(ctx, userID)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load unlocked achievements")
	}

	var (
		result Result
		errs   error
	)
	for _, a := range achievements {
		if !prerequisitesMet(a, unlockedSet) {
			continue
		}
		unlocked, err := e.evaluateOne(ctx, userID, a, values, metadata, recredit)
		if err != nil {
			e.logg.Error(e.logg.WithField(ctx, "achievement_id", a.ID.String()), "achievement evaluation failed", err)
			errs = multierr.Append(errs, fmt.Errorf("achievement %s: %w", a.Slug, err))
			continue
		}
		if unlocked {
			unlockedSet[a.ID] = true
			result.Unlocked = append(result.Unlocked, a.ID)
		}
	}
	return result, errs
}

func prerequisitesMet(a models.Achievement, unlocked map[uuid.UUID]bool) bool {
	for _, id := range a.Prerequisites {
		if !unlocked[id] {
			return false
		}
	}
	return true
}

func (e *Engine) evaluateOne(ctx context.Context, userID uuid.UUID, a models.Achievement, values usermetrics.Snapshot, metadata map[string]any, recredit bool) (bool, error) {
	now := e.now().UTC()
	period := PeriodKey(a.Repeatability, now)

	var target float64
	if len(a.Conditions.Rules) > 0 {
		target = a.Conditions.Rules[0].Target
	}
	row, err := e.repo.EnsureProgress(ctx, userID, a.ID, target)
	if err != nil {
		return false, fmt.Errorf("ensure progress: %w", err)
	}

	// Repeatable achievements stay unlocked once earned; a new period only
	// reopens completion through period_key.
	if row.Unlocked && row.PeriodKey == period {
		if recredit {
			return false, e.credit(ctx, userID, a, row.PeriodKey, metadata)
		}
		return false, nil
	}

	eval := Evaluate(a.Conditions, values, now)
	if !eval.Unlocked {
		if err := e.repo.UpdateProgress(ctx, row.ID, eval, period); err != nil {
			return false, fmt.Errorf("update progress: %w", err)
		}
		return false, nil
	}

	won, err := e.repo.Unlock(ctx, row.ID, eval, period, now)
	if err != nil {
		return false, fmt.Errorf("unlock: %w", err)
	}
	if !won {
		return false, nil
	}
	e.logg.Info(e.logg.WithFields(ctx, map[string]any{
		"achievement_id": a.ID.String(),
		"slug":           a.Slug,
		"period":         period,
	}), "achievement unlocked")

	return true, e.credit(ctx, userID, a, period, metadata)
}

func (e *Engine) credit(ctx context.Context, userID uuid.UUID, a models.Achievement, period string, metadata map[string]any) error {
	if a.CoinReward <= 0 {
		return nil
	}
	meta := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta["slug"] = a.Slug
	_, err := e.rewards.Credit(ctx, rewards.CreditInput{
		UserID:         userID,
		IdempotencyKey: CreditKey(a.ID, period),
		Amount:         a.CoinReward,
		Reason:         enums.RewardReasonAchievement,
		Description:    "Achievement unlocked: " + a.Title,
		ReferenceType:  "achievement",
		ReferenceID:    a.ID.String(),
		Metadata:       meta,
	})
	if err != nil {
		return fmt.Errorf("credit reward: %w", err)
	}
	return nil
}

// Progress returns the user's state for every active achievement.
func (e *Engine) Progress(ctx context.Context, userID uuid.UUID) ([]ProgressView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	active, err := e.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list achievements")
	}
	rows, err := e.repo.ListProgress(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list progress")
	}
	byAchievement := make(map[uuid.UUID]models.UserAchievementProgress, len(rows))
	for _, row := range rows {
		byAchievement[row.AchievementID] = row
	}

	out := make([]ProgressView, 0, len(active))
	for _, a := range active {
		view := ProgressView{
			AchievementID: a.ID,
			Slug:          a.Slug,
			Title:         a.Title,
			CoinReward:    a.CoinReward,
			Repeatability: a.Repeatability,
		}
		if len(a.Conditions.Rules) > 0 {
			view.TargetValue = a.Conditions.Rules[0].Target
		}
		if row, ok := byAchievement[a.ID]; ok {
			view.Progress = row.Progress
			view.CurrentValue = row.CurrentValue
			view.TargetValue = row.TargetValue
			view.Unlocked = row.Unlocked
			view.UnlockedAt = row.UnlockedAt
			view.TimesCompleted = row.TimesCompleted
			view.PeriodKey = row.PeriodKey
			for _, rule := range row.RuleProgress {
				view.Rules = append(view.Rules, RuleView(rule))
			}
		}
		out = append(out, view)
	}
	return out, nil
}
