package achievements

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/cashstore-backend/internal/repo"
	"github.com/angelmondragon/cashstore-backend/pkg/db/models"
	"github.com/angelmondragon/cashstore-backend/pkg/types"
)

// Repository persists achievement definitions and per-user progress.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListActive(ctx context.Context) ([]models.Achievement, error)
	Create(ctx context.Context, achievement *models.Achievement) error
	EnsureProgress(ctx context.Context, userID, achievementID uuid.UUID, target float64) (*models.UserAchievementProgress, error)
	ListProgress(ctx context.Context, userID uuid.UUID) ([]models.UserAchievementProgress, error)
	UnlockedIDs(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]bool, error)
	UpdateProgress(ctx context.Context, progressID uuid.UUID, eval Evaluation, periodKey string) error
	Unlock(ctx context.Context, progressID uuid.UUID, eval Evaluation, periodKey string, at time.Time) (bool, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns an achievements repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Base.WithTx(tx)}
}

func (r *repository) ListActive(ctx context.Context) ([]models.Achievement, error) {
	var out []models.Achievement
	err := r.DB(ctx).
		Where("is_active = ?", true).
		Order("sort_order ASC").
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (r *repository) Create(ctx context.Context, achievement *models.Achievement) error {
	if achievement.ID == uuid.Nil {
		achievement.ID = uuid.New()
	}
	if achievement.Prerequisites == nil {
		achievement.Prerequisites = types.UUIDList{}
	}
	return r.DB(ctx).Create(achievement).Error
}

// EnsureProgress creates the progress row if it does not exist and returns the
// stored row.
func (r *repository) EnsureProgress(ctx context.Context, userID, achievementID uuid.UUID, target float64) (*models.UserAchievementProgress, error) {
	row := &models.UserAchievementProgress{
		ID:            uuid.New(),
		UserID:        userID,
		AchievementID: achievementID,
		TargetValue:   target,
		RuleProgress:  types.RuleProgressList{},
	}
	err := r.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "achievement_id"}},
			DoNothing: true,
		}).
		Create(row).Error
	if err != nil {
		return nil, err
	}

	var stored models.UserAchievementProgress
	if err := r.DB(ctx).
		Where("user_id = ? AND achievement_id = ?", userID, achievementID).
		Take(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *repository) ListProgress(ctx context.Context, userID uuid.UUID) ([]models.UserAchievementProgress, error) {
	var out []models.UserAchievementProgress
	err := r.DB(ctx).Where("user_id = ?", userID).Find(&out).Error
	return out, err
}

func (r *repository) UnlockedIDs(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]bool, error) {
	var ids []uuid.UUID
	err := r.DB(ctx).
		Model(&models.UserAchievementProgress{}).
		Where("user_id = ? AND unlocked = ?", userID, true).
		Pluck("achievement_id", &ids).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// openForPeriod matches rows not yet completed in periodKey. One-time
// achievements use an empty key, so once unlocked they never match again.
func openForPeriod(db *gorm.DB, progressID uuid.UUID, periodKey string) *gorm.DB {
	return db.Model(&models.UserAchievementProgress{}).
		Where("id = ?", progressID).
		Where("unlocked = ? OR period_key <> ?", false, periodKey)
}

// UpdateProgress stores evaluation values on a row still open in periodKey.
func (r *repository) UpdateProgress(ctx context.Context, progressID uuid.UUID, eval Evaluation, periodKey string) error {
	return openForPeriod(r.DB(ctx), progressID, periodKey).
		Updates(map[string]any{
			"progress":      eval.Progress,
			"current_value": eval.CurrentValue,
			"target_value":  eval.TargetValue,
			"rule_progress": eval.Rules,
		}).Error
}

// Unlock records a completion for periodKey if the row is still open in that
// period. unlocked is only ever set to true. It reports whether this call
// performed the transition.
func (r *repository) Unlock(ctx context.Context, progressID uuid.UUID, eval Evaluation, periodKey string, at time.Time) (bool, error) {
	res := openForPeriod(r.DB(ctx), progressID, periodKey).
		Updates(map[string]any{
			"unlocked":          true,
			"unlocked_at":       at,
			"progress":          100,
			"current_value":     eval.CurrentValue,
			"target_value":      eval.TargetValue,
			"rule_progress":     eval.Rules,
			"period_key":        periodKey,
			"times_completed":   gorm.Expr("times_completed + 1"),
			"last_completed_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
