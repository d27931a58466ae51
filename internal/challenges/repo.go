package challenges

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/cashstore-backend/internal/repo"
	"github.com/angelmondragon/cashstore-backend/pkg/db/models"
	"github.com/angelmondragon/cashstore-backend/pkg/enums"
	"github.com/angelmondragon/cashstore-backend/pkg/types"
)

// Repository persists challenges and per-user challenge progress.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, challenge *models.Challenge) error
	GetChallenge(ctx context.Context, id uuid.UUID) (*models.Challenge, error)
	ListActiveForAction(ctx context.Context, action enums.ChallengeAction, at time.Time) ([]models.Challenge, error)
	Join(ctx context.Context, userID uuid.UUID, challenge models.Challenge, at time.Time) error
	Increment(ctx context.Context, userID, challengeID uuid.UUID, amount float64) (bool, error)
	MarkCompleted(ctx context.Context, userID, challengeID uuid.UUID, at time.Time) (bool, error)
	MarkRewardsClaimed(ctx context.Context, userID, challengeID uuid.UUID) (bool, error)
	GetProgress(ctx context.Context, userID, challengeID uuid.UUID) (*models.UserChallengeProgress, error)
	ListProgress(ctx context.Context, userID uuid.UUID) ([]models.UserChallengeProgress, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a challenges repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Base.WithTx(tx)}
}

func (r *repository) Create(ctx context.Context, challenge *models.Challenge) error {
	if challenge.ID == uuid.Nil {
		challenge.ID = uuid.New()
	}
	if challenge.StoreIDs == nil {
		challenge.StoreIDs = types.UUIDList{}
	}
	if challenge.CategorySlugs == nil {
		challenge.CategorySlugs = types.StringList{}
	}
	return r.DB(ctx).Create(challenge).Error
}

func (r *repository) GetChallenge(ctx context.Context, id uuid.UUID) (*models.Challenge, error) {
	var challenge models.Challenge
	if err := r.DB(ctx).Where("id = ?", id).Take(&challenge).Error; err != nil {
		return nil, err
	}
	return &challenge, nil
}

func (r *repository) ListActiveForAction(ctx context.Context, action enums.ChallengeAction, at time.Time) ([]models.Challenge, error) {
	var out []models.Challenge
	err := r.DB(ctx).
		Where("action = ? AND active = ?", action, true).
		Where("starts_at <= ? AND ends_at >= ?", at, at).
		Order("ends_at ASC").
		Find(&out).Error
	return out, err
}

// Join enrols the user in the challenge if they are not enrolled yet.
func (r *repository) Join(ctx context.Context, userID uuid.UUID, challenge models.Challenge, at time.Time) error {
	return r.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "challenge_id"}},
			DoNothing: true,
		}).
		Create(&models.UserChallengeProgress{
			ID:          uuid.New(),
			UserID:      userID,
			ChallengeID: challenge.ID,
			Target:      challenge.Target,
			JoinedAt:    at,
		}).Error
}

// Increment adds amount to an incomplete challenge in a single statement.
func (r *repository) Increment(ctx context.Context, userID, challengeID uuid.UUID, amount float64) (bool, error) {
	res := r.DB(ctx).
		Model(&models.UserChallengeProgress{}).
		Where("user_id = ? AND challenge_id = ? AND completed = ?", userID, challengeID, false).
		Update("progress", gorm.Expr("progress + ?", amount))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkCompleted flips completed once progress has reached the target.
func (r *repository) MarkCompleted(ctx context.Context, userID, challengeID uuid.UUID, at time.Time) (bool, error) {
	res := r.DB(ctx).
		Model(&models.UserChallengeProgress{}).
		Where("user_id = ? AND challenge_id = ? AND completed = ? AND progress >= target", userID, challengeID, false).
		Updates(map[string]any{
			"completed":    true,
			"completed_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) MarkRewardsClaimed(ctx context.Context, userID, challengeID uuid.UUID) (bool, error) {
	res := r.DB(ctx).
		Model(&models.UserChallengeProgress{}).
		Where("user_id = ? AND challenge_id = ? AND completed = ? AND rewards_claimed = ?", userID, challengeID, true, false).
		Update("rewards_claimed", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) GetProgress(ctx context.Context, userID, challengeID uuid.UUID) (*models.UserChallengeProgress, error) {
	var row models.UserChallengeProgress
	if err := r.DB(ctx).Where("user_id = ? AND challenge_id = ?", userID, challengeID).Take(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) ListProgress(ctx context.Context, userID uuid.UUID) ([]models.UserChallengeProgress, error) {
	var out []models.UserChallengeProgress
	err := r.DB(ctx).Where("user_id = ?", userID).Order("joined_at DESC").Find(&out).Error
	return out, err
}
