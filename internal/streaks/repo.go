package streaks

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/cashstore-backend/internal/repo"
	"github.com/angelmondragon/cashstore-backend/pkg/db/models"
	"github.com/angelmondragon/cashstore-backend/pkg/enums"
)

// Repository persists user streak counters.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, userID uuid.UUID, streakType enums.StreakType) (*models.UserStreak, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.UserStreak, error)
	InsertFirst(ctx context.Context, streak *models.UserStreak) (bool, error)
	Advance(ctx context.Context, id uuid.UUID, expectedDay string, next Next) (bool, error)
}

// Next holds the values written when a streak moves to a new day.
type Next struct {
	Day     string
	Current int
	Longest int
}

type repository struct {
	repo.Base
}

// NewRepository returns a streak repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Base.WithTx(tx)}
}

func (r *repository) Get(ctx context.Context, userID uuid.UUID, streakType enums.StreakType) (*models.UserStreak, error) {
	var streak models.UserStreak
	err := r.DB(ctx).Where("user_id = ? AND type = ?", userID, streakType).Take(&streak).Error
	if err != nil {
		return nil, err
	}
	return &streak, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.UserStreak, error) {
	var out []models.UserStreak
	err := r.DB(ctx).Where("user_id = ?", userID).Order("type ASC").Find(&out).Error
	return out, err
}

// InsertFirst creates the streak row and reports false if another writer created it first.
func (r *repository) InsertFirst(ctx context.Context, streak *models.UserStreak) (bool, error) {
	if streak.ID == uuid.Nil {
		streak.ID = uuid.New()
	}
	res := r.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "type"}},
			DoNothing: true,
		}).
		Create(streak)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Advance writes next only if the stored day still equals expectedDay.
func (r *repository) Advance(ctx context.Context, id uuid.UUID, expectedDay string, next Next) (bool, error) {
	res := r.DB(ctx).
		Model(&models.UserStreak{}).
		Where("id = ? AND last_activity_date = ?", id, expectedDay).
		Updates(map[string]any{
			"last_activity_date": next.Day,
			"current_streak":     next.Current,
			"longest_streak":     next.Longest,
			"total_days":         gorm.Expr("total_days + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
