package activity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/cashstore-backend/internal/repo"
	"github.com/angelmondragon/cashstore-backend/pkg/db/models"
	"github.com/angelmondragon/cashstore-backend/pkg/pagination"
)

// Repository stores the activity audit log.
type Repository interface {
	Insert(ctx context.Context, entry *models.ActivityLog) error
	ListByUser(ctx context.Context, userID uuid.UUID, after *pagination.Cursor, limit int) ([]models.ActivityLog, error)
	UsersActiveSince(ctx context.Context, since time.Time, after uuid.UUID, limit int) ([]uuid.UUID, error)
	DeleteBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns an activity log repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

// Insert stores entry; a second insert of the same event id is ignored.
func (r *repository) Insert(ctx context.Context, entry *models.ActivityLog) error {
	return r.DB(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(entry).Error
}

// ListByUser returns the user's events newest first, resuming after cursor
// when one is given. Ties on occurred_at break by event id.
func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, after *pagination.Cursor, limit int) ([]models.ActivityLog, error) {
	if limit <= 0 {
		limit = pagination.DefaultLimit
	}
	query := r.DB(ctx).Where("user_id = ?", userID)
	if after != nil {
		at := after.At.UTC()
		query = query.Where("occurred_at < ? OR (occurred_at = ? AND event_id < ?)", at, at, after.ID)
	}
	var out []models.ActivityLog
	err := query.Order("occurred_at DESC").Order("event_id DESC").Limit(limit).Find(&out).Error
	return out, err
}

// UsersActiveSince lists distinct users with at least one event at or after
// since, ordered by id. A non-nil after resumes past that id.
func (r *repository) UsersActiveSince(ctx context.Context, since time.Time, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	query := r.DB(ctx).
		Model(&models.ActivityLog{}).
		Distinct("user_id").
		Where("occurred_at >= ?", since.UTC()).
		Order("user_id")
	if after != uuid.Nil {
		query = query.Where("user_id > ?", after)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var ids []uuid.UUID
	err := query.Pluck("user_id", &ids).Error
	return ids, err
}

// DeleteBefore removes events that occurred before cutoff.
func (r *repository) DeleteBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	conn := r.DB(ctx)
	if tx != nil {
		conn = tx.WithContext(ctx)
	}
	res := conn.Where("occurred_at < ?", cutoff.UTC()).Delete(&models.ActivityLog{})
	return res.RowsAffected, res.Error
}
