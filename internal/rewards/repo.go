package rewards

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/cashstore-backend/internal/repo"
	"github.com/angelmondragon/cashstore-backend/pkg/db/models"
	"github.com/angelmondragon/cashstore-backend/pkg/enums"
)

// ClaimRepository persists claim records keyed by (user, idempotency key).
type ClaimRepository interface {
	WithTx(tx *gorm.DB) ClaimRepository
	InsertIfAbsent(ctx context.Context, userID uuid.UUID, key string, reason enums.RewardReason) error
	LockForUpdate(ctx context.Context, userID uuid.UUID, key string) (*models.RewardClaim, error)
	MarkClaimed(ctx context.Context, claimID uuid.UUID, amount int64, at time.Time) (bool, error)
	Get(ctx context.Context, userID uuid.UUID, key string) (*models.RewardClaim, error)
}

type claimRepository struct {
	repo.Base
}

// NewClaimRepository returns a claim repository bound to the provided database.
func NewClaimRepository(db *gorm.DB) ClaimRepository {
	return &claimRepository{Base: repo.NewBase(db)}
}

func (r *claimRepository) WithTx(tx *gorm.DB) ClaimRepository {
	if tx == nil {
		return r
	}
	return &claimRepository{Base: r.Base.WithTx(tx)}
}

func (r *claimRepository) InsertIfAbsent(ctx context.Context, userID uuid.UUID, key string, reason enums.RewardReason) error {
	claim := &models.RewardClaim{
		ID:             uuid.New(),
		UserID:         userID,
		IdempotencyKey: key,
		Reason:         reason,
	}
	return r.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "idempotency_key"}},
			DoNothing: true,
		}).
		Create(claim).Error
}

// LockForUpdate reads the claim row with a row lock (FOR UPDATE is a no-op on sqlite).
func (r *claimRepository) LockForUpdate(ctx context.Context, userID uuid.UUID, key string) (*models.RewardClaim, error) {
	var claim models.RewardClaim
	err := r.DB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		Take(&claim).Error
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

// MarkClaimed flips claimed only if it is still false and reports whether it did.
func (r *claimRepository) MarkClaimed(ctx context.Context, claimID uuid.UUID, amount int64, at time.Time) (bool, error) {
	res := r.DB(ctx).
		Model(&models.RewardClaim{}).
		Where("id = ? AND claimed = ?", claimID, false).
		Updates(map[string]any{
			"claimed":      true,
			"claimed_at":   at,
			"amount_coins": amount,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *claimRepository) Get(ctx context.Context, userID uuid.UUID, key string) (*models.RewardClaim, error) {
	var claim models.RewardClaim
	if err := r.DB(ctx).Where("user_id = ? AND idempotency_key = ?", userID, key).Take(&claim).Error; err != nil {
		return nil, err
	}
	return &claim, nil
}
