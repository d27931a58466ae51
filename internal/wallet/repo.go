package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/cashstore-backend/internal/repo"
	"github.com/angelmondragon/cashstore-backend/pkg/db/models"
)

// Repository manages wallet balances and the append-only ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Ensure(ctx context.Context, userID uuid.UUID) error
	Increment(ctx context.Context, userID uuid.UUID, amount int64) (int64, error)
	Get(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	AppendEntry(ctx context.Context, entry *models.WalletLedgerEntry) error
	ListEntries(ctx context.Context, userID uuid.UUID, limit int) ([]models.WalletLedgerEntry, error)
	CountEntries(ctx context.Context, userID uuid.UUID, idempotencyKey string) (int64, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Base.WithTx(tx)}
}

func (r *repository) Ensure(ctx context.Context, userID uuid.UUID) error {
	return r.DB(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Wallet{UserID: userID}).Error
}

// Increment adds amount to the available, total and earned balances in one
// statement and returns the new available balance.
func (r *repository) Increment(ctx context.Context, userID uuid.UUID, amount int64) (int64, error) {
	res := r.DB(ctx).
		Model(&models.Wallet{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"available_coins": gorm.Expr("available_coins + ?", amount),
			"total_coins":     gorm.Expr("total_coins + ?", amount),
			"total_earned":    gorm.Expr("total_earned + ?", amount),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected != 1 {
		return 0, fmt.Errorf("wallet for user %s not found", userID)
	}
	wallet, err := r.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	return wallet.AvailableCoins, nil
}

func (r *repository) Get(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.DB(ctx).Where("user_id = ?", userID).Take(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) AppendEntry(ctx context.Context, entry *models.WalletLedgerEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.DB(ctx).Create(entry).Error
}

func (r *repository) ListEntries(ctx context.Context, userID uuid.UUID, limit int) ([]models.WalletLedgerEntry, error) {
	var entries []models.WalletLedgerEntry
	query := r.DB(ctx).Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) CountEntries(ctx context.Context, userID uuid.UUID, idempotencyKey string) (int64, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.WalletLedgerEntry{}).
		Where("user_id = ? AND idempotency_key = ?", userID, idempotencyKey).
		Count(&count).Error
	return count, err
}
