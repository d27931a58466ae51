package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/cashstore-backend/pkg/enums"
	"github.com/angelmondragon/cashstore-backend/pkg/types"
)

// Wallet holds a user's coin balance aggregate.
type Wallet struct {
	UserID         uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	AvailableCoins int64     `gorm:"column:available_coins;not null;default:0"`
	TotalCoins     int64     `gorm:"column:total_coins;not null;default:0"`
	TotalEarned    int64     `gorm:"column:total_earned;not null;default:0"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// WalletLedgerEntry is an append-only record of a balance change.
type WalletLedgerEntry struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	UserID         uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	Type           enums.LedgerEntryType `gorm:"column:type;type:text;not null"`
	Reason         enums.RewardReason    `gorm:"column:reason;type:text;not null"`
	AmountCoins    int64                 `gorm:"column:amount_coins;not null"`
	BalanceAfter   int64                 `gorm:"column:balance_after;not null"`
	IdempotencyKey string                `gorm:"column:idempotency_key;type:text;not null;default:''"`
	ReferenceType  string                `gorm:"column:reference_type;type:text;not null;default:''"`
	ReferenceID    string                `gorm:"column:reference_id;type:text;not null;default:''"`
	Description    string                `gorm:"column:description;type:text;not null;default:''"`
	Metadata       types.JSONMap         `gorm:"column:metadata;type:jsonb"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
}

// RewardClaim marks that a reward for (user, idempotency key) has been granted.
type RewardClaim struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	UserID         uuid.UUID          `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_reward_claims_user_key,priority:1"`
	IdempotencyKey string             `gorm:"column:idempotency_key;type:text;not null;uniqueIndex:ux_reward_claims_user_key,priority:2"`
	Reason         enums.RewardReason `gorm:"column:reason;type:text;not null"`
	AmountCoins    int64              `gorm:"column:amount_coins;not null;default:0"`
	Claimed        bool               `gorm:"column:claimed;not null;default:false"`
	ClaimedAt      *time.Time         `gorm:"column:claimed_at"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
