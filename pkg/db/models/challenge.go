package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cashstore-backend/pkg/enums"
	"github.com/angelmondragon/cashstore-backend/pkg/types"
)

// Challenge is a time-boxed goal counted from a single action type.
type Challenge struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	Title         string                `gorm:"column:title;type:text;not null"`
	Description   string                `gorm:"column:description;type:text;not null;default:''"`
	Action        enums.ChallengeAction `gorm:"column:action;type:text;not null;index"`
	Target        float64               `gorm:"column:target;not null"`
	CoinReward    int64                 `gorm:"column:coin_reward;not null;default:0"`
	StoreIDs      types.UUIDList        `gorm:"column:store_ids;type:jsonb;not null"`
	CategorySlugs types.StringList      `gorm:"column:category_slugs;type:jsonb;not null"`
	MinAmount     *decimal.Decimal      `gorm:"column:min_amount;type:numeric(12,2)"`
	StartsAt      time.Time             `gorm:"column:starts_at;not null"`
	EndsAt        time.Time             `gorm:"column:ends_at;not null"`
	Active        bool                  `gorm:"column:active;not null"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// UserChallengeProgress counts a user's progress on one challenge.
type UserChallengeProgress struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID         uuid.UUID  `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_user_challenge_progress,priority:1"`
	ChallengeID    uuid.UUID  `gorm:"column:challenge_id;type:uuid;not null;uniqueIndex:ux_user_challenge_progress,priority:2"`
	Progress       float64    `gorm:"column:progress;not null;default:0"`
	Target         float64    `gorm:"column:target;not null"`
	Completed      bool       `gorm:"column:completed;not null;default:false"`
	CompletedAt    *time.Time `gorm:"column:completed_at"`
	RewardsClaimed bool       `gorm:"column:rewards_claimed;not null;default:false"`
	JoinedAt       time.Time  `gorm:"column:joined_at;not null"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
