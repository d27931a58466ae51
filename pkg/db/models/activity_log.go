package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cashstore-backend/pkg/enums"
	"github.com/angelmondragon/cashstore-backend/pkg/types"
)

// ActivityLog is the persisted audit copy of an emitted activity event.
type ActivityLog struct {
	EventID      uuid.UUID               `gorm:"column:event_id;type:uuid;primaryKey"`
	UserID       uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index:ix_activity_logs_user_time,priority:1"`
	Type         enums.ActivityEventType `gorm:"column:type;type:text;not null"`
	Category     enums.ActivityCategory  `gorm:"column:category;type:text;not null"`
	EntityID     *uuid.UUID              `gorm:"column:entity_id;type:uuid"`
	EntityType   string                  `gorm:"column:entity_type;type:text;not null;default:''"`
	Amount       *decimal.Decimal        `gorm:"column:amount;type:numeric(14,2)"`
	StoreID      *uuid.UUID              `gorm:"column:store_id;type:uuid"`
	CategorySlug string                  `gorm:"column:category_slug;type:text;not null;default:''"`
	Metadata     types.JSONMap           `gorm:"column:metadata;type:jsonb"`
	Source       string                  `gorm:"column:source;type:text;not null;default:''"`
	OccurredAt   time.Time               `gorm:"column:occurred_at;not null;index:ix_activity_logs_user_time,priority:2;index"`
	CreatedAt    time.Time               `gorm:"column:created_at;autoCreateTime"`
}
