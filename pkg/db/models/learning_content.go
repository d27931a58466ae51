package models

import (
	"time"

	"github.com/google/uuid"
)

// LearningContent is a lesson that pays coins once per user on completion.
type LearningContent struct {
	ID                   uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Title                string    `gorm:"column:title;type:text;not null"`
	EstimatedSeconds     int       `gorm:"column:estimated_seconds;not null"`
	MinEngagementSeconds int       `gorm:"column:min_engagement_seconds;not null;default:0"`
	CoinReward           int64     `gorm:"column:coin_reward;not null;default:0"`
	Active               bool      `gorm:"column:active;not null"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
