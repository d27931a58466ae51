package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the slice of the identity record that gamification reads.
type User struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Email          string     `gorm:"column:email;type:text;not null;uniqueIndex"`
	Name           string     `gorm:"column:name;type:text;not null;default:''"`
	TotalReferrals int        `gorm:"column:total_referrals;not null;default:0"`
	LastLoginAt    *time.Time `gorm:"column:last_login_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
