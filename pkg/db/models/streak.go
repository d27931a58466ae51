package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/cashstore-backend/pkg/enums"
)

// StreakDayLayout is the calendar-day format stored in LastActivityDate (UTC).
const StreakDayLayout = "2006-01-02"

// UserStreak tracks consecutive active days for one streak type.
type UserStreak struct {
	ID               uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	UserID           uuid.UUID        `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_user_streaks_user_type,priority:1"`
	Type             enums.StreakType `gorm:"column:type;type:text;not null;uniqueIndex:ux_user_streaks_user_type,priority:2"`
	CurrentStreak    int              `gorm:"column:current_streak;not null;default:0"`
	LongestStreak    int              `gorm:"column:longest_streak;not null;default:0"`
	LastActivityDate string           `gorm:"column:last_activity_date;type:varchar(10);not null"`
	TotalDays        int              `gorm:"column:total_days;not null;default:0"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
