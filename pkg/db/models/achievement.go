package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/cashstore-backend/pkg/enums"
	"github.com/angelmondragon/cashstore-backend/pkg/types"
)

// Achievement is an administrator-defined goal with a coin reward.
type Achievement struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Slug          string              `gorm:"column:slug;type:text;not null;uniqueIndex"`
	Title         string              `gorm:"column:title;type:text;not null"`
	Description   string              `gorm:"column:description;type:text;not null;default:''"`
	Conditions    types.ConditionSet  `gorm:"column:conditions;type:jsonb;not null"`
	CoinReward    int64               `gorm:"column:coin_reward;not null;default:0"`
	Repeatability enums.Repeatability `gorm:"column:repeatability;type:text;not null;default:'one_time'"`
	Prerequisites types.UUIDList      `gorm:"column:prerequisites;type:jsonb;not null"`
	IsActive      bool                `gorm:"column:is_active;not null"`
	SortOrder     int                 `gorm:"column:sort_order;not null;default:0"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// Tracks reports whether any rule of the achievement references one of the keys.
func (a Achievement) Tracks(keys map[enums.MetricKey]float64) bool {
	for _, rule := range a.Conditions.Rules {
		if _, ok := keys[rule.Metric]; ok {
			return true
		}
	}
	return false
}

// UserAchievementProgress tracks a user's evaluation state for one achievement.
type UserAchievementProgress struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID              `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_user_achievement_progress,priority:1"`
	AchievementID   uuid.UUID              `gorm:"column:achievement_id;type:uuid;not null;uniqueIndex:ux_user_achievement_progress,priority:2"`
	CurrentValue    float64                `gorm:"column:current_value;not null;default:0"`
	TargetValue     float64                `gorm:"column:target_value;not null;default:0"`
	Progress        int                    `gorm:"column:progress;not null;default:0"`
	RuleProgress    types.RuleProgressList `gorm:"column:rule_progress;type:jsonb;not null"`
	Unlocked        bool                   `gorm:"column:unlocked;not null;default:false"`
	UnlockedAt      *time.Time             `gorm:"column:unlocked_at"`
	PeriodKey       string                 `gorm:"column:period_key;type:text;not null;default:''"`
	TimesCompleted  int                    `gorm:"column:times_completed;not null;default:0"`
	LastCompletedAt *time.Time             `gorm:"column:last_completed_at"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
