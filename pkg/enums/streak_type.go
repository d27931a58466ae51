package enums

import "fmt"

// StreakType maps to the user_streaks.type column.
type StreakType string

const (
	StreakTypeLogin      StreakType = "login"
	StreakTypeOrder      StreakType = "order"
	StreakTypeReview     StreakType = "review"
	StreakTypeEngagement StreakType = "engagement"
	StreakTypeLearning   StreakType = "learning"
)

var validStreakTypes = []StreakType{
	StreakTypeLogin,
	StreakTypeOrder,
	StreakTypeReview,
	StreakTypeEngagement,
	StreakTypeLearning,
}

// IsValid reports whether the value matches a known streak type.
func (s StreakType) IsValid() bool {
	for _, candidate := range validStreakTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStreakType converts raw input into StreakType.
func ParseStreakType(value string) (StreakType, error) {
	for _, candidate := range validStreakTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid streak type %q", value)
}
