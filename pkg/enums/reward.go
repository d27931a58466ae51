package enums

import "fmt"

// RewardReason labels why coins were granted.
type RewardReason string

const (
	RewardReasonAchievement RewardReason = "achievement"
	RewardReasonChallenge   RewardReason = "challenge"
	RewardReasonLearning    RewardReason = "learning"
	RewardReasonStreak      RewardReason = "streak"
	RewardReasonAdjustment  RewardReason = "adjustment"
)

var validRewardReasons = []RewardReason{
	RewardReasonAchievement,
	RewardReasonChallenge,
	RewardReasonLearning,
	RewardReasonStreak,
	RewardReasonAdjustment,
}

// IsValid reports whether the value matches a known reward reason.
func (r RewardReason) IsValid() bool {
	for _, candidate := range validRewardReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRewardReason converts raw input into RewardReason.
func ParseRewardReason(value string) (RewardReason, error) {
	for _, candidate := range validRewardReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reward reason %q", value)
}

// LedgerEntryType is the direction of a wallet ledger entry.
type LedgerEntryType string

const (
	LedgerEntryCredit LedgerEntryType = "credit"
	LedgerEntryDebit  LedgerEntryType = "debit"
)

// LeaderboardPeriod names a cached leaderboard window.
type LeaderboardPeriod string

const (
	LeaderboardDaily   LeaderboardPeriod = "daily"
	LeaderboardWeekly  LeaderboardPeriod = "weekly"
	LeaderboardMonthly LeaderboardPeriod = "monthly"
	LeaderboardAllTime LeaderboardPeriod = "alltime"
)

// LeaderboardPeriods lists every cached period.
func LeaderboardPeriods() []LeaderboardPeriod {
	return []LeaderboardPeriod{LeaderboardDaily, LeaderboardWeekly, LeaderboardMonthly, LeaderboardAllTime}
}
