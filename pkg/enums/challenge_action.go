package enums

import "fmt"

// ChallengeAction is the user action a challenge counts.
type ChallengeAction string

const (
	ChallengeActionOrderCount       ChallengeAction = "order_count"
	ChallengeActionSpendAmount      ChallengeAction = "spend_amount"
	ChallengeActionReviewCount      ChallengeAction = "review_count"
	ChallengeActionReferralCount    ChallengeAction = "referral_count"
	ChallengeActionBillUploadCount  ChallengeAction = "bill_upload_count"
	ChallengeActionPollVoteCount    ChallengeAction = "poll_vote_count"
	ChallengeActionShareCount       ChallengeAction = "share_count"
	ChallengeActionVideoUploadCount ChallengeAction = "video_upload_count"
	ChallengeActionOfferRedeemCount ChallengeAction = "offer_redeem_count"
	ChallengeActionGamePlayCount    ChallengeAction = "game_play_count"
)

var validChallengeActions = []ChallengeAction{
	ChallengeActionOrderCount,
	ChallengeActionSpendAmount,
	ChallengeActionReviewCount,
	ChallengeActionReferralCount,
	ChallengeActionBillUploadCount,
	ChallengeActionPollVoteCount,
	ChallengeActionShareCount,
	ChallengeActionVideoUploadCount,
	ChallengeActionOfferRedeemCount,
	ChallengeActionGamePlayCount,
}

// IsValid reports whether the value matches a known challenge action.
func (a ChallengeAction) IsValid() bool {
	for _, candidate := range validChallengeActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseChallengeAction converts raw input into ChallengeAction.
func ParseChallengeAction(value string) (ChallengeAction, error) {
	for _, candidate := range validChallengeActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid challenge action %q", value)
}
