package challenges

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cashstore-backend/internal/events"
	"github.com/angelmondragon/cashstore-backend/pkg/enums"
)

type actionRule struct {
	action enums.ChallengeAction
	// amount returns the progress increment; zero skips the action.
	amount func(events.ActivityEvent) float64
}

func countOne(events.ActivityEvent) float64 { return 1 }

func eventAmount(e events.ActivityEvent) float64 {
	amount := e.AmountOrZero()
	if amount.LessThanOrEqual(decimal.Zero) {
		return 0
	}
	return amount.InexactFloat64()
}

var eventActions = map[enums.ActivityEventType][]actionRule{
	enums.ActivityEventOrderPlaced: {
		{action: enums.ChallengeActionOrderCount, amount: countOne},
		{action: enums.ChallengeActionSpendAmount, amount: eventAmount},
	},
	enums.ActivityEventReviewSubmitted:   {{action: enums.ChallengeActionReviewCount, amount: countOne}},
	enums.ActivityEventReferralCompleted: {{action: enums.ChallengeActionReferralCount, amount: countOne}},
	enums.ActivityEventBillUploaded:      {{action: enums.ChallengeActionBillUploadCount, amount: countOne}},
	enums.ActivityEventPollVoted:         {{action: enums.ChallengeActionPollVoteCount, amount: countOne}},
	enums.ActivityEventSocialShare:       {{action: enums.ChallengeActionShareCount, amount: countOne}},
	enums.ActivityEventVideoUploaded:     {{action: enums.ChallengeActionVideoUploadCount, amount: countOne}},
	enums.ActivityEventOfferRedeemed:     {{action: enums.ChallengeActionOfferRedeemCount, amount: countOne}},
	enums.ActivityEventGamePlayed:        {{action: enums.ChallengeActionGamePlayCount, amount: countOne}},
}

// ActionsFor lists the challenge actions an event type advances.
func ActionsFor(eventType enums.ActivityEventType) []enums.ChallengeAction {
	rules := eventActions[eventType]
	out := make([]enums.ChallengeAction, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.action)
	}
	return out
}
