package enums

import "fmt"

// ActivityEventType maps to the activity_event_type values persisted with activity logs.
type ActivityEventType string

const (
	ActivityEventOrderPlaced       ActivityEventType = "order_placed"
	ActivityEventOrderDelivered    ActivityEventType = "order_delivered"
	ActivityEventOrderCancelled    ActivityEventType = "order_cancelled"
	ActivityEventReviewSubmitted   ActivityEventType = "review_submitted"
	ActivityEventReviewHelpfulVote ActivityEventType = "review_helpful_vote"
	ActivityEventLogin             ActivityEventType = "login"
	ActivityEventPollVoted         ActivityEventType = "poll_voted"
	ActivityEventBillUploaded      ActivityEventType = "bill_uploaded"
	ActivityEventReferralCompleted ActivityEventType = "referral_completed"
	ActivityEventVideoUploaded     ActivityEventType = "video_uploaded"
	ActivityEventVideoViewed       ActivityEventType = "video_viewed"
	ActivityEventProjectSubmitted  ActivityEventType = "project_submitted"
	ActivityEventProjectApproved   ActivityEventType = "project_approved"
	ActivityEventOfferRedeemed     ActivityEventType = "offer_redeemed"
	ActivityEventSocialShare       ActivityEventType = "social_share"
	ActivityEventGamePlayed        ActivityEventType = "game_played"
	ActivityEventLearningCompleted ActivityEventType = "learning_completed"
	ActivityEventProfileUpdated    ActivityEventType = "profile_updated"
)

// ActivityCategory is the coarse reporting group derived from an event type.
type ActivityCategory string

const (
	ActivityCategoryCommerce   ActivityCategory = "commerce"
	ActivityCategorySocial     ActivityCategory = "social"
	ActivityCategoryEngagement ActivityCategory = "engagement"
	ActivityCategoryContent    ActivityCategory = "content"
	ActivityCategoryReferral   ActivityCategory = "referral"
	ActivityCategoryAccount    ActivityCategory = "account"
)

var activityEventCategories = map[ActivityEventType]ActivityCategory{
	ActivityEventOrderPlaced:       ActivityCategoryCommerce,
	ActivityEventOrderDelivered:    ActivityCategoryCommerce,
	ActivityEventOrderCancelled:    ActivityCategoryCommerce,
	ActivityEventOfferRedeemed:     ActivityCategoryCommerce,
	ActivityEventBillUploaded:      ActivityCategoryCommerce,
	ActivityEventReviewSubmitted:   ActivityCategorySocial,
	ActivityEventReviewHelpfulVote: ActivityCategorySocial,
	ActivityEventSocialShare:       ActivityCategorySocial,
	ActivityEventPollVoted:         ActivityCategoryEngagement,
	ActivityEventGamePlayed:        ActivityCategoryEngagement,
	ActivityEventLearningCompleted: ActivityCategoryEngagement,
	ActivityEventVideoUploaded:     ActivityCategoryContent,
	ActivityEventVideoViewed:       ActivityCategoryContent,
	ActivityEventProjectSubmitted:  ActivityCategoryContent,
	ActivityEventProjectApproved:   ActivityCategoryContent,
	ActivityEventReferralCompleted: ActivityCategoryReferral,
	ActivityEventLogin:             ActivityCategoryAccount,
	ActivityEventProfileUpdated:    ActivityCategoryAccount,
}

var validActivityEventTypes = []ActivityEventType{
	ActivityEventOrderPlaced,
	ActivityEventOrderDelivered,
	ActivityEventOrderCancelled,
	ActivityEventReviewSubmitted,
	ActivityEventReviewHelpfulVote,
	ActivityEventLogin,
	ActivityEventPollVoted,
	ActivityEventBillUploaded,
	ActivityEventReferralCompleted,
	ActivityEventVideoUploaded,
	ActivityEventVideoViewed,
	ActivityEventProjectSubmitted,
	ActivityEventProjectApproved,
	ActivityEventOfferRedeemed,
	ActivityEventSocialShare,
	ActivityEventGamePlayed,
	ActivityEventLearningCompleted,
	ActivityEventProfileUpdated,
}

// ActivityEventTypes returns every known event type in declaration order.
func ActivityEventTypes() []ActivityEventType {
	out := make([]ActivityEventType, len(validActivityEventTypes))
	copy(out, validActivityEventTypes)
	return out
}

func (t ActivityEventType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known activity event type.
func (t ActivityEventType) IsValid() bool {
	_, ok := activityEventCategories[t]
	return ok
}

// Category derives the reporting category; unknown types fall back to engagement.
func (t ActivityEventType) Category() ActivityCategory {
	if category, ok := activityEventCategories[t]; ok {
		return category
	}
	return ActivityCategoryEngagement
}

// ParseActivityEventType converts raw input into ActivityEventType.
func ParseActivityEventType(value string) (ActivityEventType, error) {
	for _, candidate := range validActivityEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid activity event type %q", value)
}
