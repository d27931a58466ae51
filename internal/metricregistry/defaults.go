package metricregistry

import (
	"github.com/angelmondragon/cashstore-backend/pkg/db/models"
	"github.com/angelmondragon/cashstore-backend/pkg/enums"
)

var orderMetrics = []enums.MetricKey{
	enums.MetricTotalOrders,
	enums.MetricTotalSpent,
	enums.MetricUniqueStoresVisited,
	enums.MetricMaxOrderValue,
	enums.MetricTotalActivity,
	enums.MetricEngagementScore,
}

// DefaultDefinitions is the built-in metric table.
func DefaultDefinitions() []Definition {
	delivered := &Filter{Column: "status", Value: models.OrderStatusDelivered}
	login := &Filter{Column: "type", Value: string(enums.StreakTypeLogin)}
	return []Definition{
		{Key: enums.MetricTotalOrders, Label: "Orders", Description: "Delivered orders", Source: enums.MetricSourceOrders, Aggregation: enums.AggregationCount, Filter: delivered},
		{Key: enums.MetricTotalSpent, Label: "Total spent", Description: "Sum of delivered order totals", Source: enums.MetricSourceOrders, Aggregation: enums.AggregationSum, Field: "total_price", Filter: delivered},
		{Key: enums.MetricUniqueStoresVisited, Label: "Stores visited", Description: "Distinct stores with a delivered order", Source: enums.MetricSourceOrders, Aggregation: enums.AggregationDistinctCount, Field: "store_id", Filter: delivered},
		{Key: enums.MetricMaxOrderValue, Label: "Largest order", Description: "Largest delivered order total", Source: enums.MetricSourceOrders, Aggregation: enums.AggregationMax, Field: "total_price", Filter: delivered},
		{Key: enums.MetricTotalReviews, Label: "Reviews", Description: "Reviews written", Source: enums.MetricSourceReviews, Aggregation: enums.AggregationCount},
		{Key: enums.MetricTotalHelpfulVotes, Label: "Helpful votes", Description: "Helpful votes received on reviews", Source: enums.MetricSourceReviews, Aggregation: enums.AggregationSum, Field: "helpful_votes"},
		{Key: enums.MetricTotalVideos, Label: "Videos", Description: "Videos uploaded", Source: enums.MetricSourceVideos, Aggregation: enums.AggregationCount, UserColumn: "creator_id"},
		{Key: enums.MetricTotalVideoViews, Label: "Video views", Description: "Views across uploaded videos", Source: enums.MetricSourceVideos, Aggregation: enums.AggregationSum, Field: "views", UserColumn: "creator_id"},
		{Key: enums.MetricTotalProjects, Label: "Projects", Description: "Project submissions", Source: enums.MetricSourceProjects, Aggregation: enums.AggregationCount},
		{Key: enums.MetricProjectEarnings, Label: "Project earnings", Description: "Amount paid for project submissions", Source: enums.MetricSourceProjects, Aggregation: enums.AggregationSum, Field: "paid_amount"},
		{Key: enums.MetricOffersRedeemed, Label: "Offers redeemed", Description: "Offers redeemed", Source: enums.MetricSourceOfferRedemptions, Aggregation: enums.AggregationCount},
		{Key: enums.MetricPollsVoted, Label: "Polls voted", Description: "Poll votes cast", Source: enums.MetricSourcePollVotes, Aggregation: enums.AggregationCount},
		{Key: enums.MetricBillsUploaded, Label: "Bills uploaded", Description: "Bills uploaded for cashback", Source: enums.MetricSourceBillUploads, Aggregation: enums.AggregationCount},
		{Key: enums.MetricTotalReferrals, Label: "Referrals", Description: "Completed referrals", Source: enums.MetricSourceUsers, Aggregation: enums.AggregationField, Field: "total_referrals"},
		{Key: enums.MetricDaysActive, Label: "Days active", Description: "Days since sign-up", Source: enums.MetricSourceUsers, Aggregation: enums.AggregationField, Field: "created_at", Transform: enums.MetricTransformDaysSince},
		{Key: enums.MetricLoginStreak, Label: "Login streak", Description: "Current consecutive login days", Source: enums.MetricSourceUserStreaks, Aggregation: enums.AggregationField, Field: "current_streak", Filter: login},
		{Key: enums.MetricLongestLoginStreak, Label: "Longest login streak", Description: "Longest consecutive login days", Source: enums.MetricSourceUserStreaks, Aggregation: enums.AggregationField, Field: "longest_streak", Filter: login},
		{
			Key:         enums.MetricTotalActivity,
			Label:       "Total activity",
			Description: "Orders, videos, projects, reviews and redeemed offers",
			Source:      enums.MetricSourceDerived,
			Aggregation: enums.AggregationComputed,
			Components: []enums.MetricKey{
				enums.MetricTotalOrders,
				enums.MetricTotalVideos,
				enums.MetricTotalProjects,
				enums.MetricTotalReviews,
				enums.MetricOffersRedeemed,
			},
		},
		{
			Key:         enums.MetricEngagementScore,
			Label:       "Engagement score",
			Description: "Total activity plus polls and bills",
			Source:      enums.MetricSourceDerived,
			Aggregation: enums.AggregationComputed,
			Components:  []enums.MetricKey{enums.MetricTotalActivity, enums.MetricPollsVoted, enums.MetricBillsUploaded},
		},
	}
}

// DefaultEventMap is the built-in event to metric table. Event types that are
// absent are deliberate no-ops for achievement evaluation.
func DefaultEventMap() EventToMetrics {
	return EventToMetrics{
		enums.ActivityEventOrderDelivered: orderMetrics,
		enums.ActivityEventOrderCancelled: orderMetrics,
		enums.ActivityEventReviewSubmitted: {
			enums.MetricTotalReviews, enums.MetricTotalActivity, enums.MetricEngagementScore,
		},
		enums.ActivityEventReviewHelpfulVote: {enums.MetricTotalHelpfulVotes},
		enums.ActivityEventLogin: {
			enums.MetricLoginStreak, enums.MetricLongestLoginStreak, enums.MetricDaysActive,
		},
		enums.ActivityEventPollVoted:         {enums.MetricPollsVoted, enums.MetricEngagementScore},
		enums.ActivityEventBillUploaded:      {enums.MetricBillsUploaded, enums.MetricEngagementScore},
		enums.ActivityEventReferralCompleted: {enums.MetricTotalReferrals},
		enums.ActivityEventVideoUploaded: {
			enums.MetricTotalVideos, enums.MetricTotalActivity, enums.MetricEngagementScore,
		},
		enums.ActivityEventVideoViewed: {enums.MetricTotalVideoViews},
		enums.ActivityEventProjectSubmitted: {
			enums.MetricTotalProjects, enums.MetricTotalActivity, enums.MetricEngagementScore,
		},
		enums.ActivityEventProjectApproved: {enums.MetricProjectEarnings},
		enums.ActivityEventOfferRedeemed: {
			enums.MetricOffersRedeemed, enums.MetricTotalActivity, enums.MetricEngagementScore,
		},
	}
}

// Default returns the built-in registry. It panics if the built-in table is invalid.
func Default() *Registry {
	r, err := New(DefaultDefinitions(), DefaultEventMap())
	if err != nil {
		panic(err)
	}
	return r
}
