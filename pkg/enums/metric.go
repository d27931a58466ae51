package enums

import "fmt"

// MetricKey identifies a registered user metric.
type MetricKey string

const (
	MetricTotalOrders         MetricKey = "totalOrders"
	MetricTotalSpent          MetricKey = "totalSpent"
	MetricUniqueStoresVisited MetricKey = "uniqueStoresVisited"
	MetricMaxOrderValue       MetricKey = "maxOrderValue"
	MetricTotalReviews        MetricKey = "totalReviews"
	MetricTotalHelpfulVotes   MetricKey = "totalHelpfulVotes"
	MetricTotalVideos         MetricKey = "totalVideos"
	MetricTotalVideoViews     MetricKey = "totalVideoViews"
	MetricTotalProjects       MetricKey = "totalProjects"
	MetricProjectEarnings     MetricKey = "projectEarnings"
	MetricOffersRedeemed      MetricKey = "offersRedeemed"
	MetricPollsVoted          MetricKey = "pollsVoted"
	MetricBillsUploaded       MetricKey = "billsUploaded"
	MetricTotalReferrals      MetricKey = "totalReferrals"
	MetricDaysActive          MetricKey = "daysActive"
	MetricLoginStreak         MetricKey = "loginStreak"
	MetricLongestLoginStreak  MetricKey = "longestLoginStreak"
	MetricTotalActivity       MetricKey = "totalActivity"
	MetricEngagementScore     MetricKey = "engagementScore"
)

func (k MetricKey) String() string {
	return string(k)
}

// MetricSource names the table a metric aggregates over.
type MetricSource string

const (
	MetricSourceOrders           MetricSource = "orders"
	MetricSourceReviews          MetricSource = "reviews"
	MetricSourceVideos           MetricSource = "videos"
	MetricSourceProjects         MetricSource = "project_submissions"
	MetricSourceOfferRedemptions MetricSource = "offer_redemptions"
	MetricSourcePollVotes        MetricSource = "poll_votes"
	MetricSourceBillUploads      MetricSource = "bill_uploads"
	MetricSourceUsers            MetricSource = "users"
	MetricSourceUserStreaks      MetricSource = "user_streaks"
	MetricSourceDerived          MetricSource = "derived"
)

var validMetricSources = []MetricSource{
	MetricSourceOrders,
	MetricSourceReviews,
	MetricSourceVideos,
	MetricSourceProjects,
	MetricSourceOfferRedemptions,
	MetricSourcePollVotes,
	MetricSourceBillUploads,
	MetricSourceUsers,
	MetricSourceUserStreaks,
	MetricSourceDerived,
}

// IsValid reports whether the source is a known table.
func (s MetricSource) IsValid() bool {
	for _, candidate := range validMetricSources {
		if candidate == s {
			return true
		}
	}
	return false
}

// Aggregation is how a metric reduces its source rows to a number.
type Aggregation string

const (
	AggregationCount         Aggregation = "count"
	AggregationSum           Aggregation = "sum"
	AggregationDistinctCount Aggregation = "distinctCount"
	AggregationMax           Aggregation = "max"
	AggregationField         Aggregation = "field"
	AggregationComputed      Aggregation = "computed"
)

var validAggregations = []Aggregation{
	AggregationCount,
	AggregationSum,
	AggregationDistinctCount,
	AggregationMax,
	AggregationField,
	AggregationComputed,
}

// IsValid reports whether the aggregation is supported.
func (a Aggregation) IsValid() bool {
	for _, candidate := range validAggregations {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAggregation converts raw input into Aggregation.
func ParseAggregation(value string) (Aggregation, error) {
	for _, candidate := range validAggregations {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregation %q", value)
}

// MetricTransform post-processes a field value.
type MetricTransform string

const (
	MetricTransformNone      MetricTransform = ""
	MetricTransformDaysSince MetricTransform = "days_since"
)
