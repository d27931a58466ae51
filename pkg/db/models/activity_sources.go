package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// The models below are owned by other services. Only the columns read by
// metric aggregation are mapped here.

// OrderStatusDelivered is the order status counted by order metrics.
const OrderStatusDelivered = "delivered"

// Order is a customer order.
type Order struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	UserID      uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
	StoreID     uuid.UUID       `gorm:"column:store_id;type:uuid;not null"`
	Status      string          `gorm:"column:status;type:text;not null"`
	TotalPrice  decimal.Decimal `gorm:"column:total_price;type:numeric(12,2);not null"`
	DeliveredAt *time.Time      `gorm:"column:delivered_at"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// Review is a store or product review.
type Review struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID       uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	StoreID      uuid.UUID `gorm:"column:store_id;type:uuid;not null"`
	Rating       int       `gorm:"column:rating;not null"`
	HelpfulVotes int       `gorm:"column:helpful_votes;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

// Video is user-generated video content.
type Video struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CreatorID uuid.UUID `gorm:"column:creator_id;type:uuid;not null;index"`
	Views     int64     `gorm:"column:views;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// ProjectSubmission is a user's entry to a paid content project.
type ProjectSubmission struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ProjectID  uuid.UUID       `gorm:"column:project_id;type:uuid;not null"`
	UserID     uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
	Status     string          `gorm:"column:status;type:text;not null"`
	PaidAmount decimal.Decimal `gorm:"column:paid_amount;type:numeric(12,2);not null;default:0"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// OfferRedemption records a redeemed offer.
type OfferRedemption struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OfferID    uuid.UUID `gorm:"column:offer_id;type:uuid;not null"`
	UserID     uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	RedeemedAt time.Time `gorm:"column:redeemed_at;not null"`
}

// PollVote records a vote on a poll.
type PollVote struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	PollID    uuid.UUID `gorm:"column:poll_id;type:uuid;not null"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// BillUpload records a receipt uploaded for cashback.
type BillUpload struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
	StoreID   *uuid.UUID      `gorm:"column:store_id;type:uuid"`
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null;default:0"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
