package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cashstore-backend/pkg/enums"
)

// ActivityEvent is the envelope every producer emits. Handlers receive their own copy.
type ActivityEvent struct {
	EventID   uuid.UUID               `json:"eventId"`
	UserID    uuid.UUID               `json:"userId"`
	Type      enums.ActivityEventType `json:"type"`
	Category  enums.ActivityCategory  `json:"category"`
	Timestamp time.Time               `json:"timestamp"`
	Data      EventData               `json:"data"`
	Source    string                  `json:"source,omitempty"`
}

// EventData carries the optional details of an activity.
type EventData struct {
	EntityID     *uuid.UUID       `json:"entityId,omitempty"`
	EntityType   string           `json:"entityType,omitempty"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	StoreID      *uuid.UUID       `json:"storeId,omitempty"`
	CategorySlug string           `json:"categorySlug,omitempty"`
	Metadata     map[string]any   `json:"metadata,omitempty"`
}

// Payload is what producers hand to Emit.
type Payload struct {
	UserID       uuid.UUID        `json:"userId" validate:"required"`
	EntityID     *uuid.UUID       `json:"entityId,omitempty"`
	EntityType   string           `json:"entityType,omitempty" validate:"max=64"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	StoreID      *uuid.UUID       `json:"storeId,omitempty"`
	CategorySlug string           `json:"categorySlug,omitempty" validate:"max=128"`
	Metadata     map[string]any   `json:"metadata,omitempty"`
	Source       string           `json:"source,omitempty" validate:"max=64"`
}

// AmountOrZero returns the event amount, or zero when none was supplied.
func (e ActivityEvent) AmountOrZero() decimal.Decimal {
	if e.Data.Amount == nil {
		return decimal.Zero
	}
	return *e.Data.Amount
}

// Clone returns a copy that shares no mutable state with e.
func (e ActivityEvent) Clone() ActivityEvent {
	out := e
	out.Data.EntityID = cloneUUID(e.Data.EntityID)
	out.Data.StoreID = cloneUUID(e.Data.StoreID)
	if e.Data.Amount != nil {
		amount := *e.Data.Amount
		out.Data.Amount = &amount
	}
	if e.Data.Metadata != nil {
		out.Data.Metadata = make(map[string]any, len(e.Data.Metadata))
		for k, v := range e.Data.Metadata {
			out.Data.Metadata[k] = v
		}
	}
	return out
}

func cloneUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	copied := *id
	return &copied
}

func newEvent(eventType enums.ActivityEventType, payload Payload, now time.Time) ActivityEvent {
	event := ActivityEvent{
		EventID:   uuid.New(),
		UserID:    payload.UserID,
		Type:      eventType,
		Category:  eventType.Category(),
		Timestamp: now.UTC(),
		Data: EventData{
			EntityID:     payload.EntityID,
			EntityType:   payload.EntityType,
			Amount:       payload.Amount,
			StoreID:      payload.StoreID,
			CategorySlug: payload.CategorySlug,
			Metadata:     payload.Metadata,
		},
		Source: payload.Source,
	}
	// Detach from the producer's pointers and map.
	return event.Clone()
}
