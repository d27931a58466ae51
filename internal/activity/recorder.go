// Package activity keeps an audit log of every emitted activity event.
package activity

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/cashstore-backend/internal/events"
	"github.com/angelmondragon/cashstore-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/cashstore-backend/pkg/errors"
	"github.com/angelmondragon/cashstore-backend/pkg/pagination"
	"github.com/angelmondragon/cashstore-backend/pkg/types"
)

// ConsumerName identifies the audit log subscription on the bus.
const ConsumerName = "activity-log"

// Recorder persists bus events.
type Recorder struct {
	repo Repository
}

// NewRecorder builds a recorder.
func NewRecorder(repo Repository) (*Recorder, error) {
	if repo == nil {
		return nil, fmt.Errorf("activity repository required")
	}
	return &Recorder{repo: repo}, nil
}

// HandleEvent writes the event to the activity log.
func (r *Recorder) HandleEvent(ctx context.Context, event events.ActivityEvent) error {
	return r.repo.Insert(ctx, FromEvent(event))
}

// FromEvent maps an event onto its log row.
func FromEvent(event events.ActivityEvent) *models.ActivityLog {
	entry := &models.ActivityLog{
		EventID:      event.EventID,
		UserID:       event.UserID,
		Type:         event.Type,
		Category:     event.Category,
		EntityID:     event.Data.EntityID,
		EntityType:   event.Data.EntityType,
		Amount:       event.Data.Amount,
		StoreID:      event.Data.StoreID,
		CategorySlug: event.Data.CategorySlug,
		Source:       event.Source,
		OccurredAt:   event.Timestamp.UTC(),
	}
	if len(event.Data.Metadata) > 0 {
		entry.Metadata = types.JSONMap(event.Data.Metadata).Clone()
	}
	return entry
}

// History pages through a user's activity newest first.
func (r *Recorder) History(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[models.ActivityLog], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[models.ActivityLog]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid activity cursor")
	}
	rows, err := r.repo.ListByUser(ctx, userID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return pagination.Page[models.ActivityLog]{}, err
	}
	return pagination.Build(rows, params.Limit, func(row models.ActivityLog) pagination.Cursor {
		return pagination.Cursor{At: row.OccurredAt, ID: row.EventID}
	}), nil
}
