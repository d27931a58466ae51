// Package streaks maintains consecutive-day activity streaks per user.
package streaks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cashstore-backend/internal/events"
	"github.com/angelmondragon/cashstore-backend/pkg/db/models"
	"github.com/angelmondragon/cashstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cashstore-backend/pkg/errors"
	"github.com/angelmondragon/cashstore-backend/pkg/logger"
)

// ConsumerName identifies the streak subscription on the bus.
const ConsumerName = "streaks"

const defaultMaxAttempts = 5

var eventStreaks = map[enums.ActivityEventType]enums.StreakType{
	enums.ActivityEventLogin:             enums.StreakTypeLogin,
	enums.ActivityEventOrderPlaced:       enums.StreakTypeOrder,
	enums.ActivityEventReviewSubmitted:   enums.StreakTypeReview,
	enums.ActivityEventPollVoted:         enums.StreakTypeEngagement,
	enums.ActivityEventLearningCompleted: enums.StreakTypeLearning,
}

// StreakFor returns the streak type an event advances, if any.
func StreakFor(eventType enums.ActivityEventType) (enums.StreakType, bool) {
	t, ok := eventStreaks[eventType]
	return t, ok
}

// ServiceParams wires the streak service.
type ServiceParams struct {
	Logger      *logger.Logger
	Repo        Repository
	MaxAttempts int
}

// Service updates streak counters.
type Service struct {
	logg        *logger.Logger
	repo        Repository
	maxAttempts int
}

// NewService builds a streak service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("streak repository required")
	}
	attempts := params.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	return &Service{logg: params.Logger, repo: params.Repo, maxAttempts: attempts}, nil
}

// HandleEvent records activity for the streak the event type maps to.
func (s *Service) HandleEvent(ctx context.Context, event events.ActivityEvent) error {
	streakType, ok := eventStreaks[event.Type]
	if !ok {
		return nil
	}
	_, err := s.Record(ctx, event.UserID, streakType, event.Timestamp)
	return err
}

// Record applies one activity on the UTC calendar day of at. Same-day activity
// is a no-op, the next day extends the streak, and any gap resets it to 1.
func (s *Service) Record(ctx context.Context, userID uuid.UUID, streakType enums.StreakType, at time.Time) (models.UserStreak, error) {
	if userID == uuid.Nil || !streakType.IsValid() {
		return models.UserStreak{}, pkgerrors.New(pkgerrors.CodeValidation, "user id and valid streak type are required")
	}
	today := at.UTC().Format(models.StreakDayLayout)

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		current, err := s.repo.Get(ctx, userID, streakType)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			first := &models.UserStreak{
				UserID:           userID,
				Type:             streakType,
				CurrentStreak:    1,
				LongestStreak:    1,
				LastActivityDate: today,
				TotalDays:        1,
			}
			inserted, err := s.repo.InsertFirst(ctx, first)
			if err != nil {
				return models.UserStreak{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert streak")
			}
			if inserted {
				return *first, nil
			}
			continue
		}
		if err != nil {
			return models.UserStreak{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load streak")
		}

		next, changed, err := nextStreak(*current, today)
		if err != nil {
			return models.UserStreak{}, err
		}
		if !changed {
			return *current, nil
		}
		ok, err := s.repo.Advance(ctx, current.ID, current.LastActivityDate, next)
		if err != nil {
			return models.UserStreak{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance streak")
		}
		if ok {
			current.LastActivityDate = next.Day
			current.CurrentStreak = next.Current
			current.LongestStreak = next.Longest
			current.TotalDays++
			return *current, nil
		}
		s.logg.Debug(s.logg.WithField(ctx, "attempt", attempt+1), "streak update lost race, retrying")
	}
	return models.UserStreak{}, pkgerrors.Newf(pkgerrors.CodeConflict, "streak %s for user %s kept changing", streakType, userID)
}

func nextStreak(current models.UserStreak, today string) (Next, bool, error) {
	last, err := time.Parse(models.StreakDayLayout, current.LastActivityDate)
	if err != nil {
		return Next{}, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "parse last activity date")
	}
	day, err := time.Parse(models.StreakDayLayout, today)
	if err != nil {
		return Next{}, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "parse activity date")
	}
	gap := int(day.Sub(last).Hours() / 24)
	if gap <= 0 {
		return Next{}, false, nil
	}
	next := Next{Day: today, Current: 1, Longest: current.LongestStreak}
	if gap == 1 {
		next.Current = current.CurrentStreak + 1
	}
	if next.Current > next.Longest {
		next.Longest = next.Current
	}
	return next, true, nil
}

// List returns every streak the user has.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]models.UserStreak, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list streaks")
	}
	return rows, nil
}
