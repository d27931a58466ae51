// Package learning pays the one-time reward for completing learning content.
package learning

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cashstore-backend/internal/events"
	"github.com/angelmondragon/cashstore-backend/internal/rewards"
	"github.com/angelmondragon/cashstore-backend/pkg/db/models"
	"github.com/angelmondragon/cashstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cashstore-backend/pkg/errors"
	"github.com/angelmondragon/cashstore-backend/pkg/logger"
)

// DefaultFloorRatio is the share of the estimated duration a user must spend.
const DefaultFloorRatio = 0.3

// CompletionResult reports the outcome of Complete.
type CompletionResult struct {
	CoinsAwarded   int64
	AlreadyClaimed bool
}

// Rewarder credits content rewards and reports whether one was already paid.
type Rewarder interface {
	rewards.Crediter
	Status(ctx context.Context, userID uuid.UUID, key string) (bool, error)
}

// ServiceParams wires the learning service. Emitter is optional.
type ServiceParams struct {
	Logger     *logger.Logger
	Repo       Repository
	Rewards    Rewarder
	Emitter    events.Emitter
	FloorRatio float64
}

// Service completes learning content.
type Service struct {
	logg       *logger.Logger
	repo       Repository
	rewards    Rewarder
	emitter    events.Emitter
	floorRatio float64
}

// NewService builds a learning service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("learning repository required")
	}
	if params.Rewards == nil {
		return nil, fmt.Errorf("reward crediter required")
	}
	ratio := params.FloorRatio
	if ratio <= 0 || ratio > 1 {
		ratio = DefaultFloorRatio
	}
	return &Service{
		logg:       params.Logger,
		repo:       params.Repo,
		rewards:    params.Rewards,
		emitter:    params.Emitter,
		floorRatio: ratio,
	}, nil
}

// MinimumSeconds is the least engagement accepted for content: ratio of the
// estimated duration rounded up, lowered to MinEngagementSeconds when that is
// set and smaller.
func MinimumSeconds(content models.LearningContent, ratio float64) int {
	floor := int(math.Ceil(float64(content.EstimatedSeconds)*ratio - 1e-9))
	if content.MinEngagementSeconds > 0 && content.MinEngagementSeconds < floor {
		floor = content.MinEngagementSeconds
	}
	return floor
}

// CreditKey is the reward idempotency key for a content item.
func CreditKey(contentID uuid.UUID) string {
	return "learning:" + contentID.String()
}

// Complete validates engagement time and credits the content's reward once.
// Repeat calls report AlreadyClaimed whatever time is submitted.
func (s *Service) Complete(ctx context.Context, userID, contentID uuid.UUID, timeSpentSeconds int) (CompletionResult, error) {
	if userID == uuid.Nil || contentID == uuid.Nil {
		return CompletionResult{}, pkgerrors.New(pkgerrors.CodeValidation, "user id and content id are required")
	}
	if timeSpentSeconds < 0 {
		return CompletionResult{}, pkgerrors.New(pkgerrors.CodeValidation, "time spent must not be negative")
	}
	content, err := s.repo.Get(ctx, contentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return CompletionResult{}, pkgerrors.New(pkgerrors.CodeNotFound, "learning content not found")
	}
	if err != nil {
		return CompletionResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load learning content")
	}
	if !content.Active {
		return CompletionResult{}, pkgerrors.New(pkgerrors.CodeStateConflict, "learning content is not active")
	}

	claimed, err := s.rewards.Status(ctx, userID, CreditKey(contentID))
	if err != nil {
		return CompletionResult{}, err
	}
	if claimed {
		return CompletionResult{AlreadyClaimed: true}, nil
	}

	minimum := MinimumSeconds(*content, s.floorRatio)
	if timeSpentSeconds < minimum {
		return CompletionResult{}, pkgerrors.New(pkgerrors.CodeValidation, "not enough time spent on content").
			WithDetails(map[string]any{"required_seconds": minimum, "time_spent_seconds": timeSpentSeconds})
	}
	if content.CoinReward <= 0 {
		return CompletionResult{}, nil
	}

	credit, err := s.rewards.Credit(ctx, rewards.CreditInput{
		UserID:         userID,
		IdempotencyKey: CreditKey(contentID),
		Amount:         content.CoinReward,
		Reason:         enums.RewardReasonLearning,
		Description:    "Completed: " + content.Title,
		ReferenceType:  "learning_content",
		ReferenceID:    contentID.String(),
		Metadata:       map[string]any{"time_spent_seconds": timeSpentSeconds},
	})
	if err != nil {
		return CompletionResult{}, err
	}
	if credit.AlreadyClaimed {
		return CompletionResult{AlreadyClaimed: true}, nil
	}

	s.emitCompleted(ctx, userID, contentID, timeSpentSeconds)
	return CompletionResult{CoinsAwarded: credit.Amount}, nil
}

func (s *Service) emitCompleted(ctx context.Context, userID, contentID uuid.UUID, timeSpent int) {
	if s.emitter == nil {
		return
	}
	id := contentID
	_, err := s.emitter.Emit(ctx, enums.ActivityEventLearningCompleted, events.Payload{
		UserID:     userID,
		EntityID:   &id,
		EntityType: "learning_content",
		Metadata:   map[string]any{"time_spent_seconds": timeSpent},
		Source:     "learning",
	})
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "learning_completed not emitted")
	}
}
