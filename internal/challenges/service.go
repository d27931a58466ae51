// Package challenges advances time-boxed user challenges from activity events.
package challenges

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/cashstore-backend/internal/events"
	"github.com/angelmondragon/cashstore-backend/internal/rewards"
	"github.com/angelmondragon/cashstore-backend/pkg/db/models"
	"github.com/angelmondragon/cashstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cashstore-backend/pkg/errors"
	"github.com/angelmondragon/cashstore-backend/pkg/logger"
)

// ConsumerName identifies the challenge subscription on the bus.
const ConsumerName = "challenges"

// ClaimResult reports the outcome of ClaimRewards.
type ClaimResult struct {
	CoinsAwarded   int64
	AlreadyClaimed bool
}

// ServiceParams wires the challenge service.
type ServiceParams struct {
	Logger  *logger.Logger
	Repo    Repository
	Rewards rewards.Crediter
	Now     func() time.Time
}

// Service applies events to challenge progress and pays out completed challenges.
type Service struct {
	logg    *logger.Logger
	repo    Repository
	rewards rewards.Crediter
	now     func() time.Time
}

// NewService builds a challenge service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("challenge repository required")
	}
	if params.Rewards == nil {
		return nil, fmt.Errorf("reward crediter required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{logg: params.Logger, repo: params.Repo, rewards: params.Rewards, now: now}, nil
}

// HandleEvent advances every active challenge matching the event. Event types
// with no challenge action are ignored.
func (s *Service) HandleEvent(ctx context.Context, event events.ActivityEvent) error {
	rules := eventActions[event.Type]
	if len(rules) == 0 {
		return nil
	}
	now := s.now().UTC()

	var errs error
	for _, rule := range rules {
		amount := rule.amount(event)
		if amount <= 0 {
			continue
		}
		list, err := s.repo.ListActiveForAction(ctx, rule.action, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list challenges")
		}
		for _, challenge := range list {
			if !Matches(challenge, event) {
				continue
			}
			if err := s.advance(ctx, event.UserID, challenge, amount, now); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("challenge %s: %w", challenge.ID, err))
			}
		}
	}
	return errs
}

func (s *Service) advance(ctx context.Context, userID uuid.UUID, challenge models.Challenge, amount float64, now time.Time) error {
	if err := s.repo.Join(ctx, userID, challenge, now); err != nil {
		return fmt.Errorf("join: %w", err)
	}
	advanced, err := s.repo.Increment(ctx, userID, challenge.ID, amount)
	if err != nil {
		return fmt.Errorf("increment: %w", err)
	}
	if !advanced {
		return nil
	}
	completed, err := s.repo.MarkCompleted(ctx, userID, challenge.ID, now)
	if err != nil {
		return fmt.Errorf("complete: %w", err)
	}
	if completed {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"challenge_id": challenge.ID.String(),
			"action":       string(challenge.Action),
		}), "challenge completed")
	}
	return nil
}

// Matches applies the challenge's store, category and minimum amount filters.
func Matches(challenge models.Challenge, event events.ActivityEvent) bool {
	if len(challenge.StoreIDs) > 0 {
		if event.Data.StoreID == nil || !challenge.StoreIDs.Contains(*event.Data.StoreID) {
			return false
		}
	}
	if len(challenge.CategorySlugs) > 0 && !challenge.CategorySlugs.Contains(event.Data.CategorySlug) {
		return false
	}
	if challenge.MinAmount != nil && event.AmountOrZero().LessThan(*challenge.MinAmount) {
		return false
	}
	return true
}

// ClaimRewards credits the coin reward of a completed challenge exactly once.
func (s *Service) ClaimRewards(ctx context.Context, userID, challengeID uuid.UUID) (ClaimResult, error) {
	if userID == uuid.Nil || challengeID == uuid.Nil {
		return ClaimResult{}, pkgerrors.New(pkgerrors.CodeValidation, "user id and challenge id are required")
	}
	progress, err := s.repo.GetProgress(ctx, userID, challengeID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ClaimResult{}, pkgerrors.New(pkgerrors.CodeNotFound, "challenge progress not found")
	}
	if err != nil {
		return ClaimResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load challenge progress")
	}
	if !progress.Completed {
		return ClaimResult{}, pkgerrors.New(pkgerrors.CodeStateConflict, "challenge not completed")
	}
	challenge, err := s.repo.GetChallenge(ctx, challengeID)
	if err != nil {
		return ClaimResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load challenge")
	}

	result := ClaimResult{}
	if challenge.CoinReward > 0 {
		credit, err := s.rewards.Credit(ctx, rewards.CreditInput{
			UserID:         userID,
			IdempotencyKey: CreditKey(challengeID),
			Amount:         challenge.CoinReward,
			Reason:         enums.RewardReasonChallenge,
			Description:    "Challenge completed: " + challenge.Title,
			ReferenceType:  "challenge",
			ReferenceID:    challengeID.String(),
		})
		if err != nil {
			return ClaimResult{}, err
		}
		result = ClaimResult{CoinsAwarded: credit.Amount, AlreadyClaimed: credit.AlreadyClaimed}
	}

	if _, err := s.repo.MarkRewardsClaimed(ctx, userID, challengeID); err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark challenge claimed")
	}
	return result, nil
}

// CreditKey is the reward idempotency key for a challenge.
func CreditKey(challengeID uuid.UUID) string {
	return "challenge:" + challengeID.String()
}

// Progress lists the user's challenge enrolments, newest first.
func (s *Service) Progress(ctx context.Context, userID uuid.UUID) ([]models.UserChallengeProgress, error) {
	rows, err := s.repo.ListProgress(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list challenge progress")
	}
	return rows, nil
}
