// Package rewards credits coins to wallets exactly once per (user, idempotency key).
package rewards

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cashstore-backend/internal/wallet"
	"github.com/angelmondragon/cashstore-backend/pkg/db/models"
	"github.com/angelmondragon/cashstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cashstore-backend/pkg/errors"
	"github.com/angelmondragon/cashstore-backend/pkg/logger"
	"github.com/angelmondragon/cashstore-backend/pkg/metrics"
	"github.com/angelmondragon/cashstore-backend/pkg/types"
	"github.com/angelmondragon/cashstore-backend/pkg/validate"
)

const ledgerSavepoint = "reward_ledger"

// TxRunner opens a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CreditInput describes one reward grant.
type CreditInput struct {
	UserID         uuid.UUID          `json:"user_id" validate:"required"`
	IdempotencyKey string             `json:"idempotency_key" validate:"required,max=200"`
	Amount         int64              `json:"amount" validate:"gt=0"`
	Reason         enums.RewardReason `json:"reason" validate:"required"`
	Description    string             `json:"description" validate:"max=500"`
	ReferenceType  string             `json:"reference_type" validate:"max=64"`
	ReferenceID    string             `json:"reference_id" validate:"max=128"`
	Metadata       map[string]any     `json:"metadata"`
}

// CreditResult reports the outcome of Credit. AlreadyClaimed is the normal
// result of a replay, not an error.
type CreditResult struct {
	Credited       bool
	AlreadyClaimed bool
	Amount         int64
	Balance        int64
}

// Crediter is implemented by Service.
type Crediter interface {
	Credit(ctx context.Context, input CreditInput) (CreditResult, error)
}

// ServiceParams configure the reward service.
type ServiceParams struct {
	Logger  *logger.Logger
	Tx      TxRunner
	Claims  ClaimRepository
	Wallets wallet.Repository
	Metrics *metrics.RewardMetrics
	// LedgerBestEffort keeps the balance increment when the ledger write fails.
	LedgerBestEffort bool
	Now              func() time.Time
}

// Service is the reward crediting primitive.
type Service struct {
	logg             *logger.Logger
	tx               TxRunner
	claims           ClaimRepository
	wallets          wallet.Repository
	metrics          *metrics.RewardMetrics
	ledgerBestEffort bool
	now              func() time.Time
}

var errClaimRace = errors.New("claim already marked")

// NewService builds a reward service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Claims == nil {
		return nil, fmt.Errorf("claim repository required")
	}
	if params.Wallets == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:             params.Logger,
		tx:               params.Tx,
		claims:           params.Claims,
		wallets:          params.Wallets,
		metrics:          params.Metrics,
		ledgerBestEffort: params.LedgerBestEffort,
		now:              now,
	}, nil
}

// Credit grants input.Amount coins once per (user, idempotency key). Within a
// single transaction it creates or locks the claim row, increments the wallet,
// appends a ledger entry and finally marks the claim. Any failure before the
// claim is marked rolls everything back, so callers may retry.
func (s *Service) Credit(ctx context.Context, input CreditInput) (CreditResult, error) {
	if err := validate.Struct(input); err != nil {
		return CreditResult{}, err
	}
	if !input.Reason.IsValid() {
		return CreditResult{}, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid reward reason %q", input.Reason)
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"user_id":         input.UserID.String(),
		"idempotency_key": input.IdempotencyKey,
		"reason":          string(input.Reason),
	})

	var result CreditResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		claims := s.claims.WithTx(tx)
		wallets := s.wallets.WithTx(tx)

		if err := claims.InsertIfAbsent(ctx, input.UserID, input.IdempotencyKey, input.Reason); err != nil {
			return fmt.Errorf("insert claim: %w", err)
		}
		claim, err := claims.LockForUpdate(ctx, input.UserID, input.IdempotencyKey)
		if err != nil {
			return fmt.Errorf("lock claim: %w", err)
		}
		if claim.Claimed {
			result = CreditResult{AlreadyClaimed: true}
			return nil
		}

		if err := wallets.Ensure(ctx, input.UserID); err != nil {
			return fmt.Errorf("ensure wallet: %w", err)
		}
		balance, err := wallets.Increment(ctx, input.UserID, input.Amount)
		if err != nil {
			return fmt.Errorf("increment wallet: %w", err)
		}

		if err := s.appendLedger(ctx, tx, wallets, input, balance); err != nil {
			return err
		}

		marked, err := claims.MarkClaimed(ctx, claim.ID, input.Amount, s.now().UTC())
		if err != nil {
			return fmt.Errorf("mark claim: %w", err)
		}
		if !marked {
			return errClaimRace
		}
		result = CreditResult{Credited: true, Amount: input.Amount, Balance: balance}
		return nil
	})
	if errors.Is(err, errClaimRace) {
		result, err = CreditResult{AlreadyClaimed: true}, nil
	}
	if err != nil {
		return CreditResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit reward")
	}

	if result.AlreadyClaimed {
		s.metrics.IncAlreadyClaimed(string(input.Reason))
		s.logg.Debug(ctx, "reward already claimed")
		return result, nil
	}
	s.metrics.IncCredited(string(input.Reason), input.Amount)
	s.logg.Info(s.logg.WithField(ctx, "amount", input.Amount), "reward credited")
	return result, nil
}

func (s *Service) appendLedger(ctx context.Context, tx *gorm.DB, wallets wallet.Repository, input CreditInput, balance int64) error {
	entry := &models.WalletLedgerEntry{
		ID:             uuid.New(),
		UserID:         input.UserID,
		Type:           enums.LedgerEntryCredit,
		Reason:         input.Reason,
		AmountCoins:    input.Amount,
		BalanceAfter:   balance,
		IdempotencyKey: input.IdempotencyKey,
		ReferenceType:  input.ReferenceType,
		ReferenceID:    input.ReferenceID,
		Description:    input.Description,
		Metadata:       types.JSONMap(input.Metadata).Clone(),
	}
	if !s.ledgerBestEffort {
		if err := wallets.AppendEntry(ctx, entry); err != nil {
			return fmt.Errorf("append ledger entry: %w", err)
		}
		return nil
	}

	if err := tx.SavePoint(ledgerSavepoint).Error; err != nil {
		return fmt.Errorf("ledger savepoint: %w", err)
	}
	if err := wallets.AppendEntry(ctx, entry); err != nil {
		if rbErr := tx.RollbackTo(ledgerSavepoint).Error; rbErr != nil {
			return fmt.Errorf("rollback ledger savepoint: %w", rbErr)
		}
		s.logg.Error(s.logg.WithField(ctx, "balance_after", balance), "ledger entry missing for credited reward", err)
	}
	return nil
}

// Status reports whether the reward for key has been claimed.
func (s *Service) Status(ctx context.Context, userID uuid.UUID, key string) (bool, error) {
	claim, err := s.claims.Get(ctx, userID, key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load claim")
	}
	return claim.Claimed, nil
}
