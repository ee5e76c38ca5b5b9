package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"reconciliation-service/internal/domain"
	"reconciliation-service/internal/pkg/money"
	"reconciliation-service/internal/repository"
	"reconciliation-service/pkg/utils"
)

// BalanceAggregator adds one transaction's effect to the merchant,
// processor-fee and platform-fee balances. Balances are locked in that order.
type BalanceAggregator struct {
	ids    utils.IDGenerator
	logger *zap.Logger
	now    func() time.Time
}

func NewBalanceAggregator(ids utils.IDGenerator, logger *zap.Logger) *BalanceAggregator {
	return &BalanceAggregator{ids: ids, logger: logger, now: time.Now}
}

// Apply must run in the same unit as the posting. A balance whose
// last_transaction_id already equals txn.ID is left alone.
func (a *BalanceAggregator) Apply(ctx context.Context, s repository.Store, txn *domain.Transaction, posting *domain.PostingResult) error {
	if posting != nil && !posting.Noop {
		if line := posting.EntryFor(domain.AccountMerchantPayable); line == nil || !line.Debit.Equal(txn.NetAmount) {
			return fmt.Errorf("%w: merchant payable line does not match net amount of %s", domain.ErrLedgerImbalance, txn.ID)
		}
	}

	now := a.now().UTC()
	repo := s.Balances()

	if err := a.applyMerchant(ctx, repo, txn, now); err != nil {
		return err
	}
	if err := a.applyFee(ctx, repo, domain.FeeKindProcessor, txn.ID, txn.ProcessorFee, now); err != nil {
		return err
	}
	if err := a.applyFee(ctx, repo, domain.FeeKindPlatform, txn.ID, txn.PlatformFee, now); err != nil {
		return err
	}
	return nil
}

func (a *BalanceAggregator) applyMerchant(ctx context.Context, repo repository.BalanceRepository, txn *domain.Transaction, now time.Time) error {
	b, err := repo.LockMerchantBalance(ctx, txn.MerchantID, txn.LocationID)
	if errors.Is(err, domain.ErrNotFound) {
		err = repo.CreateMerchantBalance(ctx, &domain.MerchantBalance{
			ID:             a.ids.NewEntityID(),
			MerchantID:     txn.MerchantID,
			LocationID:     txn.LocationID,
			CurrentBalance: money.Zero,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		if err != nil {
			return err
		}
		b, err = repo.LockMerchantBalance(ctx, txn.MerchantID, txn.LocationID)
	}
	if err != nil {
		return fmt.Errorf("failed to lock merchant balance: %w", err)
	}

	if b.AlreadyApplied(txn.ID) {
		a.logger.Info("merchant balance already reflects transaction",
			zap.String("transaction_id", txn.ID),
			zap.String("merchant_id", txn.MerchantID),
			zap.String("location_id", txn.LocationID),
		)
		return nil
	}

	b.Apply(txn.ID, txn.NetAmount, now)
	if err := repo.SaveMerchantBalance(ctx, b); err != nil {
		return fmt.Errorf("failed to update merchant balance: %w", err)
	}
	return nil
}

func (a *BalanceAggregator) applyFee(ctx context.Context, repo repository.BalanceRepository, kind domain.FeeKind, txnID string, amount money.Money, now time.Time) error {
	b, err := repo.LockFeeBalance(ctx, kind)
	if errors.Is(err, domain.ErrNotFound) {
		if err = repo.CreateFeeBalance(ctx, kind, now); err != nil {
			return err
		}
		b, err = repo.LockFeeBalance(ctx, kind)
	}
	if err != nil {
		return fmt.Errorf("failed to lock %s fee balance: %w", kind, err)
	}

	if b.AlreadyApplied(txnID) {
		a.logger.Info("fee balance already reflects transaction",
			zap.String("transaction_id", txnID),
			zap.String("kind", string(kind)),
		)
		return nil
	}

	b.Apply(txnID, amount, now)
	if err := repo.SaveFeeBalance(ctx, b); err != nil {
		return fmt.Errorf("failed to update %s fee balance: %w", kind, err)
	}
	return nil
}
