package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"reconciliation-service/internal/domain"
	"reconciliation-service/internal/pkg/money"
	"reconciliation-service/internal/repository"
	"reconciliation-service/pkg/utils"
)

// PostingEngine builds, verifies and writes the six-line posting set of a
// completed transaction. It never touches reconciliation status.
type PostingEngine struct {
	ids    utils.IDGenerator
	logger *zap.Logger
	now    func() time.Time
}

func NewPostingEngine(ids utils.IDGenerator, logger *zap.Logger) *PostingEngine {
	return &PostingEngine{ids: ids, logger: logger, now: time.Now}
}

// Build returns the posting lines for txn without writing them.
//
//	Revenue           credit  total + tax + tip
//	Tax Payable       credit  tax
//	Merchant Payable  debit   net
//	Processor Fees    debit   processor fee
//	Platform Fees     debit   platform fee
//	Cash/Bank         credit  total + tax + tip
func (e *PostingEngine) Build(txn *domain.Transaction, accounts domain.AccountSet) []*domain.AccountingEntry {
	gross := txn.Gross()
	at := e.now().UTC()

	lines := []struct {
		account string
		debit   money.Money
		credit  money.Money
	}{
		{domain.AccountRevenue, money.Zero, gross},
		{domain.AccountTaxPayable, money.Zero, txn.TaxAmount},
		{domain.AccountMerchantPayable, txn.NetAmount, money.Zero},
		{domain.AccountProcessorFees, txn.ProcessorFee, money.Zero},
		{domain.AccountPlatformFees, txn.PlatformFee, money.Zero},
		{domain.AccountCashBank, money.Zero, gross},
	}

	entries := make([]*domain.AccountingEntry, 0, len(lines))
	for _, l := range lines {
		entries = append(entries, &domain.AccountingEntry{
			ID:            e.ids.NewEntryID(),
			TransactionID: txn.ID,
			MerchantID:    txn.MerchantID,
			LocationID:    txn.LocationID,
			AccountID:     accounts[l.account],
			AccountName:   l.account,
			Debit:         l.debit,
			Credit:        l.credit,
			EntryDate:     at,
			CreatedAt:     at,
		})
	}
	return entries
}

// Post writes the posting set through s, which must be bound to the caller's unit.
// A transaction that is already complete, or already carries a full set, is a no-op.
func (e *PostingEngine) Post(ctx context.Context, s repository.Store, txn *domain.Transaction, accounts domain.AccountSet) (*domain.PostingResult, error) {
	if txn.IsReconciled() {
		return e.existing(ctx, s, txn.ID)
	}
	if !txn.IsCompleted() {
		return nil, fmt.Errorf("transaction %s has status %s: %w", txn.ID, txn.Status, domain.ErrTransactionNotCompleted)
	}
	if missing := accounts.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", domain.ErrAccountMissing, missing)
	}
	if err := txn.CheckInvariant(); err != nil {
		return nil, err
	}

	count, err := s.Entries().CountByTransaction(ctx, txn.ID)
	if err != nil {
		return nil, err
	}
	switch {
	case count == domain.PostingLineCount:
		e.logger.Info("posting set already present, skipping write", zap.String("transaction_id", txn.ID))
		return e.existing(ctx, s, txn.ID)
	case count > 0:
		return nil, fmt.Errorf("%w: transaction %s has a partial posting set (%d lines)",
			domain.ErrLedgerImbalance, txn.ID, count)
	}

	result := domain.NewPostingResult(txn.ID, e.Build(txn, accounts))
	if err := result.Verify(txn); err != nil {
		return nil, err
	}

	if err := s.Entries().CreateBatch(ctx, result.Entries); err != nil {
		return nil, fmt.Errorf("failed to write posting set: %w", err)
	}

	e.logger.Debug("posting set written",
		zap.String("transaction_id", txn.ID),
		zap.String("total_debit", result.TotalDebit.String()),
		zap.String("total_credit", result.TotalCredit.String()),
	)
	return result, nil
}

func (e *PostingEngine) existing(ctx context.Context, s repository.Store, txnID string) (*domain.PostingResult, error) {
	entries, err := s.Entries().ListByTransaction(ctx, txnID)
	if err != nil {
		return nil, err
	}
	res := domain.NewPostingResult(txnID, entries)
	res.Noop = true
	return res, nil
}
