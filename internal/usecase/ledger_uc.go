package usecase

import (
	"context"
	"fmt"

	"reconciliation-service/internal/domain"
	"reconciliation-service/internal/repository"
)

const (
	defaultEntryLimit = 100
	maxEntryLimit     = 1000
)

type LedgerUsecase struct {
	entryRepo   repository.EntryRepository
	accountRepo repository.AccountRepository
}

func NewLedgerUsecase(entryRepo repository.EntryRepository, accountRepo repository.AccountRepository) *LedgerUsecase {
	return &LedgerUsecase{entryRepo: entryRepo, accountRepo: accountRepo}
}

// ListEntries pages through ledger lines. Limit defaults to 100, capped at 1000.
func (uc *LedgerUsecase) ListEntries(ctx context.Context, filter domain.EntryFilter) ([]*domain.AccountingEntry, error) {
	if filter.Offset < 0 {
		return nil, fmt.Errorf("offset must not be negative: %w", domain.ErrInvalidInput)
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, fmt.Errorf("from must be before to: %w", domain.ErrInvalidInput)
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultEntryLimit
	case filter.Limit > maxEntryLimit:
		filter.Limit = maxEntryLimit
	}

	entries, err := uc.entryRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*domain.AccountingEntry{}
	}
	return entries, nil
}

// GetPosting returns the posting set recorded for a transaction.
func (uc *LedgerUsecase) GetPosting(ctx context.Context, transactionID string) (*domain.PostingResult, error) {
	entries, err := uc.entryRepo.ListByTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("posting for %s: %w", transactionID, domain.ErrNotFound)
	}
	return domain.NewPostingResult(transactionID, entries), nil
}

func (uc *LedgerUsecase) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	return uc.accountRepo.List(ctx)
}
