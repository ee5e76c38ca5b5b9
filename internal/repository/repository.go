package repository

import (
	"context"
	"time"

	"reconciliation-service/internal/domain"
)

type TransactionRepository interface {
	Create(ctx context.Context, txn *domain.Transaction) error
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)

	// GetForUpdate locks the row until the surrounding unit ends.
	GetForUpdate(ctx context.Context, id string) (*domain.Transaction, error)

	// ListReconcilable returns ids of completed, retryable transactions whose
	// reconciliation is pending or failed, ordered by id, strictly after afterID.
	ListReconcilable(ctx context.Context, afterID string, limit int) ([]string, error)

	MarkComplete(ctx context.Context, id string, at time.Time) error
	// MarkFailed never overwrites a complete row.
	MarkFailed(ctx context.Context, id string, reason string, retryable bool, at time.Time) error
	// Requeue moves a failed row back to pending.
	Requeue(ctx context.Context, id string, at time.Time) error
}

type AccountRepository interface {
	GetByName(ctx context.Context, name string) (*domain.Account, error)
	List(ctx context.Context) ([]*domain.Account, error)
	// CreateIfNotExists reports whether a new row was written.
	CreateIfNotExists(ctx context.Context, account *domain.Account) (bool, error)
}

type EntryRepository interface {
	CreateBatch(ctx context.Context, entries []*domain.AccountingEntry) error
	CountByTransaction(ctx context.Context, transactionID string) (int, error)
	ListByTransaction(ctx context.Context, transactionID string) ([]*domain.AccountingEntry, error)
	List(ctx context.Context, filter domain.EntryFilter) ([]*domain.AccountingEntry, error)
}

type BalanceRepository interface {
	// LockMerchantBalance returns domain.ErrNotFound when no row exists yet.
	LockMerchantBalance(ctx context.Context, merchantID, locationID string) (*domain.MerchantBalance, error)
	// CreateMerchantBalance is a no-op when the (merchant, location) row exists.
	CreateMerchantBalance(ctx context.Context, balance *domain.MerchantBalance) error
	SaveMerchantBalance(ctx context.Context, balance *domain.MerchantBalance) error
	GetMerchantBalance(ctx context.Context, merchantID, locationID string) (*domain.MerchantBalance, error)

	LockFeeBalance(ctx context.Context, kind domain.FeeKind) (*domain.FeeBalance, error)
	CreateFeeBalance(ctx context.Context, kind domain.FeeKind, at time.Time) error
	SaveFeeBalance(ctx context.Context, balance *domain.FeeBalance) error
	ListFeeBalances(ctx context.Context) ([]*domain.FeeBalance, error)
}

// Store groups the repositories that share one connection or transaction.
type Store interface {
	Transactions() TransactionRepository
	Accounts() AccountRepository
	Entries() EntryRepository
	Balances() BalanceRepository
}

// UnitOfWork runs fn atomically. Everything fn does through the given Store
// commits together or not at all.
type UnitOfWork interface {
	Store
	WithinTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}
