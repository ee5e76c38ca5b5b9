package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PGStore is the Postgres UnitOfWork.
type PGStore struct {
	db          *pgxpool.Pool
	lockTimeout time.Duration

	txns     TransactionRepository
	accounts AccountRepository
	entries  EntryRepository
	balances BalanceRepository
}

type StoreOption func(*PGStore)

// WithLockTimeout bounds how long a unit waits on a row lock (SQLSTATE 55P03 on expiry).
func WithLockTimeout(d time.Duration) StoreOption {
	return func(s *PGStore) { s.lockTimeout = d }
}

func NewStore(db *pgxpool.Pool, opts ...StoreOption) *PGStore {
	s := &PGStore{db: db, lockTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	s.bind(db)
	return s
}

func (s *PGStore) bind(q DBTX) {
	s.txns = NewTransactionRepo(q)
	s.accounts = NewAccountRepo(q)
	s.entries = NewEntryRepo(q)
	s.balances = NewBalanceRepo(q)
}

func (s *PGStore) Transactions() TransactionRepository { return s.txns }
func (s *PGStore) Accounts() AccountRepository         { return s.accounts }
func (s *PGStore) Entries() EntryRepository             { return s.entries }
func (s *PGStore) Balances() BalanceRepository          { return s.balances }

// WithinTx begins a transaction, hands fn a Store bound to it and commits if
// fn succeeds. Any error rolls everything back.
func (s *PGStore) WithinTx(ctx context.Context, fn func(ctx context.Context, st Store) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return wrap("begin transaction", err)
	}
	// no-op after a successful commit
	defer tx.Rollback(context.WithoutCancel(ctx))

	if s.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return wrap("set lock timeout", err)
		}
	}

	scoped := &PGStore{db: s.db, lockTimeout: s.lockTimeout}
	scoped.bind(tx)

	if err := fn(ctx, scoped); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return wrap("commit transaction", err)
	}
	return nil
}

func (s *PGStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
