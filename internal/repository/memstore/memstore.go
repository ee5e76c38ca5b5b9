// Package memstore is an in-memory repository.UnitOfWork for tests and local
// runs. Units are serialized by a single mutex and work on a copy of the
// state that replaces the live state only when the unit succeeds.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"reconciliation-service/internal/domain"
	"reconciliation-service/internal/repository"
)

// Op identifies a storage operation for fault injection.
type Op string

const (
	OpGetForUpdate        Op = "transactions.get_for_update"
	OpMarkComplete        Op = "transactions.mark_complete"
	OpMarkFailed          Op = "transactions.mark_failed"
	OpListReconcilable    Op = "transactions.list_reconcilable"
	OpCreateEntries       Op = "entries.create_batch"
	OpLockMerchantBalance Op = "balances.lock_merchant"
	OpSaveMerchantBalance Op = "balances.save_merchant"
	OpLockFeeBalance      Op = "balances.lock_fee"
	OpSaveFeeBalance      Op = "balances.save_fee"
	OpGetAccount          Op = "accounts.get_by_name"
)

// FaultFunc may return an error to make op fail. key is the transaction id
// for transaction and entry operations and for balance saves, the
// balance key for balance locks, and the account name for account reads.
type FaultFunc func(op Op, key string) error

type state struct {
	txns             map[string]*domain.Transaction
	accounts         map[string]*domain.Account // by name
	entries          []*domain.AccountingEntry
	merchantBalances map[string]*domain.MerchantBalance
	feeBalances      map[domain.FeeKind]*domain.FeeBalance
}

func newState() *state {
	return &state{
		txns:             make(map[string]*domain.Transaction),
		accounts:         make(map[string]*domain.Account),
		merchantBalances: make(map[string]*domain.MerchantBalance),
		feeBalances:      make(map[domain.FeeKind]*domain.FeeBalance),
	}
}

// clone copies every record. Records hold only immutable values behind
// pointers, so a struct copy per record is enough.
func (s *state) clone() *state {
	c := newState()
	for k, v := range s.txns {
		cp := *v
		c.txns[k] = &cp
	}
	for k, v := range s.accounts {
		cp := *v
		c.accounts[k] = &cp
	}
	c.entries = make([]*domain.AccountingEntry, len(s.entries))
	for i, v := range s.entries {
		cp := *v
		c.entries[i] = &cp
	}
	for k, v := range s.merchantBalances {
		cp := *v
		c.merchantBalances[k] = &cp
	}
	for k, v := range s.feeBalances {
		cp := *v
		c.feeBalances[k] = &cp
	}
	return c
}

type Store struct {
	unitMu sync.Mutex   // one writer at a time
	mu     sync.RWMutex // guards st
	st     *state

	faultMu sync.RWMutex
	fault   FaultFunc

	root *view
}

var _ repository.UnitOfWork = (*Store)(nil)

func New() *Store {
	s := &Store{st: newState()}
	s.root = &view{store: s}
	return s
}

// SetFault installs (or clears, with nil) the fault hook.
func (s *Store) SetFault(f FaultFunc) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.fault = f
}

// UpdateTransaction edits a stored transaction in place, standing in for an
// upstream data repair.
func (s *Store) UpdateTransaction(id string, fn func(t *domain.Transaction)) error {
	return s.root.write(func(st *state) error {
		t, ok := st.txns[id]
		if !ok {
			return fmt.Errorf("transaction %s: %w", id, domain.ErrNotFound)
		}
		fn(t)
		return nil
	})
}

func (s *Store) inject(op Op, key string) error {
	s.faultMu.RLock()
	f := s.fault
	s.faultMu.RUnlock()
	if f == nil {
		return nil
	}
	return f(op, key)
}

func (s *Store) Transactions() repository.TransactionRepository { return s.root.Transactions() }
func (s *Store) Accounts() repository.AccountRepository         { return s.root.Accounts() }
func (s *Store) Entries() repository.EntryRepository             { return s.root.Entries() }
func (s *Store) Balances() repository.BalanceRepository          { return s.root.Balances() }

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, st repository.Store) error) error {
	s.unitMu.Lock()
	defer s.unitMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	work := s.st.clone()
	s.mu.RUnlock()

	if err := fn(ctx, &view{store: s, st: work}); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = work
	s.mu.Unlock()
	return nil
}

// view is a Store bound either to a unit's working copy (st != nil) or to
// the live state.
type view struct {
	store *Store
	st    *state
}

func (v *view) read(fn func(st *state) error) error {
	if v.st != nil {
		return fn(v.st)
	}
	v.store.mu.RLock()
	defer v.store.mu.RUnlock()
	return fn(v.store.st)
}

// write outside a unit behaves as a single-statement unit.
func (v *view) write(fn func(st *state) error) error {
	if v.st != nil {
		return fn(v.st)
	}
	v.store.unitMu.Lock()
	defer v.store.unitMu.Unlock()
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.st)
}

func (v *view) Transactions() repository.TransactionRepository { return &txnRepo{v} }
func (v *view) Accounts() repository.AccountRepository         { return &accountRepo{v} }
func (v *view) Entries() repository.EntryRepository             { return &entryRepo{v} }
func (v *view) Balances() repository.BalanceRepository          { return &balanceRepo{v} }
