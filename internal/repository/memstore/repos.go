package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"reconciliation-service/internal/domain"
)

// ========================================
// TRANSACTIONS
// ========================================

type txnRepo struct{ v *view }

func (r *txnRepo) Create(ctx context.Context, t *domain.Transaction) error {
	if t == nil {
		return errors.New("transaction cannot be nil")
	}
	return r.v.write(func(st *state) error {
		if _, ok := st.txns[t.ID]; ok {
			return fmt.Errorf("transaction %s already exists", t.ID)
		}
		cp := *t
		if cp.UpdatedAt.IsZero() {
			cp.UpdatedAt = cp.CreatedAt
		}
		st.txns[t.ID] = &cp
		return nil
	})
}

func (r *txnRepo) get(id string) (*domain.Transaction, error) {
	var out *domain.Transaction
	err := r.v.read(func(st *state) error {
		t, ok := st.txns[id]
		if !ok {
			return fmt.Errorf("transaction %s: %w", id, domain.ErrNotFound)
		}
		cp := *t
		out = &cp
		return nil
	})
	return out, err
}

func (r *txnRepo) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	return r.get(id)
}

// GetForUpdate needs no row lock: a unit already excludes every other writer.
func (r *txnRepo) GetForUpdate(ctx context.Context, id string) (*domain.Transaction, error) {
	if err := r.v.store.inject(OpGetForUpdate, id); err != nil {
		return nil, err
	}
	return r.get(id)
}

func (r *txnRepo) ListReconcilable(ctx context.Context, afterID string, limit int) ([]string, error) {
	if err := r.v.store.inject(OpListReconcilable, afterID); err != nil {
		return nil, err
	}
	var ids []string
	err := r.v.read(func(st *state) error {
		for id, t := range st.txns {
			if t.Status != domain.PaymentCompleted || !t.ReconciliationRetryable || id <= afterID {
				continue
			}
			if t.ReconciliationStatus == domain.ReconciliationPending || t.ReconciliationStatus == domain.ReconciliationFailed {
				ids = append(ids, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (r *txnRepo) MarkComplete(ctx context.Context, id string, at time.Time) error {
	if err := r.v.store.inject(OpMarkComplete, id); err != nil {
		return err
	}
	return r.v.write(func(st *state) error {
		t, ok := st.txns[id]
		if !ok {
			return fmt.Errorf("transaction %s: %w", id, domain.ErrNotFound)
		}
		if t.ReconciliationStatus == domain.ReconciliationComplete {
			return fmt.Errorf("mark complete %s: %w", id, domain.ErrInvalidState)
		}
		t.ReconciliationStatus = domain.ReconciliationComplete
		t.ReconciliationError = nil
		t.ReconciliationRetryable = true
		t.ReconciliationAttempts++
		t.ReconciledAt = &at
		t.UpdatedAt = at
		return nil
	})
}

func (r *txnRepo) MarkFailed(ctx context.Context, id string, reason string, retryable bool, at time.Time) error {
	if err := r.v.store.inject(OpMarkFailed, id); err != nil {
		return err
	}
	return r.v.write(func(st *state) error {
		t, ok := st.txns[id]
		if !ok {
			return fmt.Errorf("transaction %s: %w", id, domain.ErrNotFound)
		}
		if t.ReconciliationStatus == domain.ReconciliationComplete {
			return fmt.Errorf("mark failed %s: %w", id, domain.ErrInvalidState)
		}
		t.ReconciliationStatus = domain.ReconciliationFailed
		t.ReconciliationError = &reason
		t.ReconciliationRetryable = retryable
		t.ReconciliationAttempts++
		t.UpdatedAt = at
		return nil
	})
}

func (r *txnRepo) Requeue(ctx context.Context, id string, at time.Time) error {
	return r.v.write(func(st *state) error {
		t, ok := st.txns[id]
		if !ok {
			return fmt.Errorf("transaction %s: %w", id, domain.ErrNotFound)
		}
		if t.ReconciliationStatus != domain.ReconciliationFailed {
			return fmt.Errorf("requeue %s: %w", id, domain.ErrInvalidState)
		}
		t.ReconciliationStatus = domain.ReconciliationPending
		t.ReconciliationError = nil
		t.ReconciliationRetryable = true
		t.UpdatedAt = at
		return nil
	})
}

// ========================================
// ACCOUNTS
// ========================================

type accountRepo struct{ v *view }

func (r *accountRepo) GetByName(ctx context.Context, name string) (*domain.Account, error) {
	if err := r.v.store.inject(OpGetAccount, name); err != nil {
		return nil, err
	}
	var out *domain.Account
	err := r.v.read(func(st *state) error {
		a, ok := st.accounts[name]
		if !ok {
			return fmt.Errorf("account %q: %w", name, domain.ErrNotFound)
		}
		cp := *a
		out = &cp
		return nil
	})
	return out, err
}

func (r *accountRepo) List(ctx context.Context) ([]*domain.Account, error) {
	var out []*domain.Account
	err := r.v.read(func(st *state) error {
		for _, a := range st.accounts {
			cp := *a
			out = append(out, &cp)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

func (r *accountRepo) CreateIfNotExists(ctx context.Context, a *domain.Account) (bool, error) {
	if a == nil {
		return false, errors.New("account cannot be nil")
	}
	created := false
	err := r.v.write(func(st *state) error {
		if _, ok := st.accounts[a.Name]; ok {
			return nil
		}
		cp := *a
		st.accounts[a.Name] = &cp
		created = true
		return nil
	})
	return created, err
}

// ========================================
// ENTRIES
// ========================================

type entryRepo struct{ v *view }

func (r *entryRepo) CreateBatch(ctx context.Context, entries []*domain.AccountingEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := r.v.store.inject(OpCreateEntries, entries[0].TransactionID); err != nil {
		return err
	}
	return r.v.write(func(st *state) error {
		seen := make(map[string]bool)
		for _, e := range st.entries {
			seen[e.TransactionID+"|"+e.AccountID] = true
		}
		for _, e := range entries {
			key := e.TransactionID + "|" + e.AccountID
			if seen[key] {
				return fmt.Errorf("%w: duplicate posting for %s", domain.ErrTransientStorage, key)
			}
			seen[key] = true
		}
		for _, e := range entries {
			cp := *e
			st.entries = append(st.entries, &cp)
		}
		return nil
	})
}

func (r *entryRepo) CountByTransaction(ctx context.Context, transactionID string) (int, error) {
	n := 0
	err := r.v.read(func(st *state) error {
		for _, e := range st.entries {
			if e.TransactionID == transactionID {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *entryRepo) ListByTransaction(ctx context.Context, transactionID string) ([]*domain.AccountingEntry, error) {
	return r.List(ctx, domain.EntryFilter{TransactionID: &transactionID})
}

func (r *entryRepo) List(ctx context.Context, f domain.EntryFilter) ([]*domain.AccountingEntry, error) {
	var out []*domain.AccountingEntry
	err := r.v.read(func(st *state) error {
		names := make(map[string]string, len(st.accounts))
		for _, a := range st.accounts {
			names[a.ID] = a.Name
		}
		for _, e := range st.entries {
			if !matches(e, f) {
				continue
			}
			cp := *e
			cp.AccountName = names[e.AccountID]
			out = append(out, &cp)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matches(e *domain.AccountingEntry, f domain.EntryFilter) bool {
	switch {
	case f.TransactionID != nil && e.TransactionID != *f.TransactionID,
		f.MerchantID != nil && e.MerchantID != *f.MerchantID,
		f.LocationID != nil && e.LocationID != *f.LocationID,
		f.AccountID != nil && e.AccountID != *f.AccountID,
		f.From != nil && e.EntryDate.Before(*f.From),
		f.To != nil && !e.EntryDate.Before(*f.To):
		return false
	}
	return true
}

// ========================================
// BALANCES
// ========================================

type balanceRepo struct{ v *view }

func merchantKey(merchantID, locationID string) string {
	return merchantID + "|" + locationID
}

func (r *balanceRepo) LockMerchantBalance(ctx context.Context, merchantID, locationID string) (*domain.MerchantBalance, error) {
	key := merchantKey(merchantID, locationID)
	if err := r.v.store.inject(OpLockMerchantBalance, key); err != nil {
		return nil, err
	}
	return r.GetMerchantBalance(ctx, merchantID, locationID)
}

func (r *balanceRepo) CreateMerchantBalance(ctx context.Context, b *domain.MerchantBalance) error {
	if b == nil {
		return errors.New("balance cannot be nil")
	}
	return r.v.write(func(st *state) error {
		key := merchantKey(b.MerchantID, b.LocationID)
		if _, ok := st.merchantBalances[key]; ok {
			return nil
		}
		cp := *b
		cp.UpdatedAt = cp.CreatedAt
		cp.LastTransactionID = nil
		st.merchantBalances[key] = &cp
		return nil
	})
}

func (r *balanceRepo) SaveMerchantBalance(ctx context.Context, b *domain.MerchantBalance) error {
	if b.LastTransactionID != nil {
		if err := r.v.store.inject(OpSaveMerchantBalance, *b.LastTransactionID); err != nil {
			return err
		}
	}
	return r.v.write(func(st *state) error {
		key := merchantKey(b.MerchantID, b.LocationID)
		cur, ok := st.merchantBalances[key]
		if !ok {
			return fmt.Errorf("merchant balance %s: %w", key, domain.ErrNotFound)
		}
		cur.CurrentBalance = b.CurrentBalance
		cur.LastTransactionID = b.LastTransactionID
		cur.UpdatedAt = b.UpdatedAt
		return nil
	})
}

func (r *balanceRepo) GetMerchantBalance(ctx context.Context, merchantID, locationID string) (*domain.MerchantBalance, error) {
	var out *domain.MerchantBalance
	err := r.v.read(func(st *state) error {
		b, ok := st.merchantBalances[merchantKey(merchantID, locationID)]
		if !ok {
			return domain.ErrNotFound
		}
		cp := *b
		out = &cp
		return nil
	})
	return out, err
}

func (r *balanceRepo) LockFeeBalance(ctx context.Context, kind domain.FeeKind) (*domain.FeeBalance, error) {
	if err := r.v.store.inject(OpLockFeeBalance, string(kind)); err != nil {
		return nil, err
	}
	var out *domain.FeeBalance
	err := r.v.read(func(st *state) error {
		b, ok := st.feeBalances[kind]
		if !ok {
			return domain.ErrNotFound
		}
		cp := *b
		out = &cp
		return nil
	})
	return out, err
}

func (r *balanceRepo) CreateFeeBalance(ctx context.Context, kind domain.FeeKind, at time.Time) error {
	return r.v.write(func(st *state) error {
		if _, ok := st.feeBalances[kind]; ok {
			return nil
		}
		st.feeBalances[kind] = &domain.FeeBalance{Kind: kind, UpdatedAt: at}
		return nil
	})
}

func (r *balanceRepo) SaveFeeBalance(ctx context.Context, b *domain.FeeBalance) error {
	if b.LastTransactionID != nil {
		if err := r.v.store.inject(OpSaveFeeBalance, *b.LastTransactionID); err != nil {
			return err
		}
	}
	return r.v.write(func(st *state) error {
		cur, ok := st.feeBalances[b.Kind]
		if !ok {
			return fmt.Errorf("fee balance %s: %w", b.Kind, domain.ErrNotFound)
		}
		cur.CurrentBalance = b.CurrentBalance
		cur.LastTransactionID = b.LastTransactionID
		cur.UpdatedAt = b.UpdatedAt
		return nil
	})
}

func (r *balanceRepo) ListFeeBalances(ctx context.Context) ([]*domain.FeeBalance, error) {
	var out []*domain.FeeBalance
	err := r.v.read(func(st *state) error {
		for _, b := range st.feeBalances {
			cp := *b
			out = append(out, &cp)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out, err
}
