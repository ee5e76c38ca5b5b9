package domain

import (
	"fmt"
	"time"

	"reconciliation-service/internal/pkg/money"
)

// PostingLineCount is the size of a complete posting set.
const PostingLineCount = 6

// AccountingEntry is one immutable ledger line.
type AccountingEntry struct {
	ID            string      `json:"id"`
	TransactionID string      `json:"transaction_id"`
	MerchantID    string      `json:"merchant_id"`
	LocationID    string      `json:"location_id"`
	AccountID     string      `json:"account_id"`
	AccountName   string      `json:"account_name,omitempty"` // joined on read
	Debit         money.Money `json:"debit"`
	Credit        money.Money `json:"credit"`
	EntryDate     time.Time   `json:"entry_date"`
	CreatedAt     time.Time   `json:"created_at"`
}

type EntryFilter struct {
	TransactionID *string
	MerchantID    *string
	LocationID    *string
	AccountID     *string
	From          *time.Time
	To            *time.Time
	Limit         int
	Offset        int
}

// PostingResult is the outcome of posting one transaction.
type PostingResult struct {
	TransactionID string             `json:"transaction_id"`
	Entries       []*AccountingEntry `json:"entries"`
	TotalDebit    money.Money        `json:"total_debit"`
	TotalCredit   money.Money        `json:"total_credit"`
	Noop          bool               `json:"noop"`
}

// NewPostingResult totals the given lines.
func NewPostingResult(txnID string, entries []*AccountingEntry) *PostingResult {
	res := &PostingResult{
		TransactionID: txnID,
		Entries:       entries,
		TotalDebit:    money.Zero,
		TotalCredit:   money.Zero,
	}
	for _, e := range entries {
		res.TotalDebit = res.TotalDebit.Add(e.Debit)
		res.TotalCredit = res.TotalCredit.Add(e.Credit)
	}
	return res
}

// Verify checks a constructed set against the transaction it was built from.
//
// Debits (merchant payable + both fees) must add up to the gross amount G.
// Revenue and Cash/Bank each carry a credit of G and Tax Payable carries tax.
// Every line has at most one nonzero side and no negative side.
func (p *PostingResult) Verify(txn *Transaction) error {
	if len(p.Entries) != PostingLineCount {
		return fmt.Errorf("%w: expected %d lines, got %d", ErrLedgerImbalance, PostingLineCount, len(p.Entries))
	}

	gross := txn.Gross()
	seen := make(map[string]bool, PostingLineCount)

	for _, e := range p.Entries {
		if e.TransactionID != txn.ID {
			return fmt.Errorf("%w: line for %s belongs to transaction %s", ErrLedgerImbalance, e.AccountName, e.TransactionID)
		}
		if e.Debit.IsNegative() || e.Credit.IsNegative() {
			return fmt.Errorf("%w: negative amount on %s", ErrLedgerImbalance, e.AccountName)
		}
		if !e.Debit.IsZero() && !e.Credit.IsZero() {
			return fmt.Errorf("%w: %s has both debit and credit", ErrLedgerImbalance, e.AccountName)
		}
		if seen[e.AccountID] {
			return fmt.Errorf("%w: account %s posted twice", ErrLedgerImbalance, e.AccountName)
		}
		seen[e.AccountID] = true

		var want money.Money
		switch e.AccountName {
		case AccountRevenue, AccountCashBank:
			want = gross
		case AccountTaxPayable:
			want = txn.TaxAmount
		default:
			continue
		}
		if !e.Credit.Equal(want) {
			return fmt.Errorf("%w: %s credit %s != %s", ErrLedgerImbalance, e.AccountName, e.Credit.StringExact(), want.StringExact())
		}
	}

	if !p.TotalDebit.Equal(gross) {
		return fmt.Errorf("%w: debits %s != gross %s", ErrLedgerImbalance, p.TotalDebit.StringExact(), gross.StringExact())
	}
	return nil
}

// EntryFor returns the line posted to the named account, or nil.
func (p *PostingResult) EntryFor(accountName string) *AccountingEntry {
	for _, e := range p.Entries {
		if e.AccountName == accountName {
			return e
		}
	}
	return nil
}
