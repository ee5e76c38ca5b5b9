package domain

import (
	"time"

	"reconciliation-service/internal/pkg/money"
)

// FeeKind names one of the process-wide fee balances.
type FeeKind string

const (
	FeeKindProcessor FeeKind = "processor"
	FeeKindPlatform  FeeKind = "platform"
)

// MerchantBalance is the running payable for one (merchant, location).
type MerchantBalance struct {
	ID                string      `json:"id"`
	MerchantID        string      `json:"merchant_id"`
	LocationID        string      `json:"location_id"`
	CurrentBalance    money.Money `json:"current_balance"`
	LastTransactionID *string     `json:"last_transaction_id,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// AlreadyApplied reports whether txnID was the last transaction added.
func (b *MerchantBalance) AlreadyApplied(txnID string) bool {
	return b.LastTransactionID != nil && *b.LastTransactionID == txnID
}

func (b *MerchantBalance) Apply(txnID string, amount money.Money, now time.Time) {
	b.CurrentBalance = b.CurrentBalance.Add(amount)
	b.LastTransactionID = &txnID
	b.UpdatedAt = now
}

// FeeBalance is a process-wide running total stored as a keyed row.
type FeeBalance struct {
	Kind              FeeKind     `json:"kind"`
	CurrentBalance    money.Money `json:"current_balance"`
	LastTransactionID *string     `json:"last_transaction_id,omitempty"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

func (b *FeeBalance) AlreadyApplied(txnID string) bool {
	return b.LastTransactionID != nil && *b.LastTransactionID == txnID
}

func (b *FeeBalance) Apply(txnID string, amount money.Money, now time.Time) {
	b.CurrentBalance = b.CurrentBalance.Add(amount)
	b.LastTransactionID = &txnID
	b.UpdatedAt = now
}

// MerchantBalanceView is what reporting reads.
type MerchantBalanceView struct {
	MerchantID     string      `json:"merchant_id"`
	LocationID     string      `json:"location_id"`
	CurrentBalance money.Money `json:"current_balance"`
	FundsOnHold    money.Money `json:"funds_on_hold"`
}

type FeeBalancesView struct {
	Processor money.Money `json:"processor"`
	Platform  money.Money `json:"platform"`
}
