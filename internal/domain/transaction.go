package domain

import (
	"fmt"
	"time"

	"reconciliation-service/internal/pkg/money"
)

type PaymentStatus string

const (
	PaymentInitiated PaymentStatus = "initiated"
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentCancelled PaymentStatus = "cancelled"
)

type ReconciliationStatus string

const (
	ReconciliationPending  ReconciliationStatus = "pending"
	ReconciliationComplete ReconciliationStatus = "complete"
	ReconciliationFailed   ReconciliationStatus = "failed"
)

type PaymentType string

const (
	PaymentTypeCardPresent PaymentType = "card_present"
	PaymentTypeManual      PaymentType = "manual"
	PaymentTypeOnline      PaymentType = "online"
	PaymentTypeCash        PaymentType = "cash"
)

// Transaction is a customer payment as seen by reconciliation. Everything
// except the reconciliation_* fields is owned by the payment flow.
type Transaction struct {
	ID          string        `json:"id"`
	MerchantID  string        `json:"merchant_id"`
	LocationID  string        `json:"location_id"`
	PaymentType PaymentType   `json:"payment_type"`
	Status      PaymentStatus `json:"status"`

	TotalAmount  money.Money `json:"total_amount"`
	TaxAmount    money.Money `json:"tax_amount"`
	TipAmount    money.Money `json:"tip_amount"`
	ProcessorFee money.Money `json:"processor_fee"`
	PlatformFee  money.Money `json:"platform_fee"`
	NetAmount    money.Money `json:"net_amount"`
	FinalizedAt  *time.Time  `json:"finalized_at,omitempty"`

	ReconciliationStatus    ReconciliationStatus `json:"reconciliation_status"`
	ReconciliationError     *string              `json:"reconciliation_error,omitempty"`
	ReconciliationRetryable bool                 `json:"reconciliation_retryable"`
	ReconciliationAttempts  int                  `json:"reconciliation_attempts"`
	ReconciledAt            *time.Time           `json:"reconciled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Gross is the amount collected from the customer: total + tax + tip.
func (t *Transaction) Gross() money.Money {
	return money.Sum(t.TotalAmount, t.TaxAmount, t.TipAmount)
}

// ExpectedNet derives the merchant's share from the stored fees.
func (t *Transaction) ExpectedNet() money.Money {
	return t.Gross().Sub(t.ProcessorFee).Sub(t.PlatformFee)
}

func (t *Transaction) IsReconciled() bool {
	return t.ReconciliationStatus == ReconciliationComplete
}

func (t *Transaction) IsCompleted() bool {
	return t.Status == PaymentCompleted
}

// CheckInvariant validates the monetary fields before anything is posted.
func (t *Transaction) CheckInvariant() error {
	fields := []struct {
		name  string
		value money.Money
	}{
		{"total_amount", t.TotalAmount},
		{"tax_amount", t.TaxAmount},
		{"tip_amount", t.TipAmount},
		{"processor_fee", t.ProcessorFee},
		{"platform_fee", t.PlatformFee},
		{"net_amount", t.NetAmount},
	}
	for _, f := range fields {
		if f.value.IsNegative() {
			return fmt.Errorf("%w: %s is negative (%s)", ErrInvariantViolation, f.name, f.value.StringExact())
		}
	}

	expected := t.ExpectedNet()
	if !t.NetAmount.Equal(expected) {
		return fmt.Errorf("%w: net_amount %s != %s",
			ErrInvariantViolation, t.NetAmount.StringExact(), expected.StringExact())
	}
	return nil
}

// Finalize fills the fee and net fields from the schedule. It runs once per
// transaction; cash payments carry no fees. Fees are charged on Gross, tax
// included, so net plus fees always equals the amount the posting balances on.
func (t *Transaction) Finalize(schedule money.FeeSchedule, now time.Time) error {
	if t.FinalizedAt != nil {
		return fmt.Errorf("transaction %s: %w", t.ID, ErrAlreadyFinalized)
	}

	fees := schedule.Compute(t.Gross(), t.PaymentType == PaymentTypeCardPresent, t.PaymentType == PaymentTypeCash)
	t.ProcessorFee = fees.Processor
	t.PlatformFee = fees.Platform
	t.NetAmount = fees.Net
	t.FinalizedAt = &now
	return nil
}

// TransactionFilter narrows the candidate scan.
type TransactionFilter struct {
	AfterID string
	Limit   int
}
