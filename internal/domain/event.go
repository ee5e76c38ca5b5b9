package domain

import (
	"time"

	"reconciliation-service/internal/pkg/money"
)

const (
	EventReconciliationCompleted = "reconciliation.completed"
	EventReconciliationFailed    = "reconciliation.failed"
	EventReconciliationRequeued  = "reconciliation.requeued"
)

// ReconciliationEvent is published after every reconciliation outcome.
type ReconciliationEvent struct {
	EventType     string      `json:"event_type"`
	TransactionID string      `json:"transaction_id"`
	MerchantID    string      `json:"merchant_id,omitempty"`
	LocationID    string      `json:"location_id,omitempty"`
	NetAmount     money.Money `json:"net_amount"`
	ProcessorFee  money.Money `json:"processor_fee"`
	PlatformFee   money.Money `json:"platform_fee"`
	Error         string      `json:"error,omitempty"`
	Retryable     bool        `json:"retryable"`
	Timestamp     time.Time   `json:"timestamp"`
}

// NewReconciliationEvent builds an event from a transaction snapshot.
// txn may be nil when the row could not be read.
func NewReconciliationEvent(eventType, txnID string, txn *Transaction, err error, at time.Time) *ReconciliationEvent {
	evt := &ReconciliationEvent{
		EventType:     eventType,
		TransactionID: txnID,
		NetAmount:     money.Zero,
		ProcessorFee:  money.Zero,
		PlatformFee:   money.Zero,
		Timestamp:     at.UTC(),
	}
	if txn != nil {
		evt.MerchantID = txn.MerchantID
		evt.LocationID = txn.LocationID
		evt.NetAmount = txn.NetAmount
		evt.ProcessorFee = txn.ProcessorFee
		evt.PlatformFee = txn.PlatformFee
	}
	if err != nil {
		evt.Error = err.Error()
		evt.Retryable = IsRetryable(err)
	}
	return evt
}
