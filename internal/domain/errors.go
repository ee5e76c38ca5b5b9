package domain

import (
	"context"
	"errors"
)

var (
	// ErrInvariantViolation means the monetary fields of a transaction do not
	// satisfy net = total + tax + tip - processor_fee - platform_fee, or a
	// field is negative. Needs an upstream data fix.
	ErrInvariantViolation = errors.New("transaction violates net amount invariant")

	// ErrLedgerImbalance means a constructed posting set failed verification.
	// Programming error class; never retried automatically.
	ErrLedgerImbalance = errors.New("ledger posting set is unbalanced")

	// ErrTransientStorage covers deadlocks, serialization failures, lock
	// timeouts and lost connections.
	ErrTransientStorage = errors.New("transient storage failure")

	// ErrAlreadyReconciled is an idempotency short-circuit, not a failure.
	ErrAlreadyReconciled = errors.New("transaction already reconciled")

	ErrNotFound                = errors.New("not found")
	ErrTransactionNotCompleted = errors.New("transaction payment is not completed")
	ErrInvalidState            = errors.New("invalid reconciliation state")
	ErrAlreadyFinalized        = errors.New("transaction fees already finalized")
	ErrAccountMissing          = errors.New("ledger account not seeded")
	ErrInvalidInput            = errors.New("invalid input provided")
)

// IsRetryable reports whether the next sweep should pick the transaction up again.
// Unknown errors are treated as retryable.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrInvariantViolation),
		errors.Is(err, ErrLedgerImbalance),
		errors.Is(err, ErrAlreadyReconciled),
		errors.Is(err, ErrTransactionNotCompleted),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrNotFound):
		return false
	case errors.Is(err, ErrTransientStorage),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return true
	default:
		return true
	}
}

// ErrorKind is a short machine-readable label used in logs and events.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvariantViolation):
		return "invariant_violation"
	case errors.Is(err, ErrLedgerImbalance):
		return "ledger_imbalance"
	case errors.Is(err, ErrTransientStorage):
		return "transient_storage"
	case errors.Is(err, ErrAlreadyReconciled):
		return "already_reconciled"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTransactionNotCompleted):
		return "not_completed"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrAccountMissing):
		return "account_missing"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "unknown"
	}
}
