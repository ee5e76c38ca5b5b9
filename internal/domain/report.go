package domain

import "time"

// SweepFailure describes one transaction the sweep could not reconcile.
type SweepFailure struct {
	TransactionID string `json:"transaction_id"`
	Error         string `json:"error"`
	Retryable     bool   `json:"retryable"`
}

// SweepReport summarises one sweep run.
type SweepReport struct {
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Processed  int            `json:"processed"`
	Succeeded  int            `json:"succeeded"`
	Skipped    int            `json:"skipped"`
	Failed     int            `json:"failed"`
	Failures   []SweepFailure `json:"failures"`
}

// ReconcileResult is returned by a single reconciliation.
type ReconcileResult struct {
	TransactionID string               `json:"transaction_id"`
	Status        ReconciliationStatus `json:"reconciliation_status"`
	AlreadyDone   bool                 `json:"already_reconciled"`
	Posting       *PostingResult       `json:"posting,omitempty"`
}
