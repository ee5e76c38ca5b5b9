package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"reconciliation-service/internal/domain"
)

type transactionRepo struct {
	db DBTX
}

func NewTransactionRepo(db DBTX) TransactionRepository {
	return &transactionRepo{db: db}
}

const transactionColumns = `
	id, merchant_id, location_id, payment_type, status,
	total_amount, tax_amount, tip_amount, processor_fee, platform_fee, net_amount, finalized_at,
	reconciliation_status, reconciliation_error, reconciliation_retryable,
	reconciliation_attempts, reconciled_at, created_at, updated_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(
		&t.ID, &t.MerchantID, &t.LocationID, &t.PaymentType, &t.Status,
		&t.TotalAmount, &t.TaxAmount, &t.TipAmount, &t.ProcessorFee, &t.PlatformFee, &t.NetAmount, &t.FinalizedAt,
		&t.ReconciliationStatus, &t.ReconciliationError, &t.ReconciliationRetryable,
		&t.ReconciliationAttempts, &t.ReconciledAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *transactionRepo) Create(ctx context.Context, t *domain.Transaction) error {
	if t == nil {
		return errors.New("transaction cannot be nil")
	}

	query := `
		INSERT INTO transactions (
			id, merchant_id, location_id, payment_type, status,
			total_amount, tax_amount, tip_amount, processor_fee, platform_fee, net_amount, finalized_at,
			reconciliation_status, reconciliation_retryable, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
	`
	_, err := r.db.Exec(ctx, query,
		t.ID, t.MerchantID, t.LocationID, t.PaymentType, t.Status,
		t.TotalAmount, t.TaxAmount, t.TipAmount, t.ProcessorFee, t.PlatformFee, t.NetAmount, t.FinalizedAt,
		t.ReconciliationStatus, t.ReconciliationRetryable, t.CreatedAt,
	)
	if err != nil {
		return wrap("create transaction", err)
	}
	return nil
}

func (r *transactionRepo) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	t, err := scanTransaction(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("transaction %s: %w", id, domain.ErrNotFound)
		}
		return nil, wrap("get transaction", err)
	}
	return t, nil
}

func (r *transactionRepo) GetForUpdate(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`

	t, err := scanTransaction(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("transaction %s: %w", id, domain.ErrNotFound)
		}
		return nil, wrap("lock transaction", err)
	}
	return t, nil
}

func (r *transactionRepo) ListReconcilable(ctx context.Context, afterID string, limit int) ([]string, error) {
	query := `
		SELECT id
		FROM transactions
		WHERE status = 'completed'
		  AND reconciliation_status IN ('pending', 'failed')
		  AND reconciliation_retryable = TRUE
		  AND id > $1
		ORDER BY id
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, afterID, limit)
	if err != nil {
		return nil, wrap("list reconcilable transactions", err)
	}
	defer rows.Close()

	ids := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrap("scan transaction id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate transactions", err)
	}
	return ids, nil
}

func (r *transactionRepo) MarkComplete(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE transactions
		SET reconciliation_status = 'complete',
		    reconciliation_error = NULL,
		    reconciliation_retryable = TRUE,
		    reconciliation_attempts = reconciliation_attempts + 1,
		    reconciled_at = $2,
		    updated_at = $2
		WHERE id = $1 AND reconciliation_status <> 'complete'
	`
	tag, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		return wrap("mark transaction complete", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark complete %s: %w", id, domain.ErrInvalidState)
	}
	return nil
}

func (r *transactionRepo) MarkFailed(ctx context.Context, id string, reason string, retryable bool, at time.Time) error {
	query := `
		UPDATE transactions
		SET reconciliation_status = 'failed',
		    reconciliation_error = $2,
		    reconciliation_retryable = $3,
		    reconciliation_attempts = reconciliation_attempts + 1,
		    updated_at = $4
		WHERE id = $1 AND reconciliation_status <> 'complete'
	`
	tag, err := r.db.Exec(ctx, query, id, reason, retryable, at)
	if err != nil {
		return wrap("mark transaction failed", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark failed %s: %w", id, domain.ErrInvalidState)
	}
	return nil
}

func (r *transactionRepo) Requeue(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE transactions
		SET reconciliation_status = 'pending',
		    reconciliation_error = NULL,
		    reconciliation_retryable = TRUE,
		    updated_at = $2
		WHERE id = $1 AND reconciliation_status = 'failed'
	`
	tag, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		return wrap("requeue transaction", err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("requeue %s: %w", id, domain.ErrInvalidState)
	}
	return nil
}
