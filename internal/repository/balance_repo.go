package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"reconciliation-service/internal/domain"
)

type balanceRepo struct {
	db DBTX
}

func NewBalanceRepo(db DBTX) BalanceRepository {
	return &balanceRepo{db: db}
}

// ========================================
// MERCHANT BALANCES
// ========================================

const merchantBalanceColumns = `id, merchant_id, location_id, current_balance, last_transaction_id, created_at, updated_at`

func scanMerchantBalance(row pgx.Row) (*domain.MerchantBalance, error) {
	var b domain.MerchantBalance
	if err := row.Scan(
		&b.ID, &b.MerchantID, &b.LocationID, &b.CurrentBalance,
		&b.LastTransactionID, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *balanceRepo) LockMerchantBalance(ctx context.Context, merchantID, locationID string) (*domain.MerchantBalance, error) {
	query := `SELECT ` + merchantBalanceColumns + `
		FROM merchant_balances
		WHERE merchant_id = $1 AND location_id = $2
		FOR UPDATE`

	b, err := scanMerchantBalance(r.db.QueryRow(ctx, query, merchantID, locationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, wrap("lock merchant balance", err)
	}
	return b, nil
}

func (r *balanceRepo) CreateMerchantBalance(ctx context.Context, b *domain.MerchantBalance) error {
	if b == nil {
		return errors.New("balance cannot be nil")
	}

	query := `
		INSERT INTO merchant_balances (id, merchant_id, location_id, current_balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (merchant_id, location_id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, query, b.ID, b.MerchantID, b.LocationID, b.CurrentBalance, b.CreatedAt); err != nil {
		return wrap("create merchant balance", err)
	}
	return nil
}

func (r *balanceRepo) SaveMerchantBalance(ctx context.Context, b *domain.MerchantBalance) error {
	query := `
		UPDATE merchant_balances
		SET current_balance = $3, last_transaction_id = $4, updated_at = $5
		WHERE merchant_id = $1 AND location_id = $2
	`
	tag, err := r.db.Exec(ctx, query, b.MerchantID, b.LocationID, b.CurrentBalance, b.LastTransactionID, b.UpdatedAt)
	if err != nil {
		return wrap("save merchant balance", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("merchant balance %s/%s: %w", b.MerchantID, b.LocationID, domain.ErrNotFound)
	}
	return nil
}

func (r *balanceRepo) GetMerchantBalance(ctx context.Context, merchantID, locationID string) (*domain.MerchantBalance, error) {
	query := `SELECT ` + merchantBalanceColumns + ` FROM merchant_balances WHERE merchant_id = $1 AND location_id = $2`

	b, err := scanMerchantBalance(r.db.QueryRow(ctx, query, merchantID, locationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, wrap("get merchant balance", err)
	}
	return b, nil
}

// ========================================
// FEE BALANCES
// ========================================

func (r *balanceRepo) LockFeeBalance(ctx context.Context, kind domain.FeeKind) (*domain.FeeBalance, error) {
	query := `
		SELECT kind, current_balance, last_transaction_id, updated_at
		FROM fee_balances
		WHERE kind = $1
		FOR UPDATE`

	var b domain.FeeBalance
	err := r.db.QueryRow(ctx, query, kind).Scan(&b.Kind, &b.CurrentBalance, &b.LastTransactionID, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, wrap("lock fee balance", err)
	}
	return &b, nil
}

func (r *balanceRepo) CreateFeeBalance(ctx context.Context, kind domain.FeeKind, at time.Time) error {
	query := `
		INSERT INTO fee_balances (kind, current_balance, updated_at)
		VALUES ($1, 0, $2)
		ON CONFLICT (kind) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, query, kind, at); err != nil {
		return wrap("create fee balance", err)
	}
	return nil
}

func (r *balanceRepo) SaveFeeBalance(ctx context.Context, b *domain.FeeBalance) error {
	query := `
		UPDATE fee_balances
		SET current_balance = $2, last_transaction_id = $3, updated_at = $4
		WHERE kind = $1
	`
	tag, err := r.db.Exec(ctx, query, b.Kind, b.CurrentBalance, b.LastTransactionID, b.UpdatedAt)
	if err != nil {
		return wrap("save fee balance", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("fee balance %s: %w", b.Kind, domain.ErrNotFound)
	}
	return nil
}

func (r *balanceRepo) ListFeeBalances(ctx context.Context) ([]*domain.FeeBalance, error) {
	rows, err := r.db.Query(ctx, `SELECT kind, current_balance, last_transaction_id, updated_at FROM fee_balances ORDER BY kind`)
	if err != nil {
		return nil, wrap("list fee balances", err)
	}
	defer rows.Close()

	var out []*domain.FeeBalance
	for rows.Next() {
		var b domain.FeeBalance
		if err := rows.Scan(&b.Kind, &b.CurrentBalance, &b.LastTransactionID, &b.UpdatedAt); err != nil {
			return nil, wrap("scan fee balance", err)
		}
		out = append(out, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate fee balances", err)
	}
	return out, nil
}
