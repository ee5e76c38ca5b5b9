package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"reconciliation-service/internal/domain"
)

type entryRepo struct {
	db DBTX
}

func NewEntryRepo(db DBTX) EntryRepository {
	return &entryRepo{db: db}
}

// CreateBatch inserts all lines in one round trip.
func (r *entryRepo) CreateBatch(ctx context.Context, entries []*domain.AccountingEntry) error {
	if len(entries) == 0 {
		return nil
	}

	query := `
		INSERT INTO accounting_entries (
			id, transaction_id, merchant_id, location_id, account_id,
			debit, credit, entry_date, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(query,
			e.ID, e.TransactionID, e.MerchantID, e.LocationID, e.AccountID,
			e.Debit, e.Credit, e.EntryDate, e.CreatedAt,
		)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	for range entries {
		if _, err := br.Exec(); err != nil {
			// a concurrent unit got there first; it will have flipped the status
			if ParsePGErrorCode(err) == pgUniqueViolation {
				return fmt.Errorf("%w: duplicate posting: %w", domain.ErrTransientStorage, err)
			}
			return wrap("insert accounting entry", err)
		}
	}
	return nil
}

func (r *entryRepo) CountByTransaction(ctx context.Context, transactionID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM accounting_entries WHERE transaction_id = $1`, transactionID).Scan(&n)
	if err != nil {
		return 0, wrap("count accounting entries", err)
	}
	return n, nil
}

func (r *entryRepo) ListByTransaction(ctx context.Context, transactionID string) ([]*domain.AccountingEntry, error) {
	return r.List(ctx, domain.EntryFilter{TransactionID: &transactionID})
}

func (r *entryRepo) List(ctx context.Context, f domain.EntryFilter) ([]*domain.AccountingEntry, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.TransactionID != nil {
		add("e.transaction_id = $%d", *f.TransactionID)
	}
	if f.MerchantID != nil {
		add("e.merchant_id = $%d", *f.MerchantID)
	}
	if f.LocationID != nil {
		add("e.location_id = $%d", *f.LocationID)
	}
	if f.AccountID != nil {
		add("e.account_id = $%d", *f.AccountID)
	}
	if f.From != nil {
		add("e.entry_date >= $%d", *f.From)
	}
	if f.To != nil {
		add("e.entry_date < $%d", *f.To)
	}

	query := `
		SELECT e.id, e.transaction_id, e.merchant_id, e.location_id, e.account_id, a.name,
		       e.debit, e.credit, e.entry_date, e.created_at
		FROM accounting_entries e
		INNER JOIN accounts a ON a.id = e.account_id`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY e.id"

	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, wrap("list accounting entries", err)
	}
	defer rows.Close()

	var entries []*domain.AccountingEntry
	for rows.Next() {
		var e domain.AccountingEntry
		if err := rows.Scan(
			&e.ID, &e.TransactionID, &e.MerchantID, &e.LocationID, &e.AccountID, &e.AccountName,
			&e.Debit, &e.Credit, &e.EntryDate, &e.CreatedAt,
		); err != nil {
			return nil, wrap("scan accounting entry", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate accounting entries", err)
	}
	return entries, nil
}
