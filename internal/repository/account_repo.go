package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"reconciliation-service/internal/domain"
)

type accountRepo struct {
	db DBTX
}

func NewAccountRepo(db DBTX) AccountRepository {
	return &accountRepo{db: db}
}

func (r *accountRepo) GetByName(ctx context.Context, name string) (*domain.Account, error) {
	query := `SELECT id, name, type, description, created_at FROM accounts WHERE name = $1`

	var a domain.Account
	err := r.db.QueryRow(ctx, query, name).Scan(&a.ID, &a.Name, &a.Type, &a.Description, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("account %q: %w", name, domain.ErrNotFound)
		}
		return nil, wrap("get account", err)
	}
	return &a, nil
}

func (r *accountRepo) List(ctx context.Context) ([]*domain.Account, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, type, description, created_at FROM accounts ORDER BY name`)
	if err != nil {
		return nil, wrap("list accounts", err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Type, &a.Description, &a.CreatedAt); err != nil {
			return nil, wrap("scan account", err)
		}
		accounts = append(accounts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate accounts", err)
	}
	return accounts, nil
}

func (r *accountRepo) CreateIfNotExists(ctx context.Context, a *domain.Account) (bool, error) {
	if a == nil {
		return false, errors.New("account cannot be nil")
	}

	query := `
		INSERT INTO accounts (id, name, type, description, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query, a.ID, a.Name, a.Type, a.Description, a.CreatedAt)
	if err != nil {
		return false, wrap("create account", err)
	}
	return tag.RowsAffected() == 1, nil
}
