package usecase

import (
	"context"

	"reconciliation-service/internal/domain"
)

// AccountResolver maps the fixed account names to ids.
//
//go:generate mockgen -destination=mocks/mock_usecase.go -source=interface.go
type AccountResolver interface {
	ResolveAll(ctx context.Context) (domain.AccountSet, error)
}

// BalanceCache drops cached balance reads after a reconciliation.
type BalanceCache interface {
	InvalidateMerchant(ctx context.Context, merchantID, locationID string)
}
