package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"reconciliation-service/internal/domain"
	"reconciliation-service/internal/repository"
	"reconciliation-service/pkg/utils"
)

// AccountSeeder creates the fixed ledger accounts. Running it again is harmless.
type AccountSeeder struct {
	uow    repository.UnitOfWork
	ids    utils.IDGenerator
	logger *zap.Logger
}

func NewAccountSeeder(uow repository.UnitOfWork, ids utils.IDGenerator, logger *zap.Logger) *AccountSeeder {
	return &AccountSeeder{uow: uow, ids: ids, logger: logger}
}

// Seed writes every missing account and the two fee balance rows in one
// unit, returning how many accounts were created.
func (s *AccountSeeder) Seed(ctx context.Context) (int, error) {
	s.logger.Info("Seeding ledger accounts")

	created := 0
	now := time.Now().UTC()

	err := s.uow.WithinTx(ctx, func(ctx context.Context, st repository.Store) error {
		for _, def := range domain.DefaultAccounts {
			acc := def
			acc.ID = s.ids.NewEntityID()
			acc.CreatedAt = now

			ok, err := st.Accounts().CreateIfNotExists(ctx, &acc)
			if err != nil {
				return fmt.Errorf("failed to seed account %q: %w", acc.Name, err)
			}
			if ok {
				created++
				s.logger.Info("Seeded ledger account",
					zap.String("name", acc.Name),
					zap.String("type", string(acc.Type)),
				)
			}
		}

		for _, kind := range []domain.FeeKind{domain.FeeKindProcessor, domain.FeeKindPlatform} {
			if err := st.Balances().CreateFeeBalance(ctx, kind, now); err != nil {
				return fmt.Errorf("failed to seed %s fee balance: %w", kind, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Ledger account seeding completed", zap.Int("created", created))
	return created, nil
}
