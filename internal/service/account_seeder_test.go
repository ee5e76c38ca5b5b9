package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"reconciliation-service/internal/domain"
	"reconciliation-service/internal/repository/memstore"
	"reconciliation-service/internal/service"
	"reconciliation-service/pkg/utils"
)

func TestAccountSeeder_Seed(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	seeder := service.NewAccountSeeder(store, utils.NewIDGenerator(), zap.NewNop())

	created, err := seeder.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(domain.DefaultAccounts), created)

	first, err := store.Accounts().List(ctx)
	require.NoError(t, err)
	require.Len(t, first, len(domain.DefaultAccounts))

	created, err = seeder.Seed(ctx)
	require.NoError(t, err)
	assert.Zero(t, created)

	second, err := store.Accounts().List(ctx)
	require.NoError(t, err)
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID, "ids are stable across runs")
	}

	fees, err := store.Balances().ListFeeBalances(ctx)
	require.NoError(t, err)
	assert.Len(t, fees, 2)
}

func TestAccountSeeder_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := memstore.New()
	_, err := service.NewAccountSeeder(store, utils.NewIDGenerator(), zap.NewNop()).Seed(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	accounts, err := store.Accounts().List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, accounts)
}
