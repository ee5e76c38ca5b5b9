package usecase_test

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"reconciliation-service/internal/domain"
	"reconciliation-service/internal/pkg/money"
	mock_pub "reconciliation-service/internal/pub/mocks"
	"reconciliation-service/internal/repository/memstore"
	"reconciliation-service/internal/service"
	"reconciliation-service/internal/usecase"
	"reconciliation-service/pkg/utils"
)

type fixture struct {
	ctx       context.Context
	store     *memstore.Store
	ids       *utils.DefaultIDGenerator
	logger    *zap.Logger
	directory *usecase.AccountDirectory
	engine    *usecase.PostingEngine
	agg       *usecase.BalanceAggregator
	balances  *usecase.BalanceUsecase
	publisher *mock_pub.MockPublisher
	uc        *usecase.ReconciliationUsecase
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	sweep      usecase.SweepOptions
	resolver   usecase.AccountResolver
	cache      usecase.BalanceCache
	publishSet bool
}

func withSweep(opts usecase.SweepOptions) fixtureOption {
	return func(c *fixtureConfig) { c.sweep = opts }
}

func withResolver(r usecase.AccountResolver) fixtureOption {
	return func(c *fixtureConfig) { c.resolver = r }
}

func withCache(cache usecase.BalanceCache) fixtureOption {
	return func(c *fixtureConfig) { c.cache = cache }
}

// withStrictPublisher leaves publisher expectations to the test.
func withStrictPublisher() fixtureOption {
	return func(c *fixtureConfig) { c.publishSet = true }
}

func newFixture(t *testing.T, ctrl *gomock.Controller, opts ...fixtureOption) *fixture {
	t.Helper()

	var cfg fixtureConfig
	for _, o := range opts {
		o(&cfg)
	}

	f := &fixture{
		ctx:    context.Background(),
		store:  memstore.New(),
		ids:    utils.NewIDGenerator(),
		logger: zap.NewNop(),
	}

	_, err := service.NewAccountSeeder(f.store, f.ids, f.logger).Seed(f.ctx)
	require.NoError(t, err)

	f.directory = usecase.NewAccountDirectory(f.store.Accounts(), nil, f.logger)
	f.engine = usecase.NewPostingEngine(f.ids, f.logger)
	f.agg = usecase.NewBalanceAggregator(f.ids, f.logger)
	f.balances = usecase.NewBalanceUsecase(f.store.Balances(), nil, 0, f.logger)

	f.publisher = mock_pub.NewMockPublisher(ctrl)
	if !cfg.publishSet {
		f.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	}

	var resolver usecase.AccountResolver = f.directory
	if cfg.resolver != nil {
		resolver = cfg.resolver
	}
	var cache usecase.BalanceCache = f.balances
	if cfg.cache != nil {
		cache = cfg.cache
	}

	f.uc = usecase.NewReconciliationUsecase(f.store, resolver, f.engine, f.agg, f.publisher, cache, f.logger, cfg.sweep)
	return f
}

type amounts struct {
	total, tax, tip, processor, platform string
}

var scenarioAmounts = amounts{total: "100.00", tax: "8.00", tip: "5.00", processor: "3.50", platform: "1.50"}

// addTxn stores a completed, pending-reconciliation transaction whose net
// amount satisfies the invariant.
func (f *fixture) addTxn(t *testing.T, id, merchantID, locationID string, a amounts) *domain.Transaction {
	t.Helper()

	txn := &domain.Transaction{
		ID:                      id,
		MerchantID:              merchantID,
		LocationID:              locationID,
		PaymentType:             domain.PaymentTypeManual,
		Status:                  domain.PaymentCompleted,
		TotalAmount:             money.MustParse(a.total),
		TaxAmount:               money.MustParse(a.tax),
		TipAmount:               money.MustParse(a.tip),
		ProcessorFee:            money.MustParse(a.processor),
		PlatformFee:             money.MustParse(a.platform),
		ReconciliationStatus:    domain.ReconciliationPending,
		ReconciliationRetryable: true,
	}
	txn.NetAmount = txn.ExpectedNet()
	require.NoError(t, f.store.Transactions().Create(f.ctx, txn))
	return txn
}

func (f *fixture) txn(t *testing.T, id string) *domain.Transaction {
	t.Helper()
	txn, err := f.store.Transactions().GetByID(f.ctx, id)
	require.NoError(t, err)
	return txn
}

func (f *fixture) entryCount(t *testing.T, id string) int {
	t.Helper()
	n, err := f.store.Entries().CountByTransaction(f.ctx, id)
	require.NoError(t, err)
	return n
}

func (f *fixture) merchantBalance(t *testing.T, merchantID, locationID string) money.Money {
	t.Helper()
	view, err := f.balances.GetMerchantBalance(f.ctx, merchantID, locationID)
	require.NoError(t, err)
	return view.CurrentBalance
}

func (f *fixture) feeBalances(t *testing.T) *domain.FeeBalancesView {
	t.Helper()
	view, err := f.balances.GetFeeBalances(f.ctx)
	require.NoError(t, err)
	return view
}
