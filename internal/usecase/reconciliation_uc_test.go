package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reconciliation-service/internal/domain"
	"reconciliation-service/internal/pkg/money"
	"reconciliation-service/internal/repository/memstore"
	"reconciliation-service/internal/usecase"
	mock_usecase "reconciliation-service/internal/usecase/mocks"
)

func transientOn(target memstore.Op, id string) memstore.FaultFunc {
	return func(op memstore.Op, key string) error {
		if op == target && key == id {
			return fmt.Errorf("%w: deadlock detected", domain.ErrTransientStorage)
		}
		return nil
	}
}

func TestReconcileOne_ConcreteScenario(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)

	txn := f.addTxn(t, "txn-1", "m1", "l1", scenarioAmounts)
	require.Equal(t, "108.00", txn.NetAmount.String())

	res, err := f.uc.ReconcileOne(f.ctx, "txn-1")
	require.NoError(t, err)
	assert.False(t, res.AlreadyDone)
	assert.Equal(t, domain.ReconciliationComplete, res.Status)

	entries, err := f.store.Entries().ListByTransaction(f.ctx, "txn-1")
	require.NoError(t, err)
	require.Len(t, entries, domain.PostingLineCount)

	want := map[string]struct{ debit, credit string }{
		domain.AccountRevenue:         {"0.00", "113.00"},
		domain.AccountTaxPayable:      {"0.00", "8.00"},
		domain.AccountMerchantPayable: {"108.00", "0.00"},
		domain.AccountProcessorFees:   {"3.50", "0.00"},
		domain.AccountPlatformFees:    {"1.50", "0.00"},
		domain.AccountCashBank:        {"0.00", "113.00"},
	}
	debits := money.Zero
	for _, e := range entries {
		w, ok := want[e.AccountName]
		require.True(t, ok, "unexpected account %q", e.AccountName)
		assert.Equal(t, w.debit, e.Debit.String(), e.AccountName)
		assert.Equal(t, w.credit, e.Credit.String(), e.AccountName)
		assert.Equal(t, "m1", e.MerchantID)
		assert.Equal(t, "l1", e.LocationID)
		debits = debits.Add(e.Debit)
	}
	assert.True(t, debits.Equal(txn.Gross()), "debits must equal total + tax + tip")

	assert.Equal(t, "108.00", f.merchantBalance(t, "m1", "l1").String())
	fees := f.feeBalances(t)
	assert.Equal(t, "3.50", fees.Processor.String())
	assert.Equal(t, "1.50", fees.Platform.String())

	stored := f.txn(t, "txn-1")
	assert.Equal(t, domain.ReconciliationComplete, stored.ReconciliationStatus)
	assert.Nil(t, stored.ReconciliationError)
	assert.NotNil(t, stored.ReconciledAt)
	assert.Equal(t, 1, stored.ReconciliationAttempts)
}

func TestReconcileOne_Idempotent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)
	f.addTxn(t, "txn-1", "m1", "l1", scenarioAmounts)

	_, err := f.uc.ReconcileOne(f.ctx, "txn-1")
	require.NoError(t, err)

	res, err := f.uc.ReconcileOne(f.ctx, "txn-1")
	require.NoError(t, err)
	assert.True(t, res.AlreadyDone)

	assert.Equal(t, 6, f.entryCount(t, "txn-1"))
	assert.Equal(t, "108.00", f.merchantBalance(t, "m1", "l1").String())
	assert.Equal(t, "3.50", f.feeBalances(t).Processor.String())
	assert.Equal(t, 1, f.txn(t, "txn-1").ReconciliationAttempts)
}

func TestReconcileOne_AlreadyCompleteIsNotRecordedAsFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)
	f.addTxn(t, "txn-1", "m1", "l1", scenarioAmounts)

	_, err := f.uc.ReconcileOne(f.ctx, "txn-1")
	require.NoError(t, err)

	// a late MarkFailed would hit the terminal-state guard; make sure nothing tries
	f.store.SetFault(func(op memstore.Op, key string) error {
		if op == memstore.OpMarkFailed {
			t.Errorf("unexpected MarkFailed for %s", key)
		}
		return nil
	})

	res, err := f.uc.ReconcileOne(f.ctx, "txn-1")
	require.NoError(t, err)
	assert.True(t, res.AlreadyDone)
}

func TestReconcileOne_BalanceAdditivity(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)

	var ids []string
	expectM1, expectM2 := money.Zero, money.Zero
	for i := 0; i < 12; i++ {
		a := amounts{
			total:     fmt.Sprintf("%d.25", 10+i),
			tax:       "1.10",
			tip:       fmt.Sprintf("0.%02d", i),
			processor: "0.61",
			platform:  "0.17",
		}
		merchant := "m1"
		if i%3 == 0 {
			merchant = "m2"
		}
		txn := f.addTxn(t, fmt.Sprintf("txn-%02d", i), merchant, "l1", a)
		if merchant == "m1" {
			expectM1 = expectM1.Add(txn.NetAmount)
		} else {
			expectM2 = expectM2.Add(txn.NetAmount)
		}
		ids = append(ids, txn.ID)
	}

	rand.New(rand.NewSource(7)).Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.uc.ReconcileOne(f.ctx, id)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	assert.True(t, expectM1.Equal(f.merchantBalance(t, "m1", "l1")), "m1 balance")
	assert.True(t, expectM2.Equal(f.merchantBalance(t, "m2", "l1")), "m2 balance")
	assert.Equal(t, "7.32", f.feeBalances(t).Processor.String())
	assert.Equal(t, "2.04", f.feeBalances(t).Platform.String())
}

func TestSweep_PartialFailureIsolation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)

	t1 := f.addTxn(t, "txn-1", "m1", "l1", scenarioAmounts)
	f.addTxn(t, "txn-2", "m1", "l1", amounts{total: "50.00", tax: "4.00", tip: "0", processor: "1.80", platform: "0.54"})
	t3 := f.addTxn(t, "txn-3", "m1", "l1", amounts{total: "20.00", tax: "0", tip: "2.00", processor: "0.94", platform: "0.22"})

	f.store.SetFault(transientOn(memstore.OpSaveMerchantBalance, "txn-2"))

	report, err := f.uc.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "txn-2", report.Failures[0].TransactionID)
	assert.True(t, report.Failures[0].Retryable)

	assert.Equal(t, domain.ReconciliationComplete, f.txn(t, "txn-1").ReconciliationStatus)
	assert.Equal(t, domain.ReconciliationComplete, f.txn(t, "txn-3").ReconciliationStatus)

	failed := f.txn(t, "txn-2")
	assert.Equal(t, domain.ReconciliationFailed, failed.ReconciliationStatus)
	assert.True(t, failed.ReconciliationRetryable)
	require.NotNil(t, failed.ReconciliationError)
	assert.Contains(t, *failed.ReconciliationError, "transient storage failure")
	assert.Zero(t, f.entryCount(t, "txn-2"))

	assert.True(t, t1.NetAmount.Add(t3.NetAmount).Equal(f.merchantBalance(t, "m1", "l1")))
	assert.Equal(t, "4.44", f.feeBalances(t).Processor.String())
}

func TestSweep_RetryConvergence(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)

	t1 := f.addTxn(t, "txn-1", "m1", "l1", scenarioAmounts)
	t2 := f.addTxn(t, "txn-2", "m1", "l1", amounts{total: "50.00", tax: "4.00", tip: "0", processor: "1.80", platform: "0.54"})

	// fails after the merchant balance was already updated inside the unit
	f.store.SetFault(transientOn(memstore.OpSaveFeeBalance, "txn-2"))

	report, err := f.uc.Sweep(f.ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed)
	assert.True(t, t1.NetAmount.Equal(f.merchantBalance(t, "m1", "l1")))

	f.store.SetFault(nil)

	report, err = f.uc.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Succeeded)

	stored := f.txn(t, "txn-2")
	assert.Equal(t, domain.ReconciliationComplete, stored.ReconciliationStatus)
	assert.Equal(t, 2, stored.ReconciliationAttempts)
	assert.Equal(t, 6, f.entryCount(t, "txn-2"))
	assert.True(t, t1.NetAmount.Add(t2.NetAmount).Equal(f.merchantBalance(t, "m1", "l1")))
	assert.Equal(t, "5.30", f.feeBalances(t).Processor.String())
	assert.Equal(t, "2.04", f.feeBalances(t).Platform.String())

	report, err = f.uc.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Processed)
}

func TestReconcileOne_ConcurrentInlineAndSweep(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl, withSweep(usecase.SweepOptions{BatchSize: 10, Concurrency: 4}))
	f.addTxn(t, "txn-1", "m1", "l1", scenarioAmounts)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.uc.ReconcileOne(f.ctx, "txn-1")
			assert.NoError(t, err)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		report, err := f.uc.Sweep(f.ctx)
		assert.NoError(t, err)
		assert.Zero(t, report.Failed)
	}()
	wg.Wait()

	assert.Equal(t, 6, f.entryCount(t, "txn-1"))
	assert.Equal(t, "108.00", f.merchantBalance(t, "m1", "l1").String())
	assert.Equal(t, "3.50", f.feeBalances(t).Processor.String())
	assert.Equal(t, "1.50", f.feeBalances(t).Platform.String())
}

func TestReconcileOne_InvariantViolationThenRequeue(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)
	f.addTxn(t, "txn-1", "m1", "l1", scenarioAmounts)

	require.NoError(t, f.store.UpdateTransaction("txn-1", func(txn *domain.Transaction) {
		txn.NetAmount = money.MustParse("110.00")
	}))

	_, err := f.uc.ReconcileOne(f.ctx, "txn-1")
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)

	stored := f.txn(t, "txn-1")
	assert.Equal(t, domain.ReconciliationFailed, stored.ReconciliationStatus)
	assert.False(t, stored.ReconciliationRetryable)
	assert.Zero(t, f.entryCount(t, "txn-1"))

	report, err := f.uc.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Processed, "non-retryable failures are skipped by the sweep")

	require.NoError(t, f.store.UpdateTransaction("txn-1", func(txn *domain.Transaction) {
		txn.NetAmount = txn.ExpectedNet()
	}))
	require.NoError(t, f.uc.Requeue(f.ctx, "txn-1"))
	assert.Equal(t, domain.ReconciliationPending, f.txn(t, "txn-1").ReconciliationStatus)

	report, err = f.uc.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, "108.00", f.merchantBalance(t, "m1", "l1").String())
}

func TestReconcileOne_NotReconcilable(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)

	pending := f.addTxn(t, "txn-pending", "m1", "l1", scenarioAmounts)
	require.NoError(t, f.store.UpdateTransaction(pending.ID, func(txn *domain.Transaction) {
		txn.Status = domain.PaymentPending
	}))

	t.Run("payment not completed", func(t *testing.T) {
		_, err := f.uc.ReconcileOne(f.ctx, "txn-pending")
		assert.ErrorIs(t, err, domain.ErrTransactionNotCompleted)

		stored := f.txn(t, "txn-pending")
		assert.Equal(t, domain.ReconciliationPending, stored.ReconciliationStatus)
		assert.Zero(t, stored.ReconciliationAttempts)
		assert.Zero(t, f.entryCount(t, "txn-pending"))
	})

	t.Run("unknown transaction", func(t *testing.T) {
		_, err := f.uc.ReconcileOne(f.ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestReconcileOne_PartialPostingSetIsImbalance(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)
	f.addTxn(t, "txn-1", "m1", "l1", scenarioAmounts)

	require.NoError(t, f.store.Entries().CreateBatch(f.ctx, []*domain.AccountingEntry{
		{ID: "stray-1", TransactionID: "txn-1", AccountID: "x1", Debit: money.MustParse("1"), Credit: money.Zero},
		{ID: "stray-2", TransactionID: "txn-1", AccountID: "x2", Debit: money.Zero, Credit: money.MustParse("1")},
	}))

	_, err := f.uc.ReconcileOne(f.ctx, "txn-1")
	assert.ErrorIs(t, err, domain.ErrLedgerImbalance)

	stored := f.txn(t, "txn-1")
	assert.Equal(t, domain.ReconciliationFailed, stored.ReconciliationStatus)
	assert.False(t, stored.ReconciliationRetryable)
	assert.Equal(t, 2, f.entryCount(t, "txn-1"))
}

func TestReconcileOne_AccountsUnresolved(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	resolver := mock_usecase.NewMockAccountResolver(ctrl)
	resolver.EXPECT().ResolveAll(gomock.Any()).
		Return(nil, fmt.Errorf("%w: %s", domain.ErrAccountMissing, domain.AccountCashBank))

	f := newFixture(t, ctrl, withResolver(resolver))
	f.addTxn(t, "txn-1", "m1", "l1", scenarioAmounts)

	_, err := f.uc.ReconcileOne(f.ctx, "txn-1")
	assert.ErrorIs(t, err, domain.ErrAccountMissing)

	stored := f.txn(t, "txn-1")
	assert.Equal(t, domain.ReconciliationFailed, stored.ReconciliationStatus)
	assert.True(t, stored.ReconciliationRetryable, "seeding later lets the sweep finish it")
}

func TestReconcileOne_PanicIsRecorded(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)
	f.addTxn(t, "txn-1", "m1", "l1", scenarioAmounts)

	f.store.SetFault(func(op memstore.Op, key string) error {
		if op == memstore.OpMarkComplete {
			panic("driver exploded")
		}
		return nil
	})

	res, err := f.uc.ReconcileOne(f.ctx, "txn-1")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "driver exploded")

	assert.Equal(t, domain.ReconciliationFailed, f.txn(t, "txn-1").ReconciliationStatus)
	assert.Zero(t, f.entryCount(t, "txn-1"))
}

func TestReconcileOne_EventsAndCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cache := mock_usecase.NewMockBalanceCache(ctrl)
	f := newFixture(t, ctrl, withCache(cache), withStrictPublisher())
	f.addTxn(t, "txn-ok", "m1", "l1", scenarioAmounts)
	f.addTxn(t, "txn-bad", "m1", "l1", scenarioAmounts)
	require.NoError(t, f.store.UpdateTransaction("txn-bad", func(txn *domain.Transaction) {
		txn.NetAmount = money.MustParse("1.00")
	}))

	var (
		mu     sync.Mutex
		events []*domain.ReconciliationEvent
	)
	f.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, evt *domain.ReconciliationEvent) error {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, evt)
			return nil
		}).Times(2)
	cache.EXPECT().InvalidateMerchant(gomock.Any(), "m1", "l1").Times(1)

	_, err := f.uc.ReconcileOne(f.ctx, "txn-ok")
	require.NoError(t, err)
	_, err = f.uc.ReconcileOne(f.ctx, "txn-bad")
	require.Error(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, domain.EventReconciliationCompleted, events[0].EventType)
	assert.Equal(t, "txn-ok", events[0].TransactionID)
	assert.Equal(t, "108.00", events[0].NetAmount.String())

	assert.Equal(t, domain.EventReconciliationFailed, events[1].EventType)
	assert.Equal(t, "txn-bad", events[1].TransactionID)
	assert.False(t, events[1].Retryable)
	assert.NotEmpty(t, events[1].Error)
}

func TestReconcileOne_PublisherFailureDoesNotFailReconciliation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newFixture(t, ctrl, withStrictPublisher())
	f.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))
	f.addTxn(t, "txn-1", "m1", "l1", scenarioAmounts)

	_, err := f.uc.ReconcileOne(f.ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReconciliationComplete, f.txn(t, "txn-1").ReconciliationStatus)
}

func TestSweep_PaginatesWithConcurrency(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl, withSweep(usecase.SweepOptions{BatchSize: 2, Concurrency: 3}))

	for i := 0; i < 5; i++ {
		f.addTxn(t, fmt.Sprintf("txn-%d", i), "m1", "l1", scenarioAmounts)
	}

	report, err := f.uc.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Processed)
	assert.Equal(t, 5, report.Succeeded)
	assert.Equal(t, "540.00", f.merchantBalance(t, "m1", "l1").String())
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
}

func TestSweep_RejectsOverlappingRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)
	f.addTxn(t, "txn-1", "m1", "l1", scenarioAmounts)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.store.SetFault(func(op memstore.Op, key string) error {
		if op == memstore.OpListReconcilable {
			once.Do(func() {
				close(entered)
				<-release
			})
		}
		return nil
	})

	done := make(chan error, 1)
	go func() {
		_, err := f.uc.Sweep(f.ctx)
		done <- err
	}()

	<-entered
	_, err := f.uc.Sweep(f.ctx)
	assert.ErrorIs(t, err, usecase.ErrSweepInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, domain.ReconciliationComplete, f.txn(t, "txn-1").ReconciliationStatus)
}

func TestSweep_StopsOnCancelledContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)
	f.addTxn(t, "txn-1", "m1", "l1", scenarioAmounts)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := f.uc.Sweep(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Zero(t, report.Processed)
	assert.Equal(t, domain.ReconciliationPending, f.txn(t, "txn-1").ReconciliationStatus)
}

func TestSweep_ListFailureIsReported(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)

	f.store.SetFault(transientOn(memstore.OpListReconcilable, ""))

	report, err := f.uc.Sweep(f.ctx)
	assert.ErrorIs(t, err, domain.ErrTransientStorage)
	require.NotNil(t, report)
	assert.Zero(t, report.Processed)
}

func TestRequeue(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)
	f.addTxn(t, "txn-1", "m1", "l1", scenarioAmounts)

	assert.ErrorIs(t, f.uc.Requeue(f.ctx, "txn-1"), domain.ErrInvalidState)
	assert.ErrorIs(t, f.uc.Requeue(f.ctx, "missing"), domain.ErrNotFound)

	_, err := f.uc.ReconcileOne(f.ctx, "txn-1")
	require.NoError(t, err)
	assert.ErrorIs(t, f.uc.Requeue(f.ctx, "txn-1"), domain.ErrInvalidState, "complete is terminal")

	status, err := f.uc.GetStatus(f.ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReconciliationComplete, status.ReconciliationStatus)
}

func TestReconcileOne_SkipsMerchantBalanceAlreadyApplied(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)
	f.addTxn(t, "txn-1", "m1", "l1", scenarioAmounts)

	// balance already carries txn-1 although no posting exists yet
	now := time.Now().UTC()
	b := &domain.MerchantBalance{ID: "bal-1", MerchantID: "m1", LocationID: "l1", CurrentBalance: money.Zero, CreatedAt: now}
	require.NoError(t, f.store.Balances().CreateMerchantBalance(f.ctx, b))
	b.Apply("txn-1", money.MustParse("108.00"), now)
	require.NoError(t, f.store.Balances().SaveMerchantBalance(f.ctx, b))

	res, err := f.uc.ReconcileOne(f.ctx, "txn-1")
	require.NoError(t, err)
	assert.False(t, res.AlreadyDone)

	assert.Equal(t, 6, f.entryCount(t, "txn-1"))
	assert.Equal(t, "108.00", f.merchantBalance(t, "m1", "l1").String())
	fees := f.feeBalances(t)
	assert.Equal(t, "3.50", fees.Processor.String())
	assert.Equal(t, "1.50", fees.Platform.String())
}

func TestReconcileOne_SkipsFeeBalanceAlreadyApplied(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)
	f.addTxn(t, "txn-1", "m1", "l1", scenarioAmounts)

	now := time.Now().UTC()
	fee, err := f.store.Balances().LockFeeBalance(f.ctx, domain.FeeKindProcessor)
	require.NoError(t, err)
	fee.Apply("txn-1", money.MustParse("3.50"), now)
	require.NoError(t, f.store.Balances().SaveFeeBalance(f.ctx, fee))

	_, err = f.uc.ReconcileOne(f.ctx, "txn-1")
	require.NoError(t, err)

	assert.Equal(t, "108.00", f.merchantBalance(t, "m1", "l1").String())
	fees := f.feeBalances(t)
	assert.Equal(t, "3.50", fees.Processor.String(), "processor fee counted once")
	assert.Equal(t, "1.50", fees.Platform.String())
	assert.Equal(t, domain.ReconciliationComplete, f.txn(t, "txn-1").ReconciliationStatus)
}

func TestReconcileOne_CancelledCallerLeavesTransactionPending(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl, withStrictPublisher())
	f.addTxn(t, "txn-1", "m1", "l1", scenarioAmounts)

	// no failure event either
	f.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	ctx, cancel := context.WithCancel(f.ctx)
	cancel()

	_, err := f.uc.ReconcileOne(ctx, "txn-1")
	assert.ErrorIs(t, err, context.Canceled)

	stored := f.txn(t, "txn-1")
	assert.Equal(t, domain.ReconciliationPending, stored.ReconciliationStatus)
	assert.Zero(t, stored.ReconciliationAttempts)
	assert.Nil(t, stored.ReconciliationError)

	_, err = f.uc.ReconcileOne(f.ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, 1, f.txn(t, "txn-1").ReconciliationAttempts)
}
