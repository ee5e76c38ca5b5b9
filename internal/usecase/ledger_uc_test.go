package usecase_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reconciliation-service/internal/domain"
	"reconciliation-service/internal/usecase"
)

func TestLedgerUsecase_ListEntries(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("txn-%d", i)
		f.addTxn(t, id, "m1", "l1", scenarioAmounts)
		_, err := f.uc.ReconcileOne(f.ctx, id)
		require.NoError(t, err)
	}
	ledger := usecase.NewLedgerUsecase(f.store.Entries(), f.store.Accounts())

	all, err := ledger.ListEntries(f.ctx, domain.EntryFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 18, "default limit covers every line")

	txnID, nobody := "txn-1", "nobody"
	byTxn, err := ledger.ListEntries(f.ctx, domain.EntryFilter{TransactionID: &txnID})
	require.NoError(t, err)
	assert.Len(t, byTxn, 6)
	for _, e := range byTxn {
		assert.Equal(t, "txn-1", e.TransactionID)
	}

	paged, err := ledger.ListEntries(f.ctx, domain.EntryFilter{Limit: 4, Offset: 16})
	require.NoError(t, err)
	assert.Len(t, paged, 2)

	none, err := ledger.ListEntries(f.ctx, domain.EntryFilter{MerchantID: &nobody})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestLedgerUsecase_ListEntriesRejectsBadFilter(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)
	ledger := usecase.NewLedgerUsecase(f.store.Entries(), f.store.Accounts())

	_, err := ledger.ListEntries(f.ctx, domain.EntryFilter{Offset: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	from := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(-time.Hour)
	_, err = ledger.ListEntries(f.ctx, domain.EntryFilter{From: &from, To: &to})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLedgerUsecase_GetPosting(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)
	f.addTxn(t, "txn-1", "m1", "l1", scenarioAmounts)
	ledger := usecase.NewLedgerUsecase(f.store.Entries(), f.store.Accounts())

	_, err := ledger.GetPosting(f.ctx, "txn-1")
	assert.ErrorIs(t, err, domain.ErrNotFound, "nothing posted before reconciliation")

	_, err = f.uc.ReconcileOne(f.ctx, "txn-1")
	require.NoError(t, err)

	posting, err := ledger.GetPosting(f.ctx, "txn-1")
	require.NoError(t, err)
	assert.Len(t, posting.Entries, domain.PostingLineCount)
	assert.Equal(t, "113.00", posting.TotalDebit.String())
	assert.Equal(t, "234.00", posting.TotalCredit.String())

	accounts, err := ledger.ListAccounts(f.ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, len(domain.DefaultAccounts))
}
