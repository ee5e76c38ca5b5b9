package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"reconciliation-service/internal/domain"
	"reconciliation-service/internal/pub"
	"reconciliation-service/internal/repository"
)

// ErrSweepInProgress is returned when a sweep is requested while one runs.
var ErrSweepInProgress = errors.New("sweep already in progress")

type SweepOptions struct {
	BatchSize   int
	Concurrency int
}

// ReconciliationUsecase drives transactions through posting and balance
// application. ReconcileOne is the only path that writes; Sweep and the
// inline triggers both go through it.
type ReconciliationUsecase struct {
	uow        repository.UnitOfWork
	accounts   AccountResolver
	engine     *PostingEngine
	aggregator *BalanceAggregator
	publisher  pub.Publisher
	cache      BalanceCache
	logger     *zap.Logger

	batchSize   int
	concurrency int
	sweepMu     sync.Mutex
	now         func() time.Time
}

func NewReconciliationUsecase(
	uow repository.UnitOfWork,
	accounts AccountResolver,
	engine *PostingEngine,
	aggregator *BalanceAggregator,
	publisher pub.Publisher,
	cache BalanceCache,
	logger *zap.Logger,
	opts SweepOptions,
) *ReconciliationUsecase {
	if publisher == nil {
		publisher = pub.NopPublisher{}
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &ReconciliationUsecase{
		uow:         uow,
		accounts:    accounts,
		engine:      engine,
		aggregator:  aggregator,
		publisher:   publisher,
		cache:       cache,
		logger:      logger,
		batchSize:   opts.BatchSize,
		concurrency: opts.Concurrency,
		now:         time.Now,
	}
}

// ReconcileOne posts and applies one transaction atomically and marks it
// complete. An already complete transaction returns AlreadyDone with no
// error. On failure the unit is rolled back, the transaction is marked
// failed in a separate write, and the error is returned.
func (uc *ReconciliationUsecase) ReconcileOne(ctx context.Context, id string) (result *domain.ReconcileResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while reconciling %s: %v", id, r)
			result = nil
			uc.recordFailure(ctx, id, nil, err)
		}
	}()

	accounts, err := uc.accounts.ResolveAll(ctx)
	if err != nil {
		if cancelled(ctx, err) {
			return nil, err
		}
		uc.recordFailure(ctx, id, nil, err)
		return nil, err
	}

	var (
		txn         *domain.Transaction
		posting     *domain.PostingResult
		alreadyDone bool
	)

	err = uc.uow.WithinTx(ctx, func(ctx context.Context, s repository.Store) error {
		t, err := s.Transactions().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		txn = t

		if t.IsReconciled() {
			alreadyDone = true
			return nil
		}
		if !t.IsCompleted() {
			return fmt.Errorf("transaction %s has status %s: %w", id, t.Status, domain.ErrTransactionNotCompleted)
		}

		posting, err = uc.engine.Post(ctx, s, t, accounts)
		if err != nil {
			return err
		}
		if err := uc.aggregator.Apply(ctx, s, t, posting); err != nil {
			return err
		}
		return s.Transactions().MarkComplete(ctx, id, uc.now().UTC())
	})

	if err != nil {
		if errors.Is(err, domain.ErrNotFound) && txn == nil || errors.Is(err, domain.ErrTransactionNotCompleted) {
			uc.logger.Warn("transaction not reconcilable",
				zap.String("transaction_id", id),
				zap.Error(err),
			)
			return nil, err
		}
		if cancelled(ctx, err) {
			uc.logger.Info("reconciliation interrupted, transaction left as is",
				zap.String("transaction_id", id),
				zap.Error(err),
			)
			return nil, err
		}
		uc.recordFailure(ctx, id, txn, err)
		return nil, err
	}

	if alreadyDone {
		uc.logger.Debug("transaction already reconciled", zap.String("transaction_id", id))
		return &domain.ReconcileResult{
			TransactionID: id,
			Status:        domain.ReconciliationComplete,
			AlreadyDone:   true,
		}, nil
	}

	uc.logger.Info("transaction reconciled",
		zap.String("transaction_id", id),
		zap.String("merchant_id", txn.MerchantID),
		zap.String("location_id", txn.LocationID),
		zap.String("net_amount", txn.NetAmount.String()),
	)

	if uc.cache != nil {
		uc.cache.InvalidateMerchant(context.WithoutCancel(ctx), txn.MerchantID, txn.LocationID)
	}
	uc.publish(ctx, domain.NewReconciliationEvent(domain.EventReconciliationCompleted, id, txn, nil, uc.now()))

	return &domain.ReconcileResult{
		TransactionID: id,
		Status:        domain.ReconciliationComplete,
		Posting:       posting,
	}, nil
}

// cancelled reports whether err comes from the caller giving up rather than
// from the transaction itself.
func cancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil && errors.Is(err, ctx.Err())
}

func (uc *ReconciliationUsecase) recordFailure(ctx context.Context, id string, txn *domain.Transaction, cause error) {
	retryable := domain.IsRetryable(cause)
	fields := []zap.Field{
		zap.String("transaction_id", id),
		zap.String("error_kind", domain.ErrorKind(cause)),
		zap.Bool("retryable", retryable),
		zap.Error(cause),
	}

	if errors.Is(cause, domain.ErrLedgerImbalance) {
		uc.logger.Error("ledger imbalance detected", append(fields, zap.Bool("alert", true))...)
	} else {
		uc.logger.Error("reconciliation failed", fields...)
	}

	// the unit's ctx may already be cancelled; the failure must still be recorded
	writeCtx := context.WithoutCancel(ctx)
	if err := uc.uow.Transactions().MarkFailed(writeCtx, id, cause.Error(), retryable, uc.now().UTC()); err != nil {
		uc.logger.Warn("failed to mark transaction failed",
			zap.String("transaction_id", id),
			zap.Error(err),
		)
	}

	uc.publish(writeCtx, domain.NewReconciliationEvent(domain.EventReconciliationFailed, id, txn, cause, uc.now()))
}

func (uc *ReconciliationUsecase) publish(ctx context.Context, evt *domain.ReconciliationEvent) {
	if err := uc.publisher.Publish(context.WithoutCancel(ctx), evt); err != nil {
		uc.logger.Warn("failed to publish reconciliation event",
			zap.String("transaction_id", evt.TransactionID),
			zap.String("event_type", evt.EventType),
			zap.Error(err),
		)
	}
}

// Sweep reconciles every candidate transaction once. A failure on one
// transaction is recorded in the report and never stops the run.
func (uc *ReconciliationUsecase) Sweep(ctx context.Context) (*domain.SweepReport, error) {
	if !uc.sweepMu.TryLock() {
		return nil, ErrSweepInProgress
	}
	defer uc.sweepMu.Unlock()

	report := &domain.SweepReport{
		StartedAt: uc.now().UTC(),
		Failures:  []domain.SweepFailure{},
	}
	var mu sync.Mutex

	uc.logger.Info("reconciliation sweep started",
		zap.Int("batch_size", uc.batchSize),
		zap.Int("concurrency", uc.concurrency),
	)

	cursor := ""
	var runErr error
	for {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		ids, err := uc.uow.Transactions().ListReconcilable(ctx, cursor, uc.batchSize)
		if err != nil {
			runErr = fmt.Errorf("failed to list reconcilable transactions: %w", err)
			break
		}
		if len(ids) == 0 {
			break
		}
		cursor = ids[len(ids)-1]

		var g errgroup.Group
		g.SetLimit(uc.concurrency)

		for _, id := range ids {
			if ctx.Err() != nil {
				break
			}
			id := id
			g.Go(func() error {
				res, err := uc.ReconcileOne(ctx, id)

				mu.Lock()
				defer mu.Unlock()
				report.Processed++
				switch {
				case err != nil:
					report.Failed++
					report.Failures = append(report.Failures, domain.SweepFailure{
						TransactionID: id,
						Error:         err.Error(),
						Retryable:     domain.IsRetryable(err),
					})
				case res.AlreadyDone:
					report.Skipped++
				default:
					report.Succeeded++
				}
				return nil
			})
		}
		_ = g.Wait()

		if len(ids) < uc.batchSize {
			break
		}
	}

	report.FinishedAt = uc.now().UTC()

	uc.logger.Info("reconciliation sweep finished",
		zap.Int("processed", report.Processed),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
	)

	return report, runErr
}

// Requeue returns a failed transaction to pending so the next sweep retries it.
func (uc *ReconciliationUsecase) Requeue(ctx context.Context, id string) error {
	if err := uc.uow.Transactions().Requeue(ctx, id, uc.now().UTC()); err != nil {
		return err
	}

	uc.logger.Info("transaction requeued for reconciliation", zap.String("transaction_id", id))

	txn, _ := uc.uow.Transactions().GetByID(ctx, id)
	uc.publish(ctx, domain.NewReconciliationEvent(domain.EventReconciliationRequeued, id, txn, nil, uc.now()))
	return nil
}

// GetStatus returns the transaction with its reconciliation fields.
func (uc *ReconciliationUsecase) GetStatus(ctx context.Context, id string) (*domain.Transaction, error) {
	return uc.uow.Transactions().GetByID(ctx, id)
}
