package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"reconciliation-service/internal/domain"
	"reconciliation-service/internal/usecase"
)

// Sweeper is implemented by usecase.ReconciliationUsecase.
type Sweeper interface {
	Sweep(ctx context.Context) (*domain.SweepReport, error)
}

type SweepWorker struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *zap.Logger

	stopChan chan bool
	stopOnce sync.Once
	started  atomic.Bool
	done     chan struct{}
}

func NewSweepWorker(sweeper Sweeper, interval time.Duration, logger *zap.Logger) *SweepWorker {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &SweepWorker{
		sweeper:  sweeper,
		interval: interval,
		logger:   logger,
		stopChan: make(chan bool),
		done:     make(chan struct{}),
	}
}

// Start sweeps once immediately and then on every tick until Stop is called
// or ctx is cancelled. It blocks.
func (sw *SweepWorker) Start(ctx context.Context) {
	if !sw.started.CompareAndSwap(false, true) {
		return
	}
	defer close(sw.done)

	sw.logger.Info("Starting reconciliation sweep worker", zap.Duration("interval", sw.interval))

	sw.runSweep(ctx)

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sw.runSweep(ctx)

		case <-sw.stopChan:
			sw.logger.Info("Stopping reconciliation sweep worker")
			return

		case <-ctx.Done():
			sw.logger.Info("Context cancelled, stopping reconciliation sweep worker")
			return
		}
	}
}

func (sw *SweepWorker) runSweep(ctx context.Context) {
	report, err := sw.sweeper.Sweep(ctx)
	if err != nil {
		if errors.Is(err, usecase.ErrSweepInProgress) {
			sw.logger.Info("Previous sweep still running, skipping tick")
			return
		}
		if errors.Is(err, context.Canceled) {
			return
		}
		sw.logger.Error("Sweep failed", zap.Error(err))
	}
	if report != nil && report.Failed > 0 {
		sw.logger.Warn("Sweep finished with failures",
			zap.Int("failed", report.Failed),
			zap.Int("processed", report.Processed),
		)
	}
}

// Stop signals the loop to exit and waits for an in-flight sweep to return.
func (sw *SweepWorker) Stop() {
	sw.stopOnce.Do(func() { close(sw.stopChan) })
	if sw.started.Load() {
		<-sw.done
	}
}
