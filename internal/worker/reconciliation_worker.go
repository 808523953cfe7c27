package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/skylark-travel/flightpay/internal/service"
	"go.uber.org/zap"
)

// ReconciliationWorker runs periodic drift-repair passes, and accepts
// out-of-band manual triggers. The concurrency cap of one pass at a time is
// enforced by the service's lease, not here; the worker only schedules.
type ReconciliationWorker struct {
	svc       *service.ReconciliationService
	interval  time.Duration
	batchSize int32
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewReconciliationWorker constructs a worker with an hourly default interval.
func NewReconciliationWorker(svc *service.ReconciliationService) *ReconciliationWorker {
	return &ReconciliationWorker{
		svc:       svc,
		interval:  time.Hour,
		batchSize: 100,
		stopCh:    make(chan struct{}),
	}
}

// WithInterval updates the run interval.
func (w *ReconciliationWorker) WithInterval(interval time.Duration) *ReconciliationWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// WithBatchSize updates the per-pass scan bound.
func (w *ReconciliationWorker) WithBatchSize(size int32) *ReconciliationWorker {
	if size > 0 {
		w.batchSize = size
	}
	return w
}

// Start blocks and runs reconciliation at the configured interval.
func (w *ReconciliationWorker) Start(ctx context.Context) {
	zap.L().Info("reconciliation worker starting",
		zap.Duration("interval", w.interval), zap.Int32("batch", w.batchSize))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run once immediately at startup.
	w.runOnce(ctx, w.batchSize)

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("reconciliation worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("reconciliation worker stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx, w.batchSize)
		}
	}
}

// Stop stops the running worker loop.
func (w *ReconciliationWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *ReconciliationWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

// Trigger enqueues one out-of-band pass with an optional batch-size
// override and returns its job id. The pass runs asynchronously; the
// service's lease still rejects it if a pass is already in flight.
func (w *ReconciliationWorker) Trigger(batchSize int32) (uuid.UUID, error) {
	if w.svc.Running() {
		return uuid.Nil, service.ErrReconciliationRunning
	}
	if batchSize <= 0 {
		batchSize = w.batchSize
	}

	jobID := uuid.New()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		summary, err := w.svc.Run(ctx, batchSize)
		if err != nil {
			if errors.Is(err, service.ErrReconciliationRunning) {
				zap.L().Info("manual reconciliation rejected, pass already running", zap.String("job_id", jobID.String()))
				return
			}
			zap.L().Error("manual reconciliation failed", zap.Error(err), zap.String("job_id", jobID.String()))
			return
		}
		zap.L().Info("manual reconciliation complete",
			zap.String("job_id", jobID.String()),
			zap.Int("scanned", summary.Scanned),
			zap.Int("fixed", summary.Fixed),
			zap.Int("errors", summary.Errors),
		)
	}()
	return jobID, nil
}

func (w *ReconciliationWorker) runOnce(ctx context.Context, batchSize int32) {
	if _, err := w.svc.Run(ctx, batchSize); err != nil {
		if errors.Is(err, service.ErrReconciliationRunning) {
			zap.L().Info("scheduled reconciliation skipped, pass already running")
			return
		}
		zap.L().Error("reconciliation run failed", zap.Error(err))
	}
}
