package worker

import (
	"context"
	"sync"
	"time"

	"github.com/skylark-travel/flightpay/internal/observability"
	"github.com/skylark-travel/flightpay/internal/service"
	"go.uber.org/zap"
)

// CreditExpiryWorker periodically marks past-expiry credit grants as fully
// used so they drop out of the spendable balance.
type CreditExpiryWorker struct {
	svc      *service.CreditService
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCreditExpiryWorker constructs a worker with a default hourly sweep.
func NewCreditExpiryWorker(svc *service.CreditService) *CreditExpiryWorker {
	return &CreditExpiryWorker{
		svc:      svc,
		interval: time.Hour,
		stopCh:   make(chan struct{}),
	}
}

// WithInterval updates the sweep interval.
func (w *CreditExpiryWorker) WithInterval(interval time.Duration) *CreditExpiryWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Start blocks and sweeps at the configured interval.
func (w *CreditExpiryWorker) Start(ctx context.Context) {
	zap.L().Info("credit expiry worker starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("credit expiry worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("credit expiry worker stop signal received")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// Stop signals the worker to stop.
func (w *CreditExpiryWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *CreditExpiryWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *CreditExpiryWorker) sweep(ctx context.Context) {
	if _, err := w.svc.ProcessExpiredCredits(ctx); err != nil {
		observability.IncrementWorkerRun("credit_expiry", "failed")
		zap.L().Error("credit expiry sweep failed", zap.Error(err))
		return
	}
	observability.IncrementWorkerRun("credit_expiry", "success")
}
