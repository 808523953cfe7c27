package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/skylark-travel/flightpay/internal/domain"
	"github.com/skylark-travel/flightpay/internal/gateway"
	"github.com/skylark-travel/flightpay/internal/models"
	"github.com/skylark-travel/flightpay/internal/observability"
	"go.uber.org/zap"
)

const (
	reconciliationLeaseKey = "flightpay:reconciliation:lease"
	reconciliationLeaseTTL = 5 * time.Minute
)

// Summary reports one reconciliation pass.
type Summary struct {
	JobID     uuid.UUID     `json:"job_id"`
	Scanned   int           `json:"scanned"`
	Fixed     int           `json:"fixed"`
	Errors    int           `json:"errors"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// ReconciliationService re-derives truth from the external gateway and
// repairs drift through the same transactional apply path the webhook
// dispatcher uses, so reconciliation can never apply an update the live
// path would have rejected.
//
// Passes are strictly serialized: a Redis lease is the durable single-flight
// mechanism across instances, with an in-process flag guarding the degraded
// no-Redis mode.
type ReconciliationService struct {
	store    QueryStore
	gw       gateway.Gateway
	webhook  *WebhookService
	locker   *redislock.Client
	inFlight atomic.Bool
}

func NewReconciliationService(store QueryStore, gw gateway.Gateway, webhook *WebhookService, locker *redislock.Client) *ReconciliationService {
	return &ReconciliationService{
		store:   store,
		gw:      gw,
		webhook: webhook,
		locker:  locker,
	}
}

// Running reports whether a pass is currently in flight in this process.
func (s *ReconciliationService) Running() bool {
	return s.inFlight.Load()
}

// Run executes one bounded reconciliation pass. A concurrent call observes
// ErrReconciliationRunning. Item failures are logged and counted, not fatal
// to the batch; cancellation lets the current item finish and stops there.
func (s *ReconciliationService) Run(ctx context.Context, batchSize int32) (*Summary, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, ErrReconciliationRunning
	}
	defer s.inFlight.Store(false)

	if s.locker != nil {
		lock, err := s.locker.Obtain(ctx, reconciliationLeaseKey, reconciliationLeaseTTL, nil)
		if err == redislock.ErrNotObtained {
			return nil, ErrReconciliationRunning
		}
		if err != nil {
			zap.L().Warn("reconciliation lease unavailable, falling back to process-local guard", zap.Error(err))
		} else {
			defer func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if releaseErr := lock.Release(releaseCtx); releaseErr != nil {
					zap.L().Warn("release reconciliation lease", zap.Error(releaseErr))
				}
			}()
		}
	}

	summary := &Summary{JobID: uuid.New(), StartedAt: time.Now().UTC()}
	defer func() {
		summary.Duration = time.Since(summary.StartedAt)
	}()

	bookings, err := s.store.Queries().ListBookingsForReconciliation(ctx, batchSize)
	if err != nil {
		observability.IncrementWorkerRun("reconciliation", "failed")
		return summary, err
	}

	for _, b := range bookings {
		select {
		case <-ctx.Done():
			zap.L().Info("reconciliation pass canceled",
				zap.Int("scanned", summary.Scanned), zap.Int("fixed", summary.Fixed))
			observability.IncrementWorkerRun("reconciliation", "canceled")
			return summary, ctx.Err()
		default:
		}

		summary.Scanned++
		fixed, err := s.reconcileBooking(ctx, b)
		summary.Fixed += fixed
		if err != nil {
			summary.Errors++
			zap.L().Error("reconcile booking failed",
				zap.Error(err), zap.String("booking_id", b.ID.String()))
		}
	}

	observability.IncrementWorkerRun("reconciliation", "success")
	observability.AddReconciliationFixes(summary.Fixed)
	zap.L().Info("reconciliation pass complete",
		zap.String("job_id", summary.JobID.String()),
		zap.Int("scanned", summary.Scanned),
		zap.Int("fixed", summary.Fixed),
		zap.Int("errors", summary.Errors),
		zap.Duration("duration", time.Since(summary.StartedAt)),
	)
	return summary, nil
}

// reconcileBooking diffs one booking against the gateway and replays any
// missing events through the shared apply path. Returns the number of
// repairs actually applied.
func (s *ReconciliationService) reconcileBooking(ctx context.Context, b models.Booking) (int, error) {
	if b.PaymentIntentID == nil {
		return 0, nil
	}

	intent, err := s.gw.GetPaymentIntent(ctx, *b.PaymentIntentID)
	if err != nil {
		if errors.Is(err, gateway.ErrIntentNotFound) {
			zap.L().Warn("booking references unknown payment intent",
				zap.String("booking_id", b.ID.String()), zap.String("payment_intent_id", *b.PaymentIntentID))
			return 0, nil
		}
		return 0, err
	}

	events, err := s.deriveMissingEvents(ctx, b, intent)
	if err != nil {
		return 0, err
	}

	fixed := 0
	for _, ev := range events {
		res, err := s.webhook.ProcessEvent(ctx, ev, nil)
		if err != nil {
			return fixed, err
		}
		if res.Outcome == OutcomeApplied {
			fixed++
		}
	}
	return fixed, nil
}

// deriveMissingEvents computes, in apply order, the gateway events whose
// effects are absent from internal state: the charge outcome first, then
// refunds missing from the ledger, then an open dispute.
func (s *ReconciliationService) deriveMissingEvents(ctx context.Context, b models.Booking, intent *gateway.PaymentIntent) ([]domain.Event, error) {
	var events []domain.Event
	queries := s.store.Queries()
	status := normalizeStatus(b.Status)

	switch intent.Status {
	case gateway.IntentStatusSucceeded:
		if status == domain.BookingStatusPending && intent.ChargeEventID != "" {
			events = append(events, domain.ChargeSucceeded{
				ID:              intent.ChargeEventID,
				BookingID:       b.ID,
				Amount:          intent.Amount,
				Currency:        intent.Currency,
				PaymentIntentID: intent.ID,
				ChargeID:        intent.ChargeID,
			})
		}
	case gateway.IntentStatusFailed:
		if status == domain.BookingStatusPending && intent.FailureEventID != "" {
			events = append(events, domain.ChargeFailed{
				ID:        intent.FailureEventID,
				BookingID: b.ID,
				Reason:    intent.FailureReason,
			})
		}
	}

	for _, r := range intent.Refunds {
		if r.EventID == "" {
			continue
		}
		count, err := queries.CountLedgerEntriesByEvent(ctx, r.EventID)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			continue
		}
		events = append(events, domain.ChargeRefunded{
			ID:         r.EventID,
			BookingID:  b.ID,
			Amount:     r.Amount,
			Currency:   intent.Currency,
			FullRefund: r.Full,
			ChargeID:   intent.ChargeID,
			RefundID:   r.ID,
		})
	}

	if intent.Disputed && status != domain.BookingStatusDisputed && intent.DisputeEventID != "" {
		events = append(events, domain.ChargeDisputed{
			ID:        intent.DisputeEventID,
			BookingID: b.ID,
			Amount:    intent.DisputeAmount,
			Currency:  intent.Currency,
			ChargeID:  intent.ChargeID,
		})
	}

	return events, nil
}
