package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/skylark-travel/flightpay/internal/domain"
	"github.com/skylark-travel/flightpay/internal/models"
	"github.com/skylark-travel/flightpay/internal/repository"
	"go.uber.org/zap"
)

// bookingTransitions is the closed edge set of the booking state machine.
// FAILED, REFUNDED and DISPUTED are terminal for automated processing.
var bookingTransitions = map[string]map[string]struct{}{
	domain.BookingStatusPending: {
		domain.BookingStatusConfirmed: {},
		domain.BookingStatusFailed:    {},
		domain.BookingStatusDisputed:  {},
	},
	domain.BookingStatusConfirmed: {
		domain.BookingStatusRefunded:          {},
		domain.BookingStatusPartiallyRefunded: {},
		domain.BookingStatusDisputed:          {},
	},
	domain.BookingStatusPartiallyRefunded: {
		domain.BookingStatusRefunded: {},
		domain.BookingStatusDisputed: {},
	},
	domain.BookingStatusFailed:   {},
	domain.BookingStatusRefunded: {},
	domain.BookingStatusDisputed: {},
}

func normalizeStatus(status string) string {
	return strings.ToUpper(strings.TrimSpace(status))
}

func canTransition(current, next string) bool {
	nextStates, ok := bookingTransitions[normalizeStatus(current)]
	if !ok {
		return false
	}
	_, ok = nextStates[normalizeStatus(next)]
	return ok
}

func isTerminalStatus(status string) bool {
	switch normalizeStatus(status) {
	case domain.BookingStatusFailed, domain.BookingStatusRefunded, domain.BookingStatusDisputed:
		return true
	default:
		return false
	}
}

// BookingService applies verified payment events to bookings. Every method
// taking a *repository.Queries runs inside the dispatcher's transaction, so
// booking status, history and ledger writes commit or roll back together.
type BookingService struct {
	ledger *LedgerService
}

func NewBookingService(ledger *LedgerService) *BookingService {
	return &BookingService{ledger: ledger}
}

// transition moves the booking along a legal edge and records a history row.
// A transition into the current status is a no-op.
func (s *BookingService) transition(ctx context.Context, qtx *repository.Queries, b models.Booking, nextStatus, paymentStatus, reason string) error {
	if normalizeStatus(b.Status) == normalizeStatus(nextStatus) {
		return nil
	}
	if !canTransition(b.Status, nextStatus) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, nextStatus)
	}

	rows, err := qtx.UpdateBookingStatus(ctx, b.ID, nextStatus, paymentStatus)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	if err := requireExactlyOne(rows, "update booking status"); err != nil {
		return err
	}

	if err := qtx.InsertBookingStatusHistory(ctx, b.ID, b.Status, nextStatus, reason); err != nil {
		return err
	}
	return nil
}

// ApplyCharge confirms a booking from a charge-succeeded event. Already
// confirmed bookings are an idempotent no-op; a duplicate charge event must
// not re-confirm or re-charge.
func (s *BookingService) ApplyCharge(ctx context.Context, qtx *repository.Queries, ev domain.ChargeSucceeded) error {
	b, err := qtx.GetBookingForUpdate(ctx, ev.BookingID)
	if err != nil {
		return err
	}

	switch normalizeStatus(b.Status) {
	case domain.BookingStatusConfirmed:
		return nil
	case domain.BookingStatusPending:
		// fall through to the confirm path
	default:
		return fmt.Errorf("%w: cannot apply charge in status %s", ErrInvalidTransition, b.Status)
	}

	chargeID := ev.ChargeID
	entry := repository.InsertLedgerEntryParams{
		BookingID:        b.ID,
		UserID:           b.UserID,
		EntryType:        domain.EntryTypeCharge,
		Amount:           domain.NewMoney(ev.Amount, ev.Currency).ToDecimal(),
		Currency:         ev.Currency,
		ExternalEventID:  ev.ID,
		ExternalChargeID: &chargeID,
		Description:      "payment captured",
	}
	if _, err := s.ledger.Append(ctx, qtx, entry); err != nil && !errors.Is(err, ErrDuplicateEntry) {
		return err
	}

	if _, err := qtx.SetBookingPaymentIntent(ctx, b.ID, ev.PaymentIntentID); err != nil {
		return err
	}

	return s.transition(ctx, qtx, b, domain.BookingStatusConfirmed, domain.PaymentStatusPaid, "charge_succeeded")
}

// ApplyFailure moves a pending booking to failed. Already failed is a no-op.
func (s *BookingService) ApplyFailure(ctx context.Context, qtx *repository.Queries, ev domain.ChargeFailed) error {
	b, err := qtx.GetBookingForUpdate(ctx, ev.BookingID)
	if err != nil {
		return err
	}

	if normalizeStatus(b.Status) == domain.BookingStatusFailed {
		return nil
	}
	if normalizeStatus(b.Status) != domain.BookingStatusPending {
		return fmt.Errorf("%w: cannot apply failure in status %s", ErrInvalidTransition, b.Status)
	}

	reason := "charge_failed"
	if ev.Reason != "" {
		reason = "charge_failed: " + ev.Reason
	}
	return s.transition(ctx, qtx, b, domain.BookingStatusFailed, domain.PaymentStatusFailed, reason)
}

// ApplyRefund records a refund entry and moves the booking to refunded or
// partially refunded. A duplicate refund event for the same external refund
// id is detected by the ledger uniqueness constraint and treated as already
// applied, skipping the transition as well.
func (s *BookingService) ApplyRefund(ctx context.Context, qtx *repository.Queries, ev domain.ChargeRefunded) error {
	b, err := qtx.GetBookingForUpdate(ctx, ev.BookingID)
	if err != nil {
		return err
	}

	switch normalizeStatus(b.Status) {
	case domain.BookingStatusConfirmed, domain.BookingStatusPartiallyRefunded:
		// refundable
	case domain.BookingStatusRefunded:
		// Fully refunded already. Redelivered refund events land here; the
		// ledger dedupe below decides whether anything new happened.
	default:
		return fmt.Errorf("%w: cannot apply refund in status %s", ErrInvalidTransition, b.Status)
	}

	entryType := domain.EntryTypePartialRefund
	nextStatus := domain.BookingStatusPartiallyRefunded
	paymentStatus := domain.PaymentStatusPartiallyRefunded
	if ev.FullRefund {
		entryType = domain.EntryTypeRefund
		nextStatus = domain.BookingStatusRefunded
		paymentStatus = domain.PaymentStatusRefunded
	}

	chargeID := ev.ChargeID
	refundID := ev.RefundID
	entry := repository.InsertLedgerEntryParams{
		BookingID:        b.ID,
		UserID:           b.UserID,
		EntryType:        entryType,
		Amount:           domain.NewMoney(ev.Amount, ev.Currency).ToDecimal(),
		Currency:         ev.Currency,
		ExternalEventID:  ev.ID,
		ExternalChargeID: &chargeID,
		ExternalRefundID: &refundID,
		Description:      "gateway refund",
	}
	if _, err := s.ledger.Append(ctx, qtx, entry); err != nil {
		if errors.Is(err, ErrDuplicateEntry) {
			return nil
		}
		return err
	}

	return s.transition(ctx, qtx, b, nextStatus, paymentStatus, "charge_refunded")
}

// ApplyDispute records an adjustment entry and parks the booking in the
// disputed state, which requires manual resolution. Valid from any
// non-terminal state.
func (s *BookingService) ApplyDispute(ctx context.Context, qtx *repository.Queries, ev domain.ChargeDisputed) error {
	b, err := qtx.GetBookingForUpdate(ctx, ev.BookingID)
	if err != nil {
		return err
	}

	if normalizeStatus(b.Status) == domain.BookingStatusDisputed {
		return nil
	}
	if isTerminalStatus(b.Status) {
		return fmt.Errorf("%w: cannot apply dispute in status %s", ErrInvalidTransition, b.Status)
	}

	if ev.Amount > 0 {
		chargeID := ev.ChargeID
		entry := repository.InsertLedgerEntryParams{
			BookingID:        b.ID,
			UserID:           b.UserID,
			EntryType:        domain.EntryTypeAdjustment,
			Amount:           domain.NewMoney(ev.Amount, ev.Currency).ToDecimal(),
			Currency:         ev.Currency,
			ExternalEventID:  ev.ID,
			ExternalChargeID: &chargeID,
			Description:      "chargeback opened",
		}
		if _, err := s.ledger.Append(ctx, qtx, entry); err != nil && !errors.Is(err, ErrDuplicateEntry) {
			return err
		}
	} else {
		zap.L().Warn("dispute event without amount", zap.String("event_id", ev.ID), zap.String("booking_id", b.ID.String()))
	}

	return s.transition(ctx, qtx, b, domain.BookingStatusDisputed, domain.PaymentStatusDisputed, "charge_disputed")
}
