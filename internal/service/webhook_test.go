package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/skylark-travel/flightpay/internal/domain"
	"github.com/skylark-travel/flightpay/internal/repository"
	"github.com/stretchr/testify/require"
)

func newWebhookService(store *repository.Store) *WebhookService {
	ledger := NewLedgerService(store)
	booking := NewBookingService(ledger)
	return NewWebhookService(store, booking, nil, "secret", false)
}

func signPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func chargeSucceededPayload(eventID string, bookingID uuid.UUID, amount int64) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"type": "charge.succeeded",
		"data": {
			"booking_id": %q,
			"amount": %d,
			"currency": "USD",
			"payment_intent_id": "pi_1",
			"charge_id": "ch_1"
		}
	}`, eventID, bookingID, amount))
}

func TestWebhookReplayOfSameEventAppliesOnce(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := repository.NewStore(db)
	svc := newWebhookService(store)
	ctx := context.Background()

	booking := seedBooking(t, store, uuid.New(), domain.BookingStatusPending, 125_000)
	payload := chargeSucceededPayload("evt_charge_1", booking.ID, 125_000)
	sig := signPayload("secret", payload)

	res, err := svc.HandleInboundEvent(ctx, payload, sig)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, res.Outcome)

	// Redelivery of the identical event must not double-apply.
	res, err = svc.HandleInboundEvent(ctx, payload, sig)
	require.NoError(t, err)
	require.Equal(t, OutcomeAlreadyProcessed, res.Outcome)

	got, err := store.Queries().GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	require.Equal(t, domain.BookingStatusConfirmed, got.Status)
	require.Equal(t, domain.PaymentStatusPaid, got.PaymentStatus)
	require.NotNil(t, got.PaymentIntentID)
	require.Equal(t, "pi_1", *got.PaymentIntentID)

	entries, err := store.Queries().ListLedgerEntries(ctx, booking.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, domain.EntryTypeCharge, entries[0].EntryType)
	require.Equal(t, "1250.00", entries[0].Amount.StringFixed(2))

	history, err := store.Queries().ListBookingStatusHistory(ctx, booking.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, domain.BookingStatusPending, history[0].PrevStatus)
	require.Equal(t, domain.BookingStatusConfirmed, history[0].NextStatus)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := repository.NewStore(db)
	svc := newWebhookService(store)

	booking := seedBooking(t, store, uuid.New(), domain.BookingStatusPending, 10_000)
	payload := chargeSucceededPayload("evt_sig_1", booking.ID, 10_000)

	_, err := svc.HandleInboundEvent(context.Background(), payload, "sha256=bad")
	require.ErrorIs(t, err, ErrInvalidSignature)

	// Nothing may be persisted for a rejected delivery.
	_, err = store.Queries().GetGatewayEvent(context.Background(), "evt_sig_1")
	require.Error(t, err)
}

func TestWebhookRejectsMalformedEvent(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := repository.NewStore(db)
	svc := newWebhookService(store)

	payload := []byte(`{"type": "charge.succeeded", "data": {}}`)
	_, err := svc.HandleInboundEvent(context.Background(), payload, signPayload("secret", payload))
	require.ErrorIs(t, err, domain.ErrMalformedEvent)
}

func TestWebhookAcknowledgesUnknownEventType(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := repository.NewStore(db)
	svc := newWebhookService(store)
	ctx := context.Background()

	payload := []byte(`{"id": "evt_unknown_1", "type": "payout.created", "data": {}}`)
	res, err := svc.HandleInboundEvent(ctx, payload, signPayload("secret", payload))
	require.NoError(t, err)
	require.Equal(t, OutcomeIgnored, res.Outcome)

	ev, err := store.Queries().GetGatewayEvent(ctx, "evt_unknown_1")
	require.NoError(t, err)
	require.True(t, ev.Processed)
}

func TestWebhookFailureEventMovesBookingToFailed(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := repository.NewStore(db)
	svc := newWebhookService(store)
	ctx := context.Background()

	booking := seedBooking(t, store, uuid.New(), domain.BookingStatusPending, 50_000)
	payload := []byte(fmt.Sprintf(`{
		"id": "evt_fail_1",
		"type": "charge.failed",
		"data": {"booking_id": %q, "reason": "card_declined"}
	}`, booking.ID))

	res, err := svc.HandleInboundEvent(ctx, payload, signPayload("secret", payload))
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, res.Outcome)

	got, err := store.Queries().GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	require.Equal(t, domain.BookingStatusFailed, got.Status)

	entries, err := store.Queries().ListLedgerEntries(ctx, booking.ID)
	require.NoError(t, err)
	require.Empty(t, entries, "a failed charge must not produce ledger entries")
}

func TestWebhookDuplicateRefundIsSingleLedgerEntry(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := repository.NewStore(db)
	svc := newWebhookService(store)
	ctx := context.Background()

	booking := seedBooking(t, store, uuid.New(), domain.BookingStatusPending, 80_000)
	charge := chargeSucceededPayload("evt_charge_2", booking.ID, 80_000)
	_, err := svc.HandleInboundEvent(ctx, charge, signPayload("secret", charge))
	require.NoError(t, err)

	refund := []byte(fmt.Sprintf(`{
		"id": "evt_refund_1",
		"type": "charge.refunded",
		"data": {
			"booking_id": %q,
			"amount": 30000,
			"currency": "USD",
			"full_refund": false,
			"charge_id": "ch_1",
			"refund_id": "re_1"
		}
	}`, booking.ID))
	res, err := svc.HandleInboundEvent(ctx, refund, signPayload("secret", refund))
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, res.Outcome)

	// Same refund redelivered under a fresh event id: the ledger uniqueness
	// on (charge_id, refund_id) must absorb it.
	refundDup := []byte(fmt.Sprintf(`{
		"id": "evt_refund_1_redelivery",
		"type": "charge.refunded",
		"data": {
			"booking_id": %q,
			"amount": 30000,
			"currency": "USD",
			"full_refund": false,
			"charge_id": "ch_1",
			"refund_id": "re_1"
		}
	}`, booking.ID))
	_, err = svc.HandleInboundEvent(ctx, refundDup, signPayload("secret", refundDup))
	require.NoError(t, err)

	entries, err := store.Queries().ListLedgerEntries(ctx, booking.ID)
	require.NoError(t, err)

	var refunds int
	for _, e := range entries {
		if e.EntryType == domain.EntryTypePartialRefund {
			refunds++
		}
	}
	require.Equal(t, 1, refunds)

	got, err := store.Queries().GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	require.Equal(t, domain.BookingStatusPartiallyRefunded, got.Status)

	ledger := NewLedgerService(store)
	balance, err := ledger.BalanceFor(ctx, booking.ID)
	require.NoError(t, err)
	require.Equal(t, "800.00", balance.Charged.StringFixed(2))
	require.Equal(t, "300.00", balance.Refunded.StringFixed(2))
	require.Equal(t, "500.00", balance.Net.StringFixed(2))
}

func TestWebhookDisputeParksBooking(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := repository.NewStore(db)
	svc := newWebhookService(store)
	ctx := context.Background()

	booking := seedBooking(t, store, uuid.New(), domain.BookingStatusPending, 60_000)
	charge := chargeSucceededPayload("evt_charge_3", booking.ID, 60_000)
	_, err := svc.HandleInboundEvent(ctx, charge, signPayload("secret", charge))
	require.NoError(t, err)

	dispute := []byte(fmt.Sprintf(`{
		"id": "evt_dispute_1",
		"type": "charge.disputed",
		"data": {"booking_id": %q, "amount": 60000, "currency": "USD", "charge_id": "ch_1"}
	}`, booking.ID))
	res, err := svc.HandleInboundEvent(ctx, dispute, signPayload("secret", dispute))
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, res.Outcome)

	got, err := store.Queries().GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	require.Equal(t, domain.BookingStatusDisputed, got.Status)

	// No further automated transitions out of disputed.
	refund := []byte(fmt.Sprintf(`{
		"id": "evt_refund_after_dispute",
		"type": "charge.refunded",
		"data": {
			"booking_id": %q,
			"amount": 60000,
			"currency": "USD",
			"full_refund": true,
			"charge_id": "ch_1",
			"refund_id": "re_9"
		}
	}`, booking.ID))
	_, err = svc.HandleInboundEvent(ctx, refund, signPayload("secret", refund))
	require.ErrorIs(t, err, ErrInvalidTransition)
}
