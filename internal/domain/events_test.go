package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEventChargeSucceeded(t *testing.T) {
	bookingID := uuid.New()
	payload := []byte(`{
		"id": "evt_1",
		"type": "charge.succeeded",
		"data": {
			"booking_id": "` + bookingID.String() + `",
			"amount": 125000,
			"currency": "usd",
			"payment_intent_id": "pi_1",
			"charge_id": "ch_1"
		}
	}`)

	ev, err := DecodeEvent(payload)
	require.NoError(t, err)

	charge, ok := ev.(ChargeSucceeded)
	require.True(t, ok)
	assert.Equal(t, "evt_1", charge.EventID())
	assert.Equal(t, EventTypeChargeSucceeded, charge.EventType())
	assert.Equal(t, bookingID, charge.BookingID)
	assert.Equal(t, int64(125_000), charge.Amount)
	assert.Equal(t, "USD", charge.Currency, "currency is normalized to upper case")
	assert.Equal(t, "pi_1", charge.PaymentIntentID)
	assert.Equal(t, "ch_1", charge.ChargeID)
}

func TestDecodeEventChargeRefunded(t *testing.T) {
	bookingID := uuid.New()
	payload := []byte(`{
		"id": "evt_2",
		"type": "charge.refunded",
		"data": {
			"booking_id": "` + bookingID.String() + `",
			"amount": 30000,
			"currency": "USD",
			"full_refund": false,
			"charge_id": "ch_1",
			"refund_id": "re_1"
		}
	}`)

	ev, err := DecodeEvent(payload)
	require.NoError(t, err)

	refund, ok := ev.(ChargeRefunded)
	require.True(t, ok)
	assert.Equal(t, int64(30_000), refund.Amount)
	assert.False(t, refund.FullRefund)
	assert.Equal(t, "re_1", refund.RefundID)
}

func TestDecodeEventMalformed(t *testing.T) {
	bookingID := uuid.New().String()
	tests := []struct {
		name    string
		payload string
		wantErr error
	}{
		{"not json", `{`, ErrMalformedEvent},
		{"missing id", `{"type":"charge.succeeded","data":{}}`, ErrMalformedEvent},
		{"missing type", `{"id":"evt_1","data":{}}`, ErrMalformedEvent},
		{"blank id", `{"id":"  ","type":"charge.succeeded","data":{}}`, ErrMalformedEvent},
		{
			"invalid booking id",
			`{"id":"evt_1","type":"charge.failed","data":{"booking_id":"not-a-uuid"}}`,
			ErrMalformedEvent,
		},
		{
			"zero charge amount",
			`{"id":"evt_1","type":"charge.succeeded","data":{"booking_id":"` + bookingID + `","amount":0,"payment_intent_id":"pi_1"}}`,
			ErrMalformedEvent,
		},
		{
			"missing payment intent",
			`{"id":"evt_1","type":"charge.succeeded","data":{"booking_id":"` + bookingID + `","amount":100}}`,
			ErrMalformedEvent,
		},
		{
			"negative refund amount",
			`{"id":"evt_1","type":"charge.refunded","data":{"booking_id":"` + bookingID + `","amount":-5,"refund_id":"re_1"}}`,
			ErrMalformedEvent,
		},
		{
			"missing refund id",
			`{"id":"evt_1","type":"charge.refunded","data":{"booking_id":"` + bookingID + `","amount":100}}`,
			ErrMalformedEvent,
		},
		{
			"unknown type",
			`{"id":"evt_1","type":"payout.created","data":{}}`,
			ErrUnknownEventType,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEvent([]byte(tt.payload))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestEncodeEventRoundTrip(t *testing.T) {
	events := []Event{
		ChargeSucceeded{
			ID:              "evt_s",
			BookingID:       uuid.New(),
			Amount:          50_000,
			Currency:        "USD",
			PaymentIntentID: "pi_1",
			ChargeID:        "ch_1",
		},
		ChargeFailed{ID: "evt_f", BookingID: uuid.New(), Reason: "card_declined"},
		ChargeRefunded{
			ID:         "evt_r",
			BookingID:  uuid.New(),
			Amount:     30_000,
			Currency:   "USD",
			FullRefund: true,
			ChargeID:   "ch_1",
			RefundID:   "re_1",
		},
		ChargeDisputed{ID: "evt_d", BookingID: uuid.New(), Amount: 50_000, Currency: "USD", ChargeID: "ch_1"},
	}

	for _, want := range events {
		t.Run(want.EventType(), func(t *testing.T) {
			raw, err := EncodeEvent(want)
			require.NoError(t, err)

			got, err := DecodeEvent(raw)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}
