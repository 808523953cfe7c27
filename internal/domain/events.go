package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrUnknownEventType = errors.New("unknown gateway event type")
	ErrMalformedEvent   = errors.New("malformed gateway event")
)

// Event is the closed set of typed gateway events. Payloads are decoded once
// at the webhook boundary; every handler downstream receives a fully-typed
// variant instead of an opaque blob plus a type string.
type Event interface {
	EventID() string
	EventType() string
	isEvent()
}

// ChargeSucceeded confirms a charge against a booking's payment intent.
type ChargeSucceeded struct {
	ID              string
	BookingID       uuid.UUID
	Amount          int64 // minor currency units
	Currency        string
	PaymentIntentID string
	ChargeID        string
}

// ChargeFailed signals that the charge attempt was declined.
type ChargeFailed struct {
	ID        string
	BookingID uuid.UUID
	Reason    string
}

// ChargeRefunded reports a full or partial refund of a captured charge.
type ChargeRefunded struct {
	ID         string
	BookingID  uuid.UUID
	Amount     int64
	Currency   string
	FullRefund bool
	ChargeID   string
	RefundID   string
}

// ChargeDisputed reports a chargeback opened against the charge.
type ChargeDisputed struct {
	ID        string
	BookingID uuid.UUID
	Amount    int64
	Currency  string
	ChargeID  string
}

func (e ChargeSucceeded) EventID() string   { return e.ID }
func (e ChargeSucceeded) EventType() string { return EventTypeChargeSucceeded }
func (ChargeSucceeded) isEvent()            {}

func (e ChargeFailed) EventID() string   { return e.ID }
func (e ChargeFailed) EventType() string { return EventTypeChargeFailed }
func (ChargeFailed) isEvent()            {}

func (e ChargeRefunded) EventID() string   { return e.ID }
func (e ChargeRefunded) EventType() string { return EventTypeChargeRefunded }
func (ChargeRefunded) isEvent()            {}

func (e ChargeDisputed) EventID() string   { return e.ID }
func (e ChargeDisputed) EventType() string { return EventTypeChargeDisputed }
func (ChargeDisputed) isEvent()            {}

// EventEnvelope is the outer wire shape shared by every gateway delivery.
type EventEnvelope struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type chargeSucceededData struct {
	BookingID       string `json:"booking_id"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	PaymentIntentID string `json:"payment_intent_id"`
	ChargeID        string `json:"charge_id"`
}

type chargeFailedData struct {
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason"`
}

type chargeRefundedData struct {
	BookingID  string `json:"booking_id"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	FullRefund bool   `json:"full_refund"`
	ChargeID   string `json:"charge_id"`
	RefundID   string `json:"refund_id"`
}

type chargeDisputedData struct {
	BookingID string `json:"booking_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	ChargeID  string `json:"charge_id"`
}

// DecodeEnvelope parses the outer envelope without interpreting the payload.
func DecodeEnvelope(payload []byte) (EventEnvelope, error) {
	var env EventEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	env.ID = strings.TrimSpace(env.ID)
	env.Type = strings.TrimSpace(env.Type)
	if env.ID == "" {
		return env, fmt.Errorf("%w: missing event id", ErrMalformedEvent)
	}
	if env.Type == "" {
		return env, fmt.Errorf("%w: missing event type", ErrMalformedEvent)
	}
	return env, nil
}

// DecodeEvent decodes a raw gateway delivery into its typed variant.
// ErrUnknownEventType is returned for types outside the closed set; callers
// acknowledge those without processing.
func DecodeEvent(payload []byte) (Event, error) {
	env, err := DecodeEnvelope(payload)
	if err != nil {
		return nil, err
	}
	return DecodeEnvelopeEvent(env)
}

// DecodeEnvelopeEvent decodes an already-parsed envelope.
func DecodeEnvelopeEvent(env EventEnvelope) (Event, error) {
	switch env.Type {
	case EventTypeChargeSucceeded:
		var d chargeSucceededData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		bookingID, err := parseBookingID(d.BookingID)
		if err != nil {
			return nil, err
		}
		if d.Amount <= 0 {
			return nil, fmt.Errorf("%w: non-positive amount %d", ErrMalformedEvent, d.Amount)
		}
		if d.PaymentIntentID == "" {
			return nil, fmt.Errorf("%w: missing payment_intent_id", ErrMalformedEvent)
		}
		return ChargeSucceeded{
			ID:              env.ID,
			BookingID:       bookingID,
			Amount:          d.Amount,
			Currency:        strings.ToUpper(strings.TrimSpace(d.Currency)),
			PaymentIntentID: d.PaymentIntentID,
			ChargeID:        d.ChargeID,
		}, nil
	case EventTypeChargeFailed:
		var d chargeFailedData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		bookingID, err := parseBookingID(d.BookingID)
		if err != nil {
			return nil, err
		}
		return ChargeFailed{ID: env.ID, BookingID: bookingID, Reason: d.Reason}, nil
	case EventTypeChargeRefunded:
		var d chargeRefundedData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		bookingID, err := parseBookingID(d.BookingID)
		if err != nil {
			return nil, err
		}
		if d.Amount <= 0 {
			return nil, fmt.Errorf("%w: non-positive refund amount %d", ErrMalformedEvent, d.Amount)
		}
		if d.RefundID == "" {
			return nil, fmt.Errorf("%w: missing refund_id", ErrMalformedEvent)
		}
		return ChargeRefunded{
			ID:         env.ID,
			BookingID:  bookingID,
			Amount:     d.Amount,
			Currency:   strings.ToUpper(strings.TrimSpace(d.Currency)),
			FullRefund: d.FullRefund,
			ChargeID:   d.ChargeID,
			RefundID:   d.RefundID,
		}, nil
	case EventTypeChargeDisputed:
		var d chargeDisputedData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		bookingID, err := parseBookingID(d.BookingID)
		if err != nil {
			return nil, err
		}
		return ChargeDisputed{
			ID:        env.ID,
			BookingID: bookingID,
			Amount:    d.Amount,
			Currency:  strings.ToUpper(strings.TrimSpace(d.Currency)),
			ChargeID:  d.ChargeID,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, env.Type)
	}
}

// EncodeEvent renders a typed event back into its envelope wire form. Used
// when reconciliation re-derives events from the gateway's read API and
// persists them through the same store as live deliveries.
func EncodeEvent(ev Event) ([]byte, error) {
	var data any
	switch e := ev.(type) {
	case ChargeSucceeded:
		data = chargeSucceededData{
			BookingID:       e.BookingID.String(),
			Amount:          e.Amount,
			Currency:        e.Currency,
			PaymentIntentID: e.PaymentIntentID,
			ChargeID:        e.ChargeID,
		}
	case ChargeFailed:
		data = chargeFailedData{BookingID: e.BookingID.String(), Reason: e.Reason}
	case ChargeRefunded:
		data = chargeRefundedData{
			BookingID:  e.BookingID.String(),
			Amount:     e.Amount,
			Currency:   e.Currency,
			FullRefund: e.FullRefund,
			ChargeID:   e.ChargeID,
			RefundID:   e.RefundID,
		}
	case ChargeDisputed:
		data = chargeDisputedData{
			BookingID: e.BookingID.String(),
			Amount:    e.Amount,
			Currency:  e.Currency,
			ChargeID:  e.ChargeID,
		}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownEventType, ev)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(EventEnvelope{ID: ev.EventID(), Type: ev.EventType(), Data: raw})
}

func parseBookingID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid booking_id %q", ErrMalformedEvent, raw)
	}
	return id, nil
}
