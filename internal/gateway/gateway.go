package gateway

import (
	"context"
	"errors"
)

// Payment intent statuses as reported by the gateway's read API.
const (
	IntentStatusProcessing = "processing"
	IntentStatusSucceeded  = "succeeded"
	IntentStatusFailed     = "failed"
)

var ErrIntentNotFound = errors.New("payment intent not found")

// Refund is one refund the gateway applied against a charge, with the event
// id of its original webhook delivery.
type Refund struct {
	ID      string
	EventID string
	Amount  int64 // minor units
	Full    bool
}

// PaymentIntent is the gateway's authoritative view of one payment, keyed by
// the intent id stored on the booking. Event ids are included so repairs
// derived from this view dedupe against live webhook deliveries.
type PaymentIntent struct {
	ID             string
	Status         string
	Amount         int64 // minor units
	Currency       string
	ChargeID       string
	ChargeEventID  string
	FailureEventID string
	FailureReason  string
	Refunds        []Refund
	Disputed       bool
	DisputeEventID string
	DisputeAmount  int64
}

// Gateway is the read API of the external payment gateway. It is the source
// of truth for charges, refunds and disputes during reconciliation.
type Gateway interface {
	GetPaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error)
}
