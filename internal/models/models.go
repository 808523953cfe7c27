package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrCreditNotFound  = errors.New("credit not found")
	ErrVoucherNotFound = errors.New("voucher not found")
)

// GatewayEvent is one row per externally-generated payment event, keyed by
// the gateway's globally-unique event id. processed=true is terminal.
type GatewayEvent struct {
	ID          string     `json:"id"`
	EventType   string     `json:"event_type"`
	Payload     []byte     `json:"payload"`
	Processed   bool       `json:"processed"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	RetryCount  int32      `json:"retry_count"`
	LastError   *string    `json:"last_error,omitempty"`
	ReceivedAt  time.Time  `json:"received_at"`
}

// Booking carries only the fields this core mutates. The booking subsystem
// owns the rest of the row.
type Booking struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"user_id"`
	Status          string    `json:"status"`
	PaymentStatus   string    `json:"payment_status"`
	TotalAmount     int64     `json:"total_amount"` // minor units
	Currency        string    `json:"currency"`
	PaymentIntentID *string   `json:"payment_intent_id,omitempty"` // set at most once
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// BookingStatusHistory records each transition with its reason.
type BookingStatusHistory struct {
	ID         int64     `json:"id"`
	BookingID  uuid.UUID `json:"booking_id"`
	PrevStatus string    `json:"prev_status"`
	NextStatus string    `json:"next_status"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

// LedgerEntry is append-only; never updated or deleted. Corrections are new
// adjustment entries. Unique on external_event_id and, separately, on
// (external_charge_id, external_refund_id) where a refund id is present.
type LedgerEntry struct {
	ID               uuid.UUID       `json:"id"`
	BookingID        uuid.UUID       `json:"booking_id"`
	UserID           uuid.UUID       `json:"user_id"`
	EntryType        string          `json:"entry_type"`
	Amount           decimal.Decimal `json:"amount"` // major units, positive
	Currency         string          `json:"currency"`
	ExternalEventID  string          `json:"external_event_id"`
	ExternalChargeID *string         `json:"external_charge_id,omitempty"`
	ExternalRefundID *string         `json:"external_refund_id,omitempty"`
	Description      string          `json:"description"`
	CreatedAt        time.Time       `json:"created_at"`
}

// UserCredit is a grant of spendable balance, consumed incrementally via
// CreditUsage rows and never deleted.
type UserCredit struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	Amount     int64      `json:"amount"` // minor units
	UsedAmount int64      `json:"used_amount"`
	Source     string     `json:"source"`
	BookingID  *uuid.UUID `json:"booking_id,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Remaining returns the unspent portion of the grant.
func (c UserCredit) Remaining() int64 {
	return c.Amount - c.UsedAmount
}

// CreditUsage is an append-only draw against one UserCredit.
type CreditUsage struct {
	ID         uuid.UUID `json:"id"`
	CreditID   uuid.UUID `json:"credit_id"`
	BookingID  uuid.UUID `json:"booking_id"`
	UserID     uuid.UUID `json:"user_id"`
	AmountUsed int64     `json:"amount_used"`
	CreatedAt  time.Time `json:"created_at"`
}

// Voucher is a discount code. Codes are stored case-normalized (upper).
type Voucher struct {
	ID               uuid.UUID `json:"id"`
	Code             string    `json:"code"`
	VoucherType      string    `json:"voucher_type"`
	Value            int64     `json:"value"` // minor units (fixed) or percent (percentage)
	MinPurchase      int64     `json:"min_purchase"`
	MaxDiscount      *int64    `json:"max_discount,omitempty"` // percentage type only
	ValidFrom        time.Time `json:"valid_from"`
	ValidUntil       time.Time `json:"valid_until"`
	MaxUses          int32     `json:"max_uses"`
	UsedCount        int32     `json:"used_count"`
	SingleUsePerUser bool      `json:"single_use_per_user"`
	Active           bool      `json:"active"`
	CreatedAt        time.Time `json:"created_at"`
}

// VoucherUsage is append-only, one row per (voucher, booking). A partial
// unique index on (voucher_id, user_id) enforces single-use-per-user.
type VoucherUsage struct {
	ID             uuid.UUID `json:"id"`
	VoucherID      uuid.UUID `json:"voucher_id"`
	BookingID      uuid.UUID `json:"booking_id"`
	UserID         uuid.UUID `json:"user_id"`
	DiscountAmount int64     `json:"discount_amount"`
	SingleUse      bool      `json:"single_use"`
	CreatedAt      time.Time `json:"created_at"`
}
