package domain

// Booking statuses
const (
	BookingStatusPending           = "PENDING"
	BookingStatusConfirmed         = "CONFIRMED"
	BookingStatusFailed            = "FAILED"
	BookingStatusRefunded          = "REFUNDED"
	BookingStatusPartiallyRefunded = "PARTIALLY_REFUNDED"
	BookingStatusDisputed          = "DISPUTED"
)

// Payment statuses mirrored onto the booking row
const (
	PaymentStatusUnpaid            = "UNPAID"
	PaymentStatusPaid              = "PAID"
	PaymentStatusFailed            = "FAILED"
	PaymentStatusRefunded          = "REFUNDED"
	PaymentStatusPartiallyRefunded = "PARTIALLY_REFUNDED"
	PaymentStatusDisputed          = "DISPUTED"
)

// Ledger entry types
const (
	EntryTypeCharge        = "charge"
	EntryTypeRefund        = "refund"
	EntryTypePartialRefund = "partial_refund"
	EntryTypeAdjustment    = "adjustment"
)

// Credit sources
const (
	CreditSourceRefund       = "refund"
	CreditSourcePromo        = "promo"
	CreditSourceCompensation = "compensation"
	CreditSourceBonus        = "bonus"
)

// Voucher types
const (
	VoucherTypeFixed      = "fixed"
	VoucherTypePercentage = "percentage"
)

// Gateway event types. Types outside this set are acknowledged and ignored
// so new gateway event kinds do not break delivery.
const (
	EventTypeChargeSucceeded = "charge.succeeded"
	EventTypeChargeFailed    = "charge.failed"
	EventTypeChargeRefunded  = "charge.refunded"
	EventTypeChargeDisputed  = "charge.disputed"
)
