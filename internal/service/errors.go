package service

import (
	"errors"
	"fmt"
)

// Authentication / integrity failures. Rejected outright, never retried.
var ErrInvalidSignature = errors.New("invalid signature")

// Invalid state transitions are processing failures: the gateway's redelivery
// may find the booking in a state where the transition is valid or a no-op.
var ErrInvalidTransition = errors.New("invalid booking status transition")

// ErrDuplicateEntry marks a ledger append rejected by a uniqueness
// constraint. Callers treat it as a successful idempotent no-op.
var ErrDuplicateEntry = errors.New("duplicate ledger entry")

// Business-rule rejections surfaced synchronously to callers, never retried.
var (
	ErrVoucherNotFound       = errors.New("voucher not found")
	ErrVoucherInactive       = errors.New("voucher is inactive")
	ErrVoucherNotYetValid    = errors.New("voucher is not yet valid")
	ErrVoucherExpired        = errors.New("voucher has expired")
	ErrVoucherExhausted      = errors.New("voucher usage limit reached")
	ErrMinimumPurchaseNotMet = errors.New("purchase amount below voucher minimum")
	ErrAlreadyUsed           = errors.New("voucher already used by this user")
	ErrInsufficientBalance   = errors.New("insufficient credit balance")
)

// ErrReconciliationRunning is returned when a pass is requested while
// another one holds the single-flight lease.
var ErrReconciliationRunning = errors.New("reconciliation already running")

func requireExactlyOne(rows int64, operation string) error {
	if rows != 1 {
		return fmt.Errorf("%s affected %d rows", operation, rows)
	}
	return nil
}
