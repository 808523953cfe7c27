package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/skylark-travel/flightpay/internal/domain"
	"github.com/skylark-travel/flightpay/internal/models"
	"github.com/skylark-travel/flightpay/internal/observability"
	"github.com/skylark-travel/flightpay/internal/repository"
)

// LedgerService appends to and replays the append-only financial ledger.
// Entries are never mutated; corrections are new adjustment entries.
type LedgerService struct {
	store QueryStore
}

func NewLedgerService(store QueryStore) *LedgerService {
	return &LedgerService{store: store}
}

// Append inserts one entry inside the caller's transaction. A uniqueness
// conflict on the external event id or on the (charge id, refund id) pair
// comes back as ErrDuplicateEntry; callers must treat that as an idempotent
// no-op, not a user-facing error.
func (s *LedgerService) Append(ctx context.Context, qtx *repository.Queries, p repository.InsertLedgerEntryParams) (*models.LedgerEntry, error) {
	if p.Amount.IsNegative() || p.Amount.IsZero() {
		return nil, fmt.Errorf("ledger amount must be positive, got %s", p.Amount)
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	entry, err := qtx.InsertLedgerEntry(ctx, p)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			observability.IncrementDuplicateLedgerEntry(p.EntryType)
			return nil, ErrDuplicateEntry
		}
		return nil, err
	}
	return &entry, nil
}

// BookingBalance is derived purely by replaying ledger entries. No mutable
// running-balance column exists.
type BookingBalance struct {
	Charged  decimal.Decimal `json:"charged"`
	Refunded decimal.Decimal `json:"refunded"`
	Adjusted decimal.Decimal `json:"adjusted"`
	Net      decimal.Decimal `json:"net"`
}

// BalanceFor replays a booking's entries into net paid/refunded totals.
func (s *LedgerService) BalanceFor(ctx context.Context, bookingID uuid.UUID) (*BookingBalance, error) {
	entries, err := s.store.Queries().ListLedgerEntries(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return replayBalance(entries), nil
}

// Entries returns the raw ledger rows for a booking.
func (s *LedgerService) Entries(ctx context.Context, bookingID uuid.UUID) ([]models.LedgerEntry, error) {
	return s.store.Queries().ListLedgerEntries(ctx, bookingID)
}

func replayBalance(entries []models.LedgerEntry) *BookingBalance {
	b := &BookingBalance{
		Charged:  decimal.Zero,
		Refunded: decimal.Zero,
		Adjusted: decimal.Zero,
	}
	for _, e := range entries {
		switch e.EntryType {
		case domain.EntryTypeCharge:
			b.Charged = b.Charged.Add(e.Amount)
		case domain.EntryTypeRefund, domain.EntryTypePartialRefund:
			b.Refunded = b.Refunded.Add(e.Amount)
		case domain.EntryTypeAdjustment:
			b.Adjusted = b.Adjusted.Add(e.Amount)
		}
	}
	b.Net = b.Charged.Sub(b.Refunded)
	return b
}
