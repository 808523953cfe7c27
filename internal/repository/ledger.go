package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/skylark-travel/flightpay/internal/models"
)

// InsertLedgerEntryParams carries one append. Amount is in major currency
// units and must be positive.
type InsertLedgerEntryParams struct {
	ID               uuid.UUID
	BookingID        uuid.UUID
	UserID           uuid.UUID
	EntryType        string
	Amount           decimal.Decimal
	Currency         string
	ExternalEventID  string
	ExternalChargeID *string
	ExternalRefundID *string
	Description      string
}

// InsertLedgerEntry appends one entry. Unique violations on external ids
// surface as pg errors the service maps to a duplicate no-op.
func (q *Queries) InsertLedgerEntry(ctx context.Context, p InsertLedgerEntryParams) (models.LedgerEntry, error) {
	entry := models.LedgerEntry{
		ID:               p.ID,
		BookingID:        p.BookingID,
		UserID:           p.UserID,
		EntryType:        p.EntryType,
		Amount:           p.Amount,
		Currency:         p.Currency,
		ExternalEventID:  p.ExternalEventID,
		ExternalChargeID: p.ExternalChargeID,
		ExternalRefundID: p.ExternalRefundID,
		Description:      p.Description,
	}
	err := q.db.QueryRow(ctx, `
		INSERT INTO ledger_entries
			(id, booking_id, user_id, entry_type, amount, currency, external_event_id, external_charge_id, external_refund_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		RETURNING created_at
	`, p.ID, p.BookingID, p.UserID, p.EntryType, p.Amount.StringFixed(2), p.Currency,
		p.ExternalEventID, p.ExternalChargeID, p.ExternalRefundID, p.Description).Scan(&entry.CreatedAt)
	if err != nil {
		return entry, fmt.Errorf("insert ledger entry: %w", err)
	}
	return entry, nil
}

func scanLedgerEntry(row pgx.Row) (models.LedgerEntry, error) {
	var e models.LedgerEntry
	var amount string
	if err := row.Scan(&e.ID, &e.BookingID, &e.UserID, &e.EntryType, &amount, &e.Currency,
		&e.ExternalEventID, &e.ExternalChargeID, &e.ExternalRefundID, &e.Description, &e.CreatedAt); err != nil {
		return e, err
	}
	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return e, fmt.Errorf("parse ledger amount %q: %w", amount, err)
	}
	e.Amount = dec
	return e, nil
}

// ListLedgerEntries returns all entries for a booking in insertion order.
func (q *Queries) ListLedgerEntries(ctx context.Context, bookingID uuid.UUID) ([]models.LedgerEntry, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, booking_id, user_id, entry_type, amount::text, currency,
		       external_event_id, external_charge_id, external_refund_id, description, created_at
		FROM ledger_entries
		WHERE booking_id = $1
		ORDER BY created_at ASC, id ASC
	`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountLedgerEntriesByEvent reports how many entries carry the external event
// id. Used by reconciliation to detect repairs already applied.
func (q *Queries) CountLedgerEntriesByEvent(ctx context.Context, externalEventID string) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM ledger_entries WHERE external_event_id = $1
	`, externalEventID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count ledger entries by event: %w", err)
	}
	return count, nil
}
