package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/skylark-travel/flightpay/internal/models"
)

const bookingColumns = `id, user_id, status, payment_status, total_amount, currency, payment_intent_id, created_at, updated_at`

func scanBooking(row pgx.Row) (models.Booking, error) {
	var b models.Booking
	err := row.Scan(&b.ID, &b.UserID, &b.Status, &b.PaymentStatus, &b.TotalAmount, &b.Currency, &b.PaymentIntentID, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

// CreateBooking inserts a booking row. The booking subsystem owns creation in
// production; this exists for seeding and tests.
func (q *Queries) CreateBooking(ctx context.Context, b *models.Booking) error {
	err := q.db.QueryRow(ctx, `
		INSERT INTO bookings (id, user_id, status, payment_status, total_amount, currency, payment_intent_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at
	`, b.ID, b.UserID, b.Status, b.PaymentStatus, b.TotalAmount, b.Currency, b.PaymentIntentID).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

// GetBooking loads a booking by id.
func (q *Queries) GetBooking(ctx context.Context, id uuid.UUID) (models.Booking, error) {
	b, err := scanBooking(q.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return b, models.ErrBookingNotFound
		}
		return b, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// GetBookingForUpdate loads and row-locks a booking inside a transaction.
func (q *Queries) GetBookingForUpdate(ctx context.Context, id uuid.UUID) (models.Booking, error) {
	b, err := scanBooking(q.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return b, models.ErrBookingNotFound
		}
		return b, fmt.Errorf("lock booking: %w", err)
	}
	return b, nil
}

// UpdateBookingStatus writes the booking and payment status.
func (q *Queries) UpdateBookingStatus(ctx context.Context, id uuid.UUID, status, paymentStatus string) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE bookings
		SET status = $2, payment_status = $3, updated_at = NOW()
		WHERE id = $1
	`, id, status, paymentStatus)
	if err != nil {
		return 0, fmt.Errorf("update booking status: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SetBookingPaymentIntent records the payment intent id exactly once. A row
// that already carries an intent id is left untouched.
func (q *Queries) SetBookingPaymentIntent(ctx context.Context, id uuid.UUID, intentID string) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE bookings
		SET payment_intent_id = $2, updated_at = NOW()
		WHERE id = $1 AND payment_intent_id IS NULL
	`, id, intentID)
	if err != nil {
		return 0, fmt.Errorf("set booking payment intent: %w", err)
	}
	return tag.RowsAffected(), nil
}

// InsertBookingStatusHistory appends one transition record.
func (q *Queries) InsertBookingStatusHistory(ctx context.Context, bookingID uuid.UUID, prevStatus, nextStatus, reason string) error {
	if _, err := q.db.Exec(ctx, `
		INSERT INTO booking_status_history (booking_id, prev_status, next_status, reason, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, bookingID, prevStatus, nextStatus, reason); err != nil {
		return fmt.Errorf("insert booking status history: %w", err)
	}
	return nil
}

// ListBookingStatusHistory returns transitions for a booking, oldest first.
func (q *Queries) ListBookingStatusHistory(ctx context.Context, bookingID uuid.UUID) ([]models.BookingStatusHistory, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, booking_id, prev_status, next_status, reason, created_at
		FROM booking_status_history
		WHERE booking_id = $1
		ORDER BY id ASC
	`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("list booking status history: %w", err)
	}
	defer rows.Close()

	var history []models.BookingStatusHistory
	for rows.Next() {
		var h models.BookingStatusHistory
		if err := rows.Scan(&h.ID, &h.BookingID, &h.PrevStatus, &h.NextStatus, &h.Reason, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan booking status history: %w", err)
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

// ListBookingsForReconciliation selects the drift-scan window: the most
// recently touched bookings that hold a payment intent id and have not
// reached a terminal state the gateway can no longer move.
func (q *Queries) ListBookingsForReconciliation(ctx context.Context, limit int32) ([]models.Booking, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE payment_intent_id IS NOT NULL
		  AND status IN ($1, $2, $3)
		ORDER BY updated_at DESC
		LIMIT $4
	`, "PENDING", "CONFIRMED", "PARTIALLY_REFUNDED", limit)
	if err != nil {
		return nil, fmt.Errorf("list bookings for reconciliation: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
