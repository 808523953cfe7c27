package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/skylark-travel/flightpay/internal/models"
)

const creditColumns = `id, user_id, amount, used_amount, source, booking_id, expires_at, created_at`

// InsertUserCredit records a new grant.
func (q *Queries) InsertUserCredit(ctx context.Context, c *models.UserCredit) error {
	err := q.db.QueryRow(ctx, `
		INSERT INTO user_credits (id, user_id, amount, used_amount, source, booking_id, expires_at, created_at)
		VALUES ($1, $2, $3, 0, $4, $5, $6, NOW())
		RETURNING used_amount, created_at
	`, c.ID, c.UserID, c.Amount, c.Source, c.BookingID, c.ExpiresAt).Scan(&c.UsedAmount, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user credit: %w", err)
	}
	return nil
}

// ListSpendableCreditsForUpdate row-locks the user's unexpired, not fully
// drawn grants in allocation order: soonest-expiring first, then oldest
// created. Grants without an expiry sort last.
func (q *Queries) ListSpendableCreditsForUpdate(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.UserCredit, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+creditColumns+`
		FROM user_credits
		WHERE user_id = $1
		  AND used_amount < amount
		  AND (expires_at IS NULL OR expires_at > $2)
		ORDER BY expires_at ASC NULLS LAST, created_at ASC
		FOR UPDATE
	`, userID, now)
	if err != nil {
		return nil, fmt.Errorf("list spendable credits: %w", err)
	}
	defer rows.Close()

	var credits []models.UserCredit
	for rows.Next() {
		var c models.UserCredit
		if err := rows.Scan(&c.ID, &c.UserID, &c.Amount, &c.UsedAmount, &c.Source, &c.BookingID, &c.ExpiresAt, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user credit: %w", err)
		}
		credits = append(credits, c)
	}
	return credits, rows.Err()
}

// SpendableBalance sums remaining value over unexpired grants.
func (q *Queries) SpendableBalance(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	var balance int64
	err := q.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount - used_amount), 0)
		FROM user_credits
		WHERE user_id = $1
		  AND used_amount < amount
		  AND (expires_at IS NULL OR expires_at > $2)
	`, userID, now).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("spendable balance: %w", err)
	}
	return balance, nil
}

// ApplyCreditDraw increments used_amount, guarded so a single grant can never
// be drawn past its face value.
func (q *Queries) ApplyCreditDraw(ctx context.Context, creditID uuid.UUID, amount int64) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE user_credits
		SET used_amount = used_amount + $2
		WHERE id = $1 AND used_amount + $2 <= amount
	`, creditID, amount)
	if err != nil {
		return 0, fmt.Errorf("apply credit draw: %w", err)
	}
	return tag.RowsAffected(), nil
}

// InsertCreditUsage appends the record of one draw.
func (q *Queries) InsertCreditUsage(ctx context.Context, u *models.CreditUsage) error {
	err := q.db.QueryRow(ctx, `
		INSERT INTO credit_usages (id, credit_id, booking_id, user_id, amount_used, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`, u.ID, u.CreditID, u.BookingID, u.UserID, u.AmountUsed).Scan(&u.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert credit usage: %w", err)
	}
	return nil
}

// ListCreditUsagesForBooking returns the draws consumed by one booking.
func (q *Queries) ListCreditUsagesForBooking(ctx context.Context, bookingID uuid.UUID) ([]models.CreditUsage, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, credit_id, booking_id, user_id, amount_used, created_at
		FROM credit_usages
		WHERE booking_id = $1
		ORDER BY created_at ASC, id ASC
	`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("list credit usages: %w", err)
	}
	defer rows.Close()

	var usages []models.CreditUsage
	for rows.Next() {
		var u models.CreditUsage
		if err := rows.Scan(&u.ID, &u.CreditID, &u.BookingID, &u.UserID, &u.AmountUsed, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan credit usage: %w", err)
		}
		usages = append(usages, u)
	}
	return usages, rows.Err()
}

// GetUserCredit loads a grant by id.
func (q *Queries) GetUserCredit(ctx context.Context, id uuid.UUID) (models.UserCredit, error) {
	var c models.UserCredit
	err := q.db.QueryRow(ctx, `SELECT `+creditColumns+` FROM user_credits WHERE id = $1`, id).
		Scan(&c.ID, &c.UserID, &c.Amount, &c.UsedAmount, &c.Source, &c.BookingID, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		return c, fmt.Errorf("get user credit: %w", err)
	}
	return c, nil
}

// ExpireUserCredits marks past-expiry grants with remaining balance as fully
// used. Usage rows stay untouched, preserving the audit trail.
func (q *Queries) ExpireUserCredits(ctx context.Context, now time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE user_credits
		SET used_amount = amount
		WHERE expires_at IS NOT NULL AND expires_at <= $1 AND used_amount < amount
	`, now)
	if err != nil {
		return 0, fmt.Errorf("expire user credits: %w", err)
	}
	return tag.RowsAffected(), nil
}
