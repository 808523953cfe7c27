package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/skylark-travel/flightpay/internal/models"
)

const voucherColumns = `id, code, voucher_type, value, min_purchase, max_discount, valid_from, valid_until, max_uses, used_count, single_use_per_user, active, created_at`

func scanVoucher(row pgx.Row) (models.Voucher, error) {
	var v models.Voucher
	err := row.Scan(&v.ID, &v.Code, &v.VoucherType, &v.Value, &v.MinPurchase, &v.MaxDiscount,
		&v.ValidFrom, &v.ValidUntil, &v.MaxUses, &v.UsedCount, &v.SingleUsePerUser, &v.Active, &v.CreatedAt)
	return v, err
}

// CreateVoucher inserts a voucher definition. The code must already be
// case-normalized by the caller.
func (q *Queries) CreateVoucher(ctx context.Context, v *models.Voucher) error {
	err := q.db.QueryRow(ctx, `
		INSERT INTO vouchers
			(id, code, voucher_type, value, min_purchase, max_discount, valid_from, valid_until, max_uses, used_count, single_use_per_user, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10, $11, NOW())
		RETURNING used_count, created_at
	`, v.ID, v.Code, v.VoucherType, v.Value, v.MinPurchase, v.MaxDiscount,
		v.ValidFrom, v.ValidUntil, v.MaxUses, v.SingleUsePerUser, v.Active).Scan(&v.UsedCount, &v.CreatedAt)
	if err != nil {
		return fmt.Errorf("create voucher: %w", err)
	}
	return nil
}

// GetVoucherByCode loads a voucher by normalized code.
func (q *Queries) GetVoucherByCode(ctx context.Context, code string) (models.Voucher, error) {
	v, err := scanVoucher(q.db.QueryRow(ctx, `SELECT `+voucherColumns+` FROM vouchers WHERE code = $1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return v, models.ErrVoucherNotFound
		}
		return v, fmt.Errorf("get voucher: %w", err)
	}
	return v, nil
}

// GetVoucherByCodeForUpdate row-locks the voucher inside a transaction so
// concurrent applies serialize on the usage cap.
func (q *Queries) GetVoucherByCodeForUpdate(ctx context.Context, code string) (models.Voucher, error) {
	v, err := scanVoucher(q.db.QueryRow(ctx, `SELECT `+voucherColumns+` FROM vouchers WHERE code = $1 FOR UPDATE`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return v, models.ErrVoucherNotFound
		}
		return v, fmt.Errorf("lock voucher: %w", err)
	}
	return v, nil
}

// CountVoucherUsageByUser reports prior redemptions of a voucher by one user.
func (q *Queries) CountVoucherUsageByUser(ctx context.Context, voucherID, userID uuid.UUID) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM voucher_usages WHERE voucher_id = $1 AND user_id = $2
	`, voucherID, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count voucher usage: %w", err)
	}
	return count, nil
}

// InsertVoucherUsage appends one redemption. For single-use-per-user vouchers
// the partial unique index on (voucher_id, user_id) makes this insert the
// enforcement point: the loser of a race receives a unique violation.
func (q *Queries) InsertVoucherUsage(ctx context.Context, u *models.VoucherUsage) error {
	err := q.db.QueryRow(ctx, `
		INSERT INTO voucher_usages (id, voucher_id, booking_id, user_id, discount_amount, single_use, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at
	`, u.ID, u.VoucherID, u.BookingID, u.UserID, u.DiscountAmount, u.SingleUse).Scan(&u.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert voucher usage: %w", err)
	}
	return nil
}

// IncrementVoucherUsedCount bumps the redemption counter, guarded by the
// usage cap.
func (q *Queries) IncrementVoucherUsedCount(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE vouchers
		SET used_count = used_count + 1
		WHERE id = $1 AND used_count < max_uses
	`, id)
	if err != nil {
		return 0, fmt.Errorf("increment voucher used count: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListVoucherUsages returns redemptions of one voucher.
func (q *Queries) ListVoucherUsages(ctx context.Context, voucherID uuid.UUID) ([]models.VoucherUsage, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, voucher_id, booking_id, user_id, discount_amount, single_use, created_at
		FROM voucher_usages
		WHERE voucher_id = $1
		ORDER BY created_at ASC, id ASC
	`, voucherID)
	if err != nil {
		return nil, fmt.Errorf("list voucher usages: %w", err)
	}
	defer rows.Close()

	var usages []models.VoucherUsage
	for rows.Next() {
		var u models.VoucherUsage
		if err := rows.Scan(&u.ID, &u.VoucherID, &u.BookingID, &u.UserID, &u.DiscountAmount, &u.SingleUse, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan voucher usage: %w", err)
		}
		usages = append(usages, u)
	}
	return usages, rows.Err()
}
