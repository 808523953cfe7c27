package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/skylark-travel/flightpay/internal/domain"
	"github.com/skylark-travel/flightpay/internal/models"
	"github.com/skylark-travel/flightpay/internal/repository"
)

// VoucherQuote is the result of validating a code against a purchase amount.
// Amounts are in minor currency units.
type VoucherQuote struct {
	VoucherID      uuid.UUID `json:"voucher_id"`
	Code           string    `json:"code"`
	Valid          bool      `json:"valid"`
	DiscountAmount int64     `json:"discount_amount"`
	FinalAmount    int64     `json:"final_amount"`
}

// VoucherApplication records a committed redemption.
type VoucherApplication struct {
	VoucherID      uuid.UUID `json:"voucher_id"`
	BookingID      uuid.UUID `json:"booking_id"`
	UsageID        uuid.UUID `json:"usage_id"`
	DiscountAmount int64     `json:"discount_amount"`
	FinalAmount    int64     `json:"final_amount"`
}

// VoucherService validates and redeems discount codes.
type VoucherService struct {
	store QueryStore
	now   func() time.Time
}

func NewVoucherService(store QueryStore) *VoucherService {
	return &VoucherService{store: store, now: time.Now}
}

// NormalizeCode upper-cases and trims a voucher code; codes are stored and
// matched in this form.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks a code against the purchase amount and, when a user id is
// given, against that user's prior redemptions. It does not consume a use.
func (s *VoucherService) Validate(ctx context.Context, code string, userID *uuid.UUID, amount int64) (*VoucherQuote, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("invalid purchase amount: %d", amount)
	}

	v, err := s.store.Queries().GetVoucherByCode(ctx, NormalizeCode(code))
	if err != nil {
		if err == models.ErrVoucherNotFound {
			return nil, ErrVoucherNotFound
		}
		return nil, err
	}

	if err := s.checkVoucher(ctx, s.store.Queries(), v, userID, amount); err != nil {
		return nil, err
	}

	discount := computeDiscount(v, amount)
	return &VoucherQuote{
		VoucherID:      v.ID,
		Code:           v.Code,
		Valid:          true,
		DiscountAmount: discount,
		FinalAmount:    amount - discount,
	}, nil
}

// Apply re-validates and redeems the code in one transaction: the voucher
// row is locked, the usage row inserted, and the use counter bumped. The
// usage insert is the enforcement point for single-use-per-user; the loser
// of a concurrent apply observes the unique violation as ErrAlreadyUsed.
func (s *VoucherService) Apply(ctx context.Context, code string, bookingID, userID uuid.UUID, amount int64) (*VoucherApplication, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("invalid purchase amount: %d", amount)
	}

	var app *VoucherApplication
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		v, err := qtx.GetVoucherByCodeForUpdate(ctx, NormalizeCode(code))
		if err != nil {
			if err == models.ErrVoucherNotFound {
				return ErrVoucherNotFound
			}
			return err
		}

		if err := s.checkVoucher(ctx, qtx, v, &userID, amount); err != nil {
			return err
		}

		discount := computeDiscount(v, amount)
		usage := &models.VoucherUsage{
			ID:             uuid.New(),
			VoucherID:      v.ID,
			BookingID:      bookingID,
			UserID:         userID,
			DiscountAmount: discount,
			SingleUse:      v.SingleUsePerUser,
		}
		if err := qtx.InsertVoucherUsage(ctx, usage); err != nil {
			if repository.IsUniqueViolation(err) {
				return ErrAlreadyUsed
			}
			return err
		}

		rows, err := qtx.IncrementVoucherUsedCount(ctx, v.ID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrVoucherExhausted
		}

		app = &VoucherApplication{
			VoucherID:      v.ID,
			BookingID:      bookingID,
			UsageID:        usage.ID,
			DiscountAmount: discount,
			FinalAmount:    amount - discount,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

func (s *VoucherService) checkVoucher(ctx context.Context, q *repository.Queries, v models.Voucher, userID *uuid.UUID, amount int64) error {
	if !v.Active {
		return ErrVoucherInactive
	}
	now := s.now()
	if now.Before(v.ValidFrom) {
		return ErrVoucherNotYetValid
	}
	if now.After(v.ValidUntil) {
		return ErrVoucherExpired
	}
	if v.UsedCount >= v.MaxUses {
		return ErrVoucherExhausted
	}
	if amount < v.MinPurchase {
		return ErrMinimumPurchaseNotMet
	}
	if userID != nil && v.SingleUsePerUser {
		count, err := q.CountVoucherUsageByUser(ctx, v.ID, *userID)
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrAlreadyUsed
		}
	}
	return nil
}

// computeDiscount applies the voucher's discount rule to a purchase amount
// in minor units. Fixed vouchers cap at the purchase amount; percentage
// vouchers floor to whole minor units and honor the optional max-discount
// cap.
func computeDiscount(v models.Voucher, amount int64) int64 {
	switch v.VoucherType {
	case domain.VoucherTypeFixed:
		if v.Value > amount {
			return amount
		}
		return v.Value
	case domain.VoucherTypePercentage:
		discount := domain.NewMoney(amount, "").Percent(v.Value).Amount
		if v.MaxDiscount != nil && discount > *v.MaxDiscount {
			discount = *v.MaxDiscount
		}
		if discount > amount {
			discount = amount
		}
		return discount
	default:
		return 0
	}
}
