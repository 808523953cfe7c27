package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/skylark-travel/flightpay/internal/domain"
	"github.com/skylark-travel/flightpay/internal/models"
	"github.com/skylark-travel/flightpay/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDiscount(t *testing.T) {
	maxDiscount := int64(40_00)

	cases := []struct {
		name    string
		voucher models.Voucher
		amount  int64
		want    int64
	}{
		{
			name:    "fixed below amount",
			voucher: models.Voucher{VoucherType: domain.VoucherTypeFixed, Value: 20_00},
			amount:  100_00,
			want:    20_00,
		},
		{
			name:    "fixed capped at purchase amount",
			voucher: models.Voucher{VoucherType: domain.VoucherTypeFixed, Value: 150_00},
			amount:  100_00,
			want:    100_00,
		},
		{
			name:    "percentage plain",
			voucher: models.Voucher{VoucherType: domain.VoucherTypePercentage, Value: 10},
			amount:  200_00,
			want:    20_00,
		},
		{
			name:    "percentage floors fractional cents",
			voucher: models.Voucher{VoucherType: domain.VoucherTypePercentage, Value: 10},
			amount:  99_99,
			want:    9_99, // 999.9 floors to 999
		},
		{
			name:    "percentage honors max discount cap",
			voucher: models.Voucher{VoucherType: domain.VoucherTypePercentage, Value: 10, MaxDiscount: &maxDiscount},
			amount:  500_00,
			want:    40_00,
		},
		{
			name:    "percentage under cap unaffected",
			voucher: models.Voucher{VoucherType: domain.VoucherTypePercentage, Value: 10, MaxDiscount: &maxDiscount},
			amount:  300_00,
			want:    30_00,
		},
		{
			name:    "unknown type yields nothing",
			voucher: models.Voucher{VoucherType: "mystery", Value: 10},
			amount:  100_00,
			want:    0,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, computeDiscount(tc.voucher, tc.amount))
		})
	}
}

func TestVoucherValidateAndApply(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := repository.NewStore(db)
	svc := NewVoucherService(store)
	ctx := context.Background()

	maxDiscount := int64(40_00)
	voucher := seedVoucher(t, store, models.Voucher{
		Code:             "save10",
		VoucherType:      domain.VoucherTypePercentage,
		Value:            10,
		MaxDiscount:      &maxDiscount,
		MaxUses:          100,
		SingleUsePerUser: true,
		Active:           true,
	})

	userID := uuid.New()
	bookingID := uuid.New()

	// Lookup is case-insensitive through normalization.
	quote, err := svc.Validate(ctx, "SaVe10", &userID, 500_00)
	require.NoError(t, err)
	require.True(t, quote.Valid)
	require.Equal(t, int64(40_00), quote.DiscountAmount)
	require.Equal(t, int64(460_00), quote.FinalAmount)

	app, err := svc.Apply(ctx, "save10", bookingID, userID, 500_00)
	require.NoError(t, err)
	require.Equal(t, voucher.ID, app.VoucherID)
	require.Equal(t, int64(40_00), app.DiscountAmount)
	require.Equal(t, int64(460_00), app.FinalAmount)

	// Second apply by the same user trips the single-use rule.
	_, err = svc.Apply(ctx, "SAVE10", uuid.New(), userID, 500_00)
	require.ErrorIs(t, err, ErrAlreadyUsed)

	// And so does re-validation.
	_, err = svc.Validate(ctx, "SAVE10", &userID, 500_00)
	require.ErrorIs(t, err, ErrAlreadyUsed)

	// A different user is unaffected.
	otherUser := uuid.New()
	quote, err = svc.Validate(ctx, "SAVE10", &otherUser, 300_00)
	require.NoError(t, err)
	require.Equal(t, int64(30_00), quote.DiscountAmount)

	got, err := store.Queries().GetVoucherByCode(ctx, "SAVE10")
	require.NoError(t, err)
	require.Equal(t, int32(1), got.UsedCount)
}

func TestVoucherRejections(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := repository.NewStore(db)
	svc := NewVoucherService(store)
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.Validate(ctx, "NOSUCH", &userID, 100_00)
	require.ErrorIs(t, err, ErrVoucherNotFound)

	seedVoucher(t, store, models.Voucher{
		Code: "INACTIVE", VoucherType: domain.VoucherTypeFixed, Value: 5_00,
		MaxUses: 10, Active: false,
	})
	_, err = svc.Validate(ctx, "INACTIVE", &userID, 100_00)
	require.ErrorIs(t, err, ErrVoucherInactive)

	seedVoucher(t, store, models.Voucher{
		Code: "EXPIRED", VoucherType: domain.VoucherTypeFixed, Value: 5_00,
		ValidFrom: time.Now().Add(-48 * time.Hour), ValidUntil: time.Now().Add(-24 * time.Hour),
		MaxUses: 10, Active: true,
	})
	_, err = svc.Validate(ctx, "EXPIRED", &userID, 100_00)
	require.ErrorIs(t, err, ErrVoucherExpired)

	seedVoucher(t, store, models.Voucher{
		Code: "SOON", VoucherType: domain.VoucherTypeFixed, Value: 5_00,
		ValidFrom: time.Now().Add(24 * time.Hour), ValidUntil: time.Now().Add(48 * time.Hour),
		MaxUses: 10, Active: true,
	})
	_, err = svc.Validate(ctx, "SOON", &userID, 100_00)
	require.ErrorIs(t, err, ErrVoucherNotYetValid)

	seedVoucher(t, store, models.Voucher{
		Code: "BIGSPEND", VoucherType: domain.VoucherTypeFixed, Value: 5_00,
		MinPurchase: 200_00, MaxUses: 10, Active: true,
	})
	_, err = svc.Validate(ctx, "BIGSPEND", &userID, 100_00)
	require.ErrorIs(t, err, ErrMinimumPurchaseNotMet)
}

func TestVoucherUsageCapExhausts(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := repository.NewStore(db)
	svc := NewVoucherService(store)
	ctx := context.Background()

	seedVoucher(t, store, models.Voucher{
		Code: "ONCE", VoucherType: domain.VoucherTypeFixed, Value: 10_00,
		MaxUses: 1, Active: true,
	})

	_, err := svc.Apply(ctx, "ONCE", uuid.New(), uuid.New(), 100_00)
	require.NoError(t, err)

	_, err = svc.Apply(ctx, "ONCE", uuid.New(), uuid.New(), 100_00)
	require.ErrorIs(t, err, ErrVoucherExhausted)
}
