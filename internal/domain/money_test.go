package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoneyToDecimal(t *testing.T) {
	assert.Equal(t, "500.00", NewMoney(50_000, "USD").ToDecimal().StringFixed(2))
	assert.Equal(t, "0.01", NewMoney(1, "USD").ToDecimal().StringFixed(2))
	assert.Equal(t, "0.00", NewMoney(0, "USD").ToDecimal().StringFixed(2))
	assert.Equal(t, "-12.34", NewMoney(-1_234, "USD").ToDecimal().StringFixed(2))
}

func TestMinorFromDecimal(t *testing.T) {
	d, err := decimal.NewFromString("500.00")
	require.NoError(t, err)
	assert.Equal(t, int64(50_000), MinorFromDecimal(d))

	d, err = decimal.NewFromString("0.01")
	require.NoError(t, err)
	assert.Equal(t, int64(1), MinorFromDecimal(d))
}

func TestMoneyPercentFloors(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		pct    int64
		want   int64
	}{
		{"even split", 50_000, 10, 5_000},
		{"fractional cent floors", 9_999, 10, 999},
		{"full amount", 2_500, 100, 2_500},
		{"zero percent", 2_500, 0, 0},
		{"single cent below threshold", 9, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewMoney(tt.amount, "USD").Percent(tt.pct)
			assert.Equal(t, tt.want, got.Amount)
			assert.Equal(t, "USD", got.Currency)
		})
	}
}

func TestMoneyString(t *testing.T) {
	assert.Equal(t, "1250.00 USD", NewMoney(125_000, "USD").String())
	assert.Equal(t, "0.05 EUR", NewMoney(5, "EUR").String())
}
