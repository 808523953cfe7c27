package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value in a specific currency.
// Amount is stored as BIGINT minor units (cents) to avoid floating point errors.
type Money struct {
	Amount   int64  // minor units
	Currency string // ISO 4217
}

// NewMoney creates a new Money instance from minor units.
func NewMoney(amount int64, currency string) Money {
	return Money{
		Amount:   amount,
		Currency: currency,
	}
}

// ToDecimal converts minor units to a major-unit decimal (50000 -> 500.00).
func (m Money) ToDecimal() decimal.Decimal {
	return decimal.NewFromInt(m.Amount).Div(decimal.NewFromInt(100))
}

// MinorFromDecimal converts a major-unit decimal back to minor units.
func MinorFromDecimal(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).IntPart()
}

// Percent returns the given percentage of the amount, floored to whole
// minor units. Used for percentage voucher discounts.
func (m Money) Percent(pct int64) Money {
	d := decimal.NewFromInt(m.Amount).
		Mul(decimal.NewFromInt(pct)).
		Div(decimal.NewFromInt(100)).
		Floor()
	return Money{
		Amount:   d.IntPart(),
		Currency: m.Currency,
	}
}

// String returns the string representation of the money.
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.ToDecimal().StringFixed(2), m.Currency)
}
