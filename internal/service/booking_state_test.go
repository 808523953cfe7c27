package service

import (
	"testing"

	"github.com/skylark-travel/flightpay/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestBookingTransitions(t *testing.T) {
	cases := []struct {
		name    string
		from    string
		to      string
		allowed bool
	}{
		{name: "pending to confirmed", from: domain.BookingStatusPending, to: domain.BookingStatusConfirmed, allowed: true},
		{name: "pending to failed", from: domain.BookingStatusPending, to: domain.BookingStatusFailed, allowed: true},
		{name: "pending to disputed", from: domain.BookingStatusPending, to: domain.BookingStatusDisputed, allowed: true},
		{name: "pending to refunded", from: domain.BookingStatusPending, to: domain.BookingStatusRefunded, allowed: false},
		{name: "confirmed to refunded", from: domain.BookingStatusConfirmed, to: domain.BookingStatusRefunded, allowed: true},
		{name: "confirmed to partially refunded", from: domain.BookingStatusConfirmed, to: domain.BookingStatusPartiallyRefunded, allowed: true},
		{name: "confirmed to disputed", from: domain.BookingStatusConfirmed, to: domain.BookingStatusDisputed, allowed: true},
		{name: "confirmed to pending", from: domain.BookingStatusConfirmed, to: domain.BookingStatusPending, allowed: false},
		{name: "confirmed to failed", from: domain.BookingStatusConfirmed, to: domain.BookingStatusFailed, allowed: false},
		{name: "partially refunded to refunded", from: domain.BookingStatusPartiallyRefunded, to: domain.BookingStatusRefunded, allowed: true},
		{name: "partially refunded to disputed", from: domain.BookingStatusPartiallyRefunded, to: domain.BookingStatusDisputed, allowed: true},
		{name: "partially refunded to confirmed", from: domain.BookingStatusPartiallyRefunded, to: domain.BookingStatusConfirmed, allowed: false},
		{name: "failed is terminal", from: domain.BookingStatusFailed, to: domain.BookingStatusConfirmed, allowed: false},
		{name: "refunded is terminal", from: domain.BookingStatusRefunded, to: domain.BookingStatusConfirmed, allowed: false},
		{name: "disputed is terminal", from: domain.BookingStatusDisputed, to: domain.BookingStatusRefunded, allowed: false},
		{name: "unknown status has no edges", from: "ARCHIVED", to: domain.BookingStatusConfirmed, allowed: false},
		{name: "case insensitive", from: "pending", to: "confirmed", allowed: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, canTransition(tc.from, tc.to))
		})
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, isTerminalStatus(domain.BookingStatusFailed))
	assert.True(t, isTerminalStatus(domain.BookingStatusRefunded))
	assert.True(t, isTerminalStatus(domain.BookingStatusDisputed))
	assert.False(t, isTerminalStatus(domain.BookingStatusPending))
	assert.False(t, isTerminalStatus(domain.BookingStatusConfirmed))
	assert.False(t, isTerminalStatus(domain.BookingStatusPartiallyRefunded))
}
