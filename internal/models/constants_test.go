package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition_LegalMoves(t *testing.T) {
	legal := [][2]string{
		{BookingStatusPendingAddressVerification, BookingStatusPriceChangePending},
		{BookingStatusPendingAddressVerification, BookingStatusPending},
		{BookingStatusPendingAddressVerification, BookingStatusCancelled},
		{BookingStatusPriceChangePending, BookingStatusPending},
		{BookingStatusPriceChangePending, BookingStatusCancelled},
		{BookingStatusPending, BookingStatusConfirmed},
		{BookingStatusPending, BookingStatusCancelled},
		{BookingStatusConfirmed, BookingStatusCompletedPendingVerify},
		{BookingStatusConfirmed, BookingStatusCompletedWithIssues},
		{BookingStatusConfirmed, BookingStatusCancelled},
		{BookingStatusCompletedPendingVerify, BookingStatusCompleted},
		{BookingStatusCompletedPendingVerify, BookingStatusDisputed},
		{BookingStatusCompletedWithIssues, BookingStatusCompleted},
		{BookingStatusCompletedWithIssues, BookingStatusCancelled},
		{BookingStatusCompleted, BookingStatusPostPaymentDispute},
		{BookingStatusPostPaymentDispute, BookingStatusCompleted},
	}
	for _, pair := range legal {
		assert.True(t, CanTransition(pair[0], pair[1]), "%s -> %s should be legal", pair[0], pair[1])
	}
}

func TestCanTransition_IllegalMoves(t *testing.T) {
	illegal := [][2]string{
		{BookingStatusPending, BookingStatusCompleted},
		{BookingStatusPending, BookingStatusCompletedPendingVerify},
		{BookingStatusConfirmed, BookingStatusPending},
		{BookingStatusCancelled, BookingStatusPending},
		{BookingStatusCancelled, BookingStatusConfirmed},
		{BookingStatusCompleted, BookingStatusCancelled},
		{BookingStatusCompletedPendingVerify, BookingStatusCancelled},
		{BookingStatusPendingAddressVerification, BookingStatusConfirmed},
		{BookingStatusDisputed, BookingStatusConfirmed},
		{"unknown", BookingStatusPending},
	}
	for _, pair := range illegal {
		assert.False(t, CanTransition(pair[0], pair[1]), "%s -> %s should be rejected", pair[0], pair[1])
	}
}

func TestIsTerminalBookingStatus(t *testing.T) {
	assert.True(t, IsTerminalBookingStatus(BookingStatusCompleted))
	assert.True(t, IsTerminalBookingStatus(BookingStatusCancelled))
	assert.False(t, IsTerminalBookingStatus(BookingStatusPending))
	assert.False(t, IsTerminalBookingStatus(BookingStatusDisputed))
}

func TestQualityMetrics_DisputeRate(t *testing.T) {
	m := QualityMetrics{Completed30d: 20, Disputed30d: 3}
	assert.InDelta(t, 15.0, m.DisputeRate(), 0.0001)

	assert.Zero(t, QualityMetrics{}.DisputeRate())
}
