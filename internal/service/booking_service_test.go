package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/mowmarket/mowmarket-backend/internal/models"
	"github.com/mowmarket/mowmarket-backend/internal/repository"
)

func newBookingService(bookings *mockBookingStore, pricingData *mockPricingData, payouts *fakeReleaser, dispatcher *fakeDispatcher) *BookingService {
	return NewBookingService(bookings, pricingData, NewPricingService(), payouts, dispatcher, 0.50)
}

func verificationFixture(total float64) *models.Booking {
	return &models.Booking{
		ID:          uuid.New(),
		CustomerID:  uuid.New(),
		AddressID:   uuid.New(),
		ServiceDate: time.Date(2026, 9, 16, 0, 0, 0, 0, time.UTC),
		TimeSlot:    models.TimeSlotEarly,
		GrassLength: models.GrassLengthShort,
		TotalPrice:  total,
		Status:      models.BookingStatusPendingAddressVerification,
	}
}

func TestBookingService_AddressVerified_SubThresholdKeepsPrice(t *testing.T) {
	bookings := new(mockBookingStore)
	pricingData := new(mockPricingData)
	dispatcher := new(fakeDispatcher)
	svc := newBookingService(bookings, pricingData, new(fakeReleaser), dispatcher)
	ctx := context.Background()

	booking := verificationFixture(100)
	settings := testSettings()

	// 50 + 100.6 * 0.5 = 100.30, diff 0.30 under the 0.50 threshold
	pricingData.On("VerifiedProperty", ctx, booking.AddressID).Return(&models.Property{AreaSqm: 100.6, Tiers: 1}, nil)
	pricingData.On("Settings", ctx).Return(&settings, nil)
	bookings.On("ListByAddressAndStatus", ctx, booking.AddressID, models.BookingStatusPendingAddressVerification).Return([]models.Booking{*booking}, nil)
	bookings.On("SetVerifiedPending", ctx, booking.ID, 100.0, mock.Anything, models.BookingStatusPendingAddressVerification).Return(nil)

	err := svc.HandleAddressVerified(ctx, booking.AddressID)
	assert.NoError(t, err)
	bookings.AssertExpectations(t)
	bookings.AssertNotCalled(t, "SetPriceChangePending", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBookingService_AddressVerified_IncreaseNeedsApproval(t *testing.T) {
	bookings := new(mockBookingStore)
	pricingData := new(mockPricingData)
	dispatcher := new(fakeDispatcher)
	svc := newBookingService(bookings, pricingData, new(fakeReleaser), dispatcher)
	ctx := context.Background()

	booking := verificationFixture(100)
	settings := testSettings()

	// 50 + 130 * 0.5 = 115.00, diff 15 over the threshold
	pricingData.On("VerifiedProperty", ctx, booking.AddressID).Return(&models.Property{AreaSqm: 130, Tiers: 1}, nil)
	pricingData.On("Settings", ctx).Return(&settings, nil)
	bookings.On("ListByAddressAndStatus", ctx, booking.AddressID, models.BookingStatusPendingAddressVerification).Return([]models.Booking{*booking}, nil)
	bookings.On("SetPriceChangePending", ctx, booking.ID, 100.0, 115.0, mock.Anything, mock.Anything).Return(nil)

	err := svc.HandleAddressVerified(ctx, booking.AddressID)
	assert.NoError(t, err)
	bookings.AssertExpectations(t)

	if assert.Len(t, dispatcher.notices, 1) {
		assert.Equal(t, booking.CustomerID, dispatcher.notices[0].UserID)
		assert.True(t, dispatcher.notices[0].Email)
	}
}

func TestBookingService_AddressVerified_DecreaseAppliesLowerPrice(t *testing.T) {
	bookings := new(mockBookingStore)
	pricingData := new(mockPricingData)
	svc := newBookingService(bookings, pricingData, new(fakeReleaser), new(fakeDispatcher))
	ctx := context.Background()

	booking := verificationFixture(100)
	settings := testSettings()

	// 50 + 80 * 0.5 = 90.00
	pricingData.On("VerifiedProperty", ctx, booking.AddressID).Return(&models.Property{AreaSqm: 80, Tiers: 1}, nil)
	pricingData.On("Settings", ctx).Return(&settings, nil)
	bookings.On("ListByAddressAndStatus", ctx, booking.AddressID, models.BookingStatusPendingAddressVerification).Return([]models.Booking{*booking}, nil)
	bookings.On("SetVerifiedPending", ctx, booking.ID, 90.0, mock.Anything, models.BookingStatusPendingAddressVerification).Return(nil)

	err := svc.HandleAddressVerified(ctx, booking.AddressID)
	assert.NoError(t, err)
	bookings.AssertExpectations(t)
}

func TestBookingService_AddressRejected_CancelsAll(t *testing.T) {
	bookings := new(mockBookingStore)
	dispatcher := new(fakeDispatcher)
	svc := newBookingService(bookings, new(mockPricingData), new(fakeReleaser), dispatcher)
	ctx := context.Background()

	first := verificationFixture(100)
	second := verificationFixture(80)
	addressID := first.AddressID
	second.AddressID = addressID

	bookings.On("ListByAddressAndStatus", ctx, addressID, models.BookingStatusPendingAddressVerification).Return([]models.Booking{*first, *second}, nil)
	bookings.On("UpdateStatus", ctx, first.ID, models.BookingStatusPendingAddressVerification, models.BookingStatusCancelled).Return(nil)
	bookings.On("UpdateStatus", ctx, second.ID, models.BookingStatusPendingAddressVerification, models.BookingStatusCancelled).Return(nil)

	err := svc.HandleAddressRejected(ctx, addressID)
	assert.NoError(t, err)
	bookings.AssertExpectations(t)
	assert.Len(t, dispatcher.notices, 2)
}

func TestBookingService_ApprovePriceChange_WrongStatus(t *testing.T) {
	bookings := new(mockBookingStore)
	svc := newBookingService(bookings, new(mockPricingData), new(fakeReleaser), new(fakeDispatcher))
	ctx := context.Background()

	booking := verificationFixture(100)
	booking.Status = models.BookingStatusPending
	bookings.On("GetByID", ctx, booking.ID).Return(booking, nil)

	_, err := svc.ApprovePriceChange(ctx, booking.ID, booking.CustomerID)
	assert.Error(t, err)
	bookings.AssertNotCalled(t, "ApprovePriceChange", mock.Anything, mock.Anything)
}

func TestBookingService_ApprovePriceChange_NotOwner(t *testing.T) {
	bookings := new(mockBookingStore)
	svc := newBookingService(bookings, new(mockPricingData), new(fakeReleaser), new(fakeDispatcher))
	ctx := context.Background()

	booking := verificationFixture(115)
	booking.Status = models.BookingStatusPriceChangePending
	bookings.On("GetByID", ctx, booking.ID).Return(booking, nil)

	_, err := svc.ApprovePriceChange(ctx, booking.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotBookingOwner)
}

func TestBookingService_Cancel_IllegalFromCompleted(t *testing.T) {
	bookings := new(mockBookingStore)
	svc := newBookingService(bookings, new(mockPricingData), new(fakeReleaser), new(fakeDispatcher))
	ctx := context.Background()

	booking := verificationFixture(100)
	booking.Status = models.BookingStatusCompleted
	bookings.On("GetByID", ctx, booking.ID).Return(booking, nil)

	err := svc.Cancel(ctx, booking.ID, Identity{UserID: booking.CustomerID, Role: models.RoleCustomer})
	assert.Error(t, err)
	bookings.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBookingService_ApproveCompletion_ReleasesPayout(t *testing.T) {
	bookings := new(mockBookingStore)
	payouts := new(fakeReleaser)
	svc := newBookingService(bookings, new(mockPricingData), payouts, new(fakeDispatcher))
	ctx := context.Background()

	contractorID := uuid.New()
	booking := verificationFixture(100)
	booking.Status = models.BookingStatusCompletedPendingVerify
	booking.ContractorID = &contractorID

	bookings.On("GetByID", ctx, booking.ID).Return(booking, nil)
	bookings.On("SubmitRating", ctx, booking.ID, 5, (*string)(nil), false, mock.Anything).Return(nil)

	err := svc.ApproveCompletion(ctx, booking.ID, booking.CustomerID, 5, nil)
	assert.NoError(t, err)
	assert.Equal(t, []uuid.UUID{booking.ID}, payouts.released)
}

func TestBookingService_ApproveCompletion_StaleRowMeansAlreadyRated(t *testing.T) {
	bookings := new(mockBookingStore)
	payouts := new(fakeReleaser)
	svc := newBookingService(bookings, new(mockPricingData), payouts, new(fakeDispatcher))
	ctx := context.Background()

	contractorID := uuid.New()
	booking := verificationFixture(100)
	booking.Status = models.BookingStatusCompletedPendingVerify
	booking.ContractorID = &contractorID

	bookings.On("GetByID", ctx, booking.ID).Return(booking, nil)
	bookings.On("SubmitRating", ctx, booking.ID, 5, (*string)(nil), false, mock.Anything).Return(repository.ErrBookingStale)

	err := svc.ApproveCompletion(ctx, booking.ID, booking.CustomerID, 5, nil)
	assert.ErrorIs(t, err, ErrAlreadyRated)
	assert.Empty(t, payouts.released)
}

func TestBookingService_ApproveCompletion_StorageErrorPropagates(t *testing.T) {
	bookings := new(mockBookingStore)
	payouts := new(fakeReleaser)
	svc := newBookingService(bookings, new(mockPricingData), payouts, new(fakeDispatcher))
	ctx := context.Background()

	contractorID := uuid.New()
	booking := verificationFixture(100)
	booking.Status = models.BookingStatusCompletedPendingVerify
	booking.ContractorID = &contractorID

	dbErr := errors.New("pq: connection reset")
	bookings.On("GetByID", ctx, booking.ID).Return(booking, nil)
	bookings.On("SubmitRating", ctx, booking.ID, 5, (*string)(nil), false, mock.Anything).Return(dbErr)

	err := svc.ApproveCompletion(ctx, booking.ID, booking.CustomerID, 5, nil)
	assert.ErrorIs(t, err, dbErr)
	assert.NotErrorIs(t, err, ErrAlreadyRated)
	assert.Empty(t, payouts.released)
}

func TestBookingService_ApproveCompletion_RatingOutOfRange(t *testing.T) {
	bookings := new(mockBookingStore)
	svc := newBookingService(bookings, new(mockPricingData), new(fakeReleaser), new(fakeDispatcher))
	ctx := context.Background()

	contractorID := uuid.New()
	booking := verificationFixture(100)
	booking.Status = models.BookingStatusCompletedPendingVerify
	booking.ContractorID = &contractorID
	bookings.On("GetByID", ctx, booking.ID).Return(booking, nil)

	err := svc.ApproveCompletion(ctx, booking.ID, booking.CustomerID, 6, nil)
	assert.ErrorIs(t, err, ErrRatingOutOfRange)
}

func TestBookingService_ExpireStalePriceChanges(t *testing.T) {
	bookings := new(mockBookingStore)
	dispatcher := new(fakeDispatcher)
	svc := newBookingService(bookings, new(mockPricingData), new(fakeReleaser), dispatcher)
	ctx := context.Background()

	stale := verificationFixture(115)
	stale.Status = models.BookingStatusPriceChangePending
	cutoff := time.Date(2026, 9, 9, 0, 0, 0, 0, time.UTC)

	bookings.On("ListStalePriceChanges", ctx, cutoff).Return([]models.Booking{*stale}, nil)
	bookings.On("UpdateStatus", ctx, stale.ID, models.BookingStatusPriceChangePending, models.BookingStatusCancelled).Return(nil)

	cancelled, err := svc.ExpireStalePriceChanges(ctx, cutoff)
	assert.NoError(t, err)
	assert.Equal(t, 1, cancelled)
	assert.Len(t, dispatcher.notices, 1)
}
