package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/mowmarket/mowmarket-backend/internal/models"
	"github.com/mowmarket/mowmarket-backend/internal/pkg/apperror"
)

func confirmedBooking(contractorID uuid.UUID) *models.Booking {
	return &models.Booking{
		ID:           uuid.New(),
		CustomerID:   uuid.New(),
		ContractorID: &contractorID,
		TotalPrice:   120,
		Status:       models.BookingStatusConfirmed,
	}
}

func TestCompletionService_Complete_NoIssues(t *testing.T) {
	bookings := new(mockBookingStore)
	photos := new(mockPhotoCounter)
	dispatcher := new(fakeDispatcher)
	svc := NewCompletionService(bookings, photos, dispatcher, 4)
	ctx := context.Background()

	contractorID := uuid.New()
	booking := confirmedBooking(contractorID)

	bookings.On("GetByID", ctx, booking.ID).Return(booking, nil)
	photos.On("CountByKind", ctx, booking.ID, contractorID, models.PhotoKindBefore).Return(4, nil)
	photos.On("CountByKind", ctx, booking.ID, contractorID, models.PhotoKindAfter).Return(5, nil)
	bookings.On("Complete", ctx, booking.ID, models.BookingStatusCompletedPendingVerify, models.PayoutStatusPending, []string(nil), (*string)(nil), mock.Anything).Return(nil)

	_, err := svc.Complete(ctx, booking.ID, contractorID, CompletionInput{})
	assert.NoError(t, err)
	bookings.AssertExpectations(t)

	if assert.Len(t, dispatcher.notices, 2) {
		assert.Equal(t, booking.CustomerID, dispatcher.notices[0].UserID)
		assert.Equal(t, contractorID, dispatcher.notices[1].UserID)
	}
}

func TestCompletionService_Complete_WithIssuesFreezesPayout(t *testing.T) {
	bookings := new(mockBookingStore)
	photos := new(mockPhotoCounter)
	dispatcher := new(fakeDispatcher)
	svc := NewCompletionService(bookings, photos, dispatcher, 4)
	ctx := context.Background()

	contractorID := uuid.New()
	booking := confirmedBooking(contractorID)
	issues := []string{models.IssueTagPropertyDamage}

	bookings.On("GetByID", ctx, booking.ID).Return(booking, nil)
	photos.On("CountByKind", ctx, booking.ID, contractorID, models.PhotoKindBefore).Return(4, nil)
	photos.On("CountByKind", ctx, booking.ID, contractorID, models.PhotoKindAfter).Return(4, nil)
	bookings.On("Complete", ctx, booking.ID, models.BookingStatusCompletedWithIssues, models.PayoutStatusFrozen, issues, (*string)(nil), mock.Anything).Return(nil)

	_, err := svc.Complete(ctx, booking.ID, contractorID, CompletionInput{IssueTags: issues})
	assert.NoError(t, err)
	bookings.AssertExpectations(t)

	var adminAlerted bool
	for _, n := range dispatcher.notices {
		if n.AdminWide {
			adminAlerted = true
		}
	}
	assert.True(t, adminAlerted)
}

func TestCompletionService_Complete_InsufficientBeforePhotos(t *testing.T) {
	bookings := new(mockBookingStore)
	photos := new(mockPhotoCounter)
	svc := NewCompletionService(bookings, photos, new(fakeDispatcher), 4)
	ctx := context.Background()

	contractorID := uuid.New()
	booking := confirmedBooking(contractorID)

	bookings.On("GetByID", ctx, booking.ID).Return(booking, nil)
	photos.On("CountByKind", ctx, booking.ID, contractorID, models.PhotoKindBefore).Return(2, nil)

	_, err := svc.Complete(ctx, booking.ID, contractorID, CompletionInput{})

	var evidenceErr *InsufficientEvidenceError
	if assert.ErrorAs(t, err, &evidenceErr) {
		assert.Equal(t, models.PhotoKindBefore, evidenceErr.Kind)
		assert.Equal(t, 2, evidenceErr.Have)
		assert.Equal(t, 4, evidenceErr.Required)
	}
	bookings.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCompletionService_Complete_NotAssignedContractor(t *testing.T) {
	bookings := new(mockBookingStore)
	svc := NewCompletionService(bookings, new(mockPhotoCounter), new(fakeDispatcher), 4)
	ctx := context.Background()

	booking := confirmedBooking(uuid.New())
	bookings.On("GetByID", ctx, booking.ID).Return(booking, nil)

	_, err := svc.Complete(ctx, booking.ID, uuid.New(), CompletionInput{})
	assert.ErrorIs(t, err, ErrNotAssignedContractor)
}

func TestCompletionService_Complete_UnknownIssueTag(t *testing.T) {
	bookings := new(mockBookingStore)
	svc := NewCompletionService(bookings, new(mockPhotoCounter), new(fakeDispatcher), 4)
	ctx := context.Background()

	contractorID := uuid.New()
	booking := confirmedBooking(contractorID)
	bookings.On("GetByID", ctx, booking.ID).Return(booking, nil)

	_, err := svc.Complete(ctx, booking.ID, contractorID, CompletionInput{IssueTags: []string{"meteor_strike"}})
	assert.True(t, apperror.IsValidation(err))
}

func TestCompletionService_Complete_NotConfirmed(t *testing.T) {
	bookings := new(mockBookingStore)
	svc := NewCompletionService(bookings, new(mockPhotoCounter), new(fakeDispatcher), 4)
	ctx := context.Background()

	contractorID := uuid.New()
	booking := confirmedBooking(contractorID)
	booking.Status = models.BookingStatusCompleted
	bookings.On("GetByID", ctx, booking.ID).Return(booking, nil)

	_, err := svc.Complete(ctx, booking.ID, contractorID, CompletionInput{})
	assert.ErrorIs(t, err, ErrJobNotCompletable)
}
