package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/mowmarket/mowmarket-backend/internal/models"
	"github.com/mowmarket/mowmarket-backend/internal/payments"
	"github.com/mowmarket/mowmarket-backend/internal/repository"
)

func newDisputeService(disputes *mockDisputeStore, bookings *mockBookingStore, contractors *mockContractorStore, processor *mockProcessor, dispatcher *fakeDispatcher) *DisputeService {
	return NewDisputeService(disputes, bookings, contractors, processor, dispatcher, 0.85)
}

func disputableBooking(contractorID uuid.UUID) *models.Booking {
	chargeRef := "ch_9"
	return &models.Booking{
		ID:               uuid.New(),
		CustomerID:       uuid.New(),
		ContractorID:     &contractorID,
		TotalPrice:       100,
		Status:           models.BookingStatusCompletedPendingVerify,
		PaymentStatus:    models.PaymentStatusPaid,
		PaymentIntentRef: &chargeRef,
		PayoutStatus:     models.PayoutStatusPending,
	}
}

func TestDisputeService_Create_FreezesPayout(t *testing.T) {
	disputes := new(mockDisputeStore)
	bookings := new(mockBookingStore)
	dispatcher := new(fakeDispatcher)
	svc := newDisputeService(disputes, bookings, new(mockContractorStore), new(mockProcessor), dispatcher)
	ctx := context.Background()

	booking := disputableBooking(uuid.New())
	raiser := Identity{UserID: booking.CustomerID, Role: models.RoleCustomer}

	bookings.On("GetByID", ctx, booking.ID).Return(booking, nil)
	disputes.On("GetOpenByBookingID", ctx, booking.ID).Return(nil, repository.ErrDisputeNotFound)
	bookings.On("UpdateStatus", ctx, booking.ID, models.BookingStatusCompletedPendingVerify, models.BookingStatusDisputed).Return(nil)
	bookings.On("SetPayoutStatus", ctx, booking.ID, models.PayoutStatusFrozen).Return(nil)
	disputes.On("Create", ctx, mock.Anything).Return(nil)

	dispute, err := svc.Create(ctx, booking.ID, raiser, CreateDisputeInput{
		ReasonTag:   "incomplete_lawn",
		Description: "Half the back yard is untouched",
	})
	assert.NoError(t, err)
	assert.False(t, dispute.PostPayment)
	bookings.AssertExpectations(t)
}

func TestDisputeService_Create_PostPayment(t *testing.T) {
	disputes := new(mockDisputeStore)
	bookings := new(mockBookingStore)
	svc := newDisputeService(disputes, bookings, new(mockContractorStore), new(mockProcessor), new(fakeDispatcher))
	ctx := context.Background()

	booking := disputableBooking(uuid.New())
	booking.Status = models.BookingStatusCompleted
	booking.PayoutStatus = models.PayoutStatusReleased
	raiser := Identity{UserID: booking.CustomerID, Role: models.RoleCustomer}

	bookings.On("GetByID", ctx, booking.ID).Return(booking, nil)
	disputes.On("GetOpenByBookingID", ctx, booking.ID).Return(nil, repository.ErrDisputeNotFound)
	bookings.On("UpdateStatus", ctx, booking.ID, models.BookingStatusCompleted, models.BookingStatusPostPaymentDispute).Return(nil)
	disputes.On("Create", ctx, mock.Anything).Return(nil)

	dispute, err := svc.Create(ctx, booking.ID, raiser, CreateDisputeInput{
		ReasonTag:   "property_damage",
		Description: "Fence panel broken",
	})
	assert.NoError(t, err)
	assert.True(t, dispute.PostPayment)
	bookings.AssertNotCalled(t, "SetPayoutStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestDisputeService_Create_DuplicateRejected(t *testing.T) {
	disputes := new(mockDisputeStore)
	bookings := new(mockBookingStore)
	svc := newDisputeService(disputes, bookings, new(mockContractorStore), new(mockProcessor), new(fakeDispatcher))
	ctx := context.Background()

	booking := disputableBooking(uuid.New())
	raiser := Identity{UserID: booking.CustomerID, Role: models.RoleCustomer}

	bookings.On("GetByID", ctx, booking.ID).Return(booking, nil)
	disputes.On("GetOpenByBookingID", ctx, booking.ID).Return(&models.Dispute{ID: uuid.New()}, nil)

	_, err := svc.Create(ctx, booking.ID, raiser, CreateDisputeInput{ReasonTag: "other", Description: "x"})
	assert.ErrorIs(t, err, ErrDisputeAlreadyOpen)
}

func TestDisputeService_Create_Outsider(t *testing.T) {
	disputes := new(mockDisputeStore)
	bookings := new(mockBookingStore)
	svc := newDisputeService(disputes, bookings, new(mockContractorStore), new(mockProcessor), new(fakeDispatcher))
	ctx := context.Background()

	booking := disputableBooking(uuid.New())
	bookings.On("GetByID", ctx, booking.ID).Return(booking, nil)

	_, err := svc.Create(ctx, booking.ID, Identity{UserID: uuid.New(), Role: models.RoleCustomer}, CreateDisputeInput{ReasonTag: "other", Description: "x"})
	assert.ErrorIs(t, err, ErrNotDisputeParty)
}

func TestDisputeService_Create_InvalidInput(t *testing.T) {
	svc := newDisputeService(new(mockDisputeStore), new(mockBookingStore), new(mockContractorStore), new(mockProcessor), new(fakeDispatcher))
	ctx := context.Background()
	raiser := Identity{UserID: uuid.New(), Role: models.RoleCustomer}

	_, err := svc.Create(ctx, uuid.New(), raiser, CreateDisputeInput{ReasonTag: "other"})
	assert.ErrorIs(t, err, ErrDisputeFieldsMissing)

	over := 150.0
	_, err = svc.Create(ctx, uuid.New(), raiser, CreateDisputeInput{ReasonTag: "other", Description: "x", SuggestedRefund: &over})
	assert.ErrorIs(t, err, ErrSuggestedRefundRange)
}

func TestDisputeService_Resolve_PartialRefund(t *testing.T) {
	disputes := new(mockDisputeStore)
	bookings := new(mockBookingStore)
	contractors := new(mockContractorStore)
	processor := new(mockProcessor)
	svc := newDisputeService(disputes, bookings, contractors, processor, new(fakeDispatcher))
	ctx := context.Background()

	contractor := approvedContractor(models.TierStandard)
	booking := disputableBooking(contractor.ID)
	booking.Status = models.BookingStatusDisputed
	booking.PayoutStatus = models.PayoutStatusFrozen
	dispute := &models.Dispute{ID: uuid.New(), BookingID: booking.ID, Status: models.DisputeStatusPending}
	adminID := uuid.New()
	pct := 40.0

	disputes.On("GetByID", ctx, dispute.ID).Return(dispute, nil)
	bookings.On("GetByID", ctx, booking.ID).Return(booking, nil)
	disputes.On("Resolve", ctx, dispute.ID, models.ResolutionPartialRefund, &pct, adminID, mock.Anything).Return(nil)
	// customer refunded 40, contractor paid 0.85 * 60 = 51
	processor.On("Refund", ctx, "ch_9", int64(4000), false).Return(&payments.RefundResult{RefundRef: "re_1"}, nil)
	contractors.On("GetByID", ctx, contractor.ID).Return(contractor, nil)
	processor.On("Transfer", ctx, "acct_123", int64(5100), booking.ID).Return(&payments.TransferResult{TransferRef: "tr_9"}, nil)
	bookings.On("SetPayoutStatus", ctx, booking.ID, models.PayoutStatusPending).Return(nil)
	bookings.On("MarkPayoutReleased", ctx, booking.ID, mock.Anything, mock.Anything).Return(nil)
	contractors.On("RecordCompletion", ctx, contractor.ID, 51.0, mock.Anything).Return(nil)
	bookings.On("UpdateStatus", ctx, booking.ID, models.BookingStatusDisputed, models.BookingStatusCompleted).Return(nil)

	err := svc.Resolve(ctx, dispute.ID, adminID, models.ResolutionPartialRefund, &pct)
	assert.NoError(t, err)
	processor.AssertExpectations(t)
	bookings.AssertExpectations(t)
}

func TestDisputeService_Resolve_FullRefund(t *testing.T) {
	disputes := new(mockDisputeStore)
	bookings := new(mockBookingStore)
	processor := new(mockProcessor)
	svc := newDisputeService(disputes, bookings, new(mockContractorStore), processor, new(fakeDispatcher))
	ctx := context.Background()

	booking := disputableBooking(uuid.New())
	booking.Status = models.BookingStatusDisputed
	booking.PayoutStatus = models.PayoutStatusFrozen
	dispute := &models.Dispute{ID: uuid.New(), BookingID: booking.ID, Status: models.DisputeStatusPending}
	adminID := uuid.New()

	disputes.On("GetByID", ctx, dispute.ID).Return(dispute, nil)
	bookings.On("GetByID", ctx, booking.ID).Return(booking, nil)
	disputes.On("Resolve", ctx, dispute.ID, models.ResolutionFullRefund, mock.Anything, adminID, mock.Anything).Return(nil)
	processor.On("Refund", ctx, "ch_9", int64(10000), false).Return(&payments.RefundResult{RefundRef: "re_2"}, nil)
	bookings.On("SetPayoutStatus", ctx, booking.ID, models.PayoutStatusRefunded).Return(nil)
	bookings.On("UpdateStatus", ctx, booking.ID, models.BookingStatusDisputed, models.BookingStatusCancelled).Return(nil)

	err := svc.Resolve(ctx, dispute.ID, adminID, models.ResolutionFullRefund, nil)
	assert.NoError(t, err)
	processor.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	bookings.AssertExpectations(t)
}

func TestDisputeService_Resolve_PostPaymentRefundIsPlatformFunded(t *testing.T) {
	disputes := new(mockDisputeStore)
	bookings := new(mockBookingStore)
	processor := new(mockProcessor)
	svc := newDisputeService(disputes, bookings, new(mockContractorStore), processor, new(fakeDispatcher))
	ctx := context.Background()

	booking := disputableBooking(uuid.New())
	booking.Status = models.BookingStatusPostPaymentDispute
	booking.PayoutStatus = models.PayoutStatusReleased
	dispute := &models.Dispute{ID: uuid.New(), BookingID: booking.ID, Status: models.DisputeStatusPending, PostPayment: true}
	adminID := uuid.New()
	pct := 50.0

	disputes.On("GetByID", ctx, dispute.ID).Return(dispute, nil)
	bookings.On("GetByID", ctx, booking.ID).Return(booking, nil)
	disputes.On("Resolve", ctx, dispute.ID, models.ResolutionPartialRefund, &pct, adminID, mock.Anything).Return(nil)
	processor.On("Refund", ctx, "ch_9", int64(5000), true).Return(&payments.RefundResult{RefundRef: "re_3"}, nil)
	bookings.On("UpdateStatus", ctx, booking.ID, models.BookingStatusPostPaymentDispute, models.BookingStatusCompleted).Return(nil)

	err := svc.Resolve(ctx, dispute.ID, adminID, models.ResolutionPartialRefund, &pct)
	assert.NoError(t, err)
	processor.AssertExpectations(t)
	processor.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDisputeService_Resolve_SecondAttemptRejected(t *testing.T) {
	disputes := new(mockDisputeStore)
	bookings := new(mockBookingStore)
	svc := newDisputeService(disputes, bookings, new(mockContractorStore), new(mockProcessor), new(fakeDispatcher))
	ctx := context.Background()

	booking := disputableBooking(uuid.New())
	dispute := &models.Dispute{ID: uuid.New(), BookingID: booking.ID, Status: models.DisputeStatusResolved}
	adminID := uuid.New()

	disputes.On("GetByID", ctx, dispute.ID).Return(dispute, nil)
	bookings.On("GetByID", ctx, booking.ID).Return(booking, nil)
	disputes.On("Resolve", ctx, dispute.ID, models.ResolutionNoRefund, (*float64)(nil), adminID, mock.Anything).Return(repository.ErrDisputeResolved)

	err := svc.Resolve(ctx, dispute.ID, adminID, models.ResolutionNoRefund, nil)
	assert.ErrorIs(t, err, ErrDisputeClosed)
}

func TestDisputeService_Resolve_PartialRefundBounds(t *testing.T) {
	svc := newDisputeService(new(mockDisputeStore), new(mockBookingStore), new(mockContractorStore), new(mockProcessor), new(fakeDispatcher))
	ctx := context.Background()

	low := 2.0
	err := svc.Resolve(ctx, uuid.New(), uuid.New(), models.ResolutionPartialRefund, &low)
	assert.ErrorIs(t, err, ErrInvalidRefundPercent)

	err = svc.Resolve(ctx, uuid.New(), uuid.New(), models.ResolutionPartialRefund, nil)
	assert.ErrorIs(t, err, ErrInvalidRefundPercent)
}

func TestDisputeService_AdjudicateIssues_PartialRefund(t *testing.T) {
	disputes := new(mockDisputeStore)
	bookings := new(mockBookingStore)
	contractors := new(mockContractorStore)
	processor := new(mockProcessor)
	svc := newDisputeService(disputes, bookings, contractors, processor, new(fakeDispatcher))
	ctx := context.Background()

	contractor := approvedContractor(models.TierStandard)
	booking := disputableBooking(contractor.ID)
	booking.Status = models.BookingStatusCompletedWithIssues
	booking.PayoutStatus = models.PayoutStatusFrozen
	adminID := uuid.New()
	pct := 40.0

	bookings.On("GetByID", ctx, booking.ID).Return(booking, nil)
	processor.On("Refund", ctx, "ch_9", int64(4000), false).Return(&payments.RefundResult{RefundRef: "re_4"}, nil)
	contractors.On("GetByID", ctx, contractor.ID).Return(contractor, nil)
	processor.On("Transfer", ctx, "acct_123", int64(5100), booking.ID).Return(&payments.TransferResult{TransferRef: "tr_10"}, nil)
	bookings.On("SetPayoutStatus", ctx, booking.ID, models.PayoutStatusPending).Return(nil)
	bookings.On("MarkPayoutReleased", ctx, booking.ID, mock.Anything, mock.Anything).Return(nil)
	contractors.On("RecordCompletion", ctx, contractor.ID, 51.0, mock.Anything).Return(nil)
	bookings.On("UpdateStatus", ctx, booking.ID, models.BookingStatusCompletedWithIssues, models.BookingStatusCompleted).Return(nil)

	err := svc.AdjudicateIssues(ctx, booking.ID, adminID, models.ResolutionPartialRefund, &pct)
	assert.NoError(t, err)
	processor.AssertExpectations(t)
	bookings.AssertExpectations(t)
}
