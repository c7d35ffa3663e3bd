package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/mowmarket/mowmarket-backend/internal/models"
	"github.com/mowmarket/mowmarket-backend/internal/payments"
)

type mockBookingStore struct {
	mock.Mock
}

func (m *mockBookingStore) Create(ctx context.Context, b *models.Booking) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *mockBookingStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockBookingStore) ListByAddressAndStatus(ctx context.Context, addressID uuid.UUID, status string) ([]models.Booking, error) {
	args := m.Called(ctx, addressID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *mockBookingStore) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.Booking, error) {
	args := m.Called(ctx, customerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *mockBookingStore) ListByContractor(ctx context.Context, contractorID uuid.UUID, limit, offset int) ([]models.Booking, error) {
	args := m.Called(ctx, contractorID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *mockBookingStore) ListPending(ctx context.Context, limit, offset int) ([]models.Booking, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *mockBookingStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	args := m.Called(ctx, id, from, to)
	return args.Error(0)
}

func (m *mockBookingStore) SetPriceChangePending(ctx context.Context, id uuid.UUID, originalPrice, newTotal float64, quote models.QuoteBreakdown, notifiedAt time.Time) error {
	args := m.Called(ctx, id, originalPrice, newTotal, quote, notifiedAt)
	return args.Error(0)
}

func (m *mockBookingStore) SetVerifiedPending(ctx context.Context, id uuid.UUID, total float64, quote models.QuoteBreakdown, from string) error {
	args := m.Called(ctx, id, total, quote, from)
	return args.Error(0)
}

func (m *mockBookingStore) ApprovePriceChange(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockBookingStore) SubmitRating(ctx context.Context, id uuid.UUID, rating int, comment *string, system bool, at time.Time) error {
	args := m.Called(ctx, id, rating, comment, system, at)
	return args.Error(0)
}

func (m *mockBookingStore) SetContractorReply(ctx context.Context, id, contractorID uuid.UUID, reply string) error {
	args := m.Called(ctx, id, contractorID, reply)
	return args.Error(0)
}

func (m *mockBookingStore) ListStalePriceChanges(ctx context.Context, cutoff time.Time) ([]models.Booking, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *mockBookingStore) Claim(ctx context.Context, id, contractorID uuid.UUID) error {
	args := m.Called(ctx, id, contractorID)
	return args.Error(0)
}

func (m *mockBookingStore) ReleaseClaim(ctx context.Context, id, contractorID uuid.UUID) error {
	args := m.Called(ctx, id, contractorID)
	return args.Error(0)
}

func (m *mockBookingStore) ConfirmAssignment(ctx context.Context, id, contractorID uuid.UUID, chargeRef string, at time.Time) error {
	args := m.Called(ctx, id, contractorID, chargeRef, at)
	return args.Error(0)
}

func (m *mockBookingStore) Reschedule(ctx context.Context, id uuid.UUID, date time.Time, slot string, weekend bool) error {
	args := m.Called(ctx, id, date, slot, weekend)
	return args.Error(0)
}

func (m *mockBookingStore) CountActiveByContractor(ctx context.Context, contractorID uuid.UUID) (int, error) {
	args := m.Called(ctx, contractorID)
	return args.Int(0), args.Error(1)
}

func (m *mockBookingStore) CreateSuggestion(ctx context.Context, s *models.TimeSuggestion) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *mockBookingStore) GetSuggestion(ctx context.Context, id uuid.UUID) (*models.TimeSuggestion, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TimeSuggestion), args.Error(1)
}

func (m *mockBookingStore) ListSuggestions(ctx context.Context, bookingID uuid.UUID) ([]models.TimeSuggestion, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TimeSuggestion), args.Error(1)
}

func (m *mockBookingStore) AcceptSuggestion(ctx context.Context, id, bookingID uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, bookingID, at)
	return args.Error(0)
}

func (m *mockBookingStore) DeclineSuggestion(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *mockBookingStore) Complete(ctx context.Context, id uuid.UUID, status, payoutStatus string, issues []string, notes *string, at time.Time) error {
	args := m.Called(ctx, id, status, payoutStatus, issues, notes, at)
	return args.Error(0)
}

func (m *mockBookingStore) MarkPayoutReleased(ctx context.Context, id uuid.UUID, payoutRef string, at time.Time) error {
	args := m.Called(ctx, id, payoutRef, at)
	return args.Error(0)
}

func (m *mockBookingStore) SetPayoutStatus(ctx context.Context, id uuid.UUID, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *mockBookingStore) ListAutoReleasable(ctx context.Context, cutoff time.Time) ([]models.Booking, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

type mockContractorStore struct {
	mock.Mock
}

func (m *mockContractorStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Contractor, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contractor), args.Error(1)
}

func (m *mockContractorStore) TouchLastActive(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *mockContractorStore) RecordCompletion(ctx context.Context, id uuid.UUID, earnings float64, at time.Time) error {
	args := m.Called(ctx, id, earnings, at)
	return args.Error(0)
}

func (m *mockContractorStore) ListActiveApproved(ctx context.Context) ([]models.Contractor, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Contractor), args.Error(1)
}

func (m *mockContractorStore) QualityMetrics(ctx context.Context, contractorID uuid.UUID, now time.Time) (*models.QualityMetrics, error) {
	args := m.Called(ctx, contractorID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QualityMetrics), args.Error(1)
}

func (m *mockContractorStore) UpdateStanding(ctx context.Context, c *models.Contractor) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) Charge(ctx context.Context, paymentMethodRef string, amountCents int64, bookingID uuid.UUID) (*payments.ChargeResult, error) {
	args := m.Called(ctx, paymentMethodRef, amountCents, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.ChargeResult), args.Error(1)
}

func (m *mockProcessor) Transfer(ctx context.Context, accountRef string, amountCents int64, bookingID uuid.UUID) (*payments.TransferResult, error) {
	args := m.Called(ctx, accountRef, amountCents, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.TransferResult), args.Error(1)
}

func (m *mockProcessor) Refund(ctx context.Context, chargeRef string, amountCents int64, platformFunded bool) (*payments.RefundResult, error) {
	args := m.Called(ctx, chargeRef, amountCents, platformFunded)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.RefundResult), args.Error(1)
}

type mockBilling struct {
	mock.Mock
}

func (m *mockBilling) PaymentMethodRef(ctx context.Context, userID uuid.UUID) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

type mockPhotoCounter struct {
	mock.Mock
}

func (m *mockPhotoCounter) CountByKind(ctx context.Context, bookingID, contractorID uuid.UUID, kind string) (int, error) {
	args := m.Called(ctx, bookingID, contractorID, kind)
	return args.Int(0), args.Error(1)
}

type mockDisputeStore struct {
	mock.Mock
}

func (m *mockDisputeStore) Create(ctx context.Context, d *models.Dispute) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *mockDisputeStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeStore) GetOpenByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeStore) AddCounterEvidence(ctx context.Context, id uuid.UUID, paths []string) error {
	args := m.Called(ctx, id, paths)
	return args.Error(0)
}

func (m *mockDisputeStore) MarkUnderReview(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockDisputeStore) Resolve(ctx context.Context, id uuid.UUID, resolution string, refundPercent *float64, resolvedBy uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, resolution, refundPercent, resolvedBy, at)
	return args.Error(0)
}

func (m *mockDisputeStore) ListOpen(ctx context.Context, limit, offset int) ([]models.Dispute, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Dispute), args.Error(1)
}

func (m *mockDisputeStore) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Dispute), args.Error(1)
}

type mockPricingData struct {
	mock.Mock
}

func (m *mockPricingData) Settings(ctx context.Context) (*models.PricingSettings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PricingSettings), args.Error(1)
}

func (m *mockPricingData) VerifiedProperty(ctx context.Context, addressID uuid.UUID) (*models.Property, error) {
	args := m.Called(ctx, addressID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Property), args.Error(1)
}

// fakeDispatcher records dispatched notices; delivery is fire-and-forget so
// tests only assert on what was produced.
type fakeDispatcher struct {
	notices []models.Notice
}

func (f *fakeDispatcher) Dispatch(_ context.Context, notices []models.Notice) {
	f.notices = append(f.notices, notices...)
}

// fakeReleaser stands in for the payout engine on the customer approval path.
type fakeReleaser struct {
	released []uuid.UUID
	err      error
}

func (f *fakeReleaser) Release(_ context.Context, bookingID uuid.UUID, _ time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.released = append(f.released, bookingID)
	return nil
}
