package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mowmarket/mowmarket-backend/internal/logger"
	"github.com/mowmarket/mowmarket-backend/internal/models"
	"github.com/mowmarket/mowmarket-backend/internal/pkg/apperror"
	"github.com/mowmarket/mowmarket-backend/internal/repository"
)

var (
	ErrNotBookingOwner    = errors.New("booking belongs to another customer")
	ErrRatingOutOfRange   = errors.New("rating must be between 1 and 5")
	ErrAlreadyRated       = errors.New("booking already has a rating")
	ErrNoContractorToRate = errors.New("booking has no assigned contractor")
)

// BookingStore is the storage surface the booking lifecycle needs.
type BookingStore interface {
	Create(ctx context.Context, b *models.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	ListByAddressAndStatus(ctx context.Context, addressID uuid.UUID, status string) ([]models.Booking, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.Booking, error)
	ListByContractor(ctx context.Context, contractorID uuid.UUID, limit, offset int) ([]models.Booking, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error
	SetPriceChangePending(ctx context.Context, id uuid.UUID, originalPrice, newTotal float64, quote models.QuoteBreakdown, notifiedAt time.Time) error
	SetVerifiedPending(ctx context.Context, id uuid.UUID, total float64, quote models.QuoteBreakdown, from string) error
	ApprovePriceChange(ctx context.Context, id uuid.UUID) error
	SubmitRating(ctx context.Context, id uuid.UUID, rating int, comment *string, system bool, at time.Time) error
	SetContractorReply(ctx context.Context, id, contractorID uuid.UUID, reply string) error
	ListStalePriceChanges(ctx context.Context, cutoff time.Time) ([]models.Booking, error)
}

// PricingStore supplies settings and verified property data for recomputes.
type PricingStore interface {
	Settings(ctx context.Context) (*models.PricingSettings, error)
	VerifiedProperty(ctx context.Context, addressID uuid.UUID) (*models.Property, error)
}

// PayoutReleaser triggers settlement after customer approval.
type PayoutReleaser interface {
	Release(ctx context.Context, bookingID uuid.UUID, now time.Time) error
}

// BookingService owns the booking lifecycle: creation, the address
// verification gate, price-change approvals, cancellation and ratings.
type BookingService struct {
	bookings    BookingStore
	pricingData PricingStore
	pricing     *PricingService
	payouts     PayoutReleaser
	dispatcher  Dispatcher

	priceChangeThreshold float64
}

func NewBookingService(bookings BookingStore, pricingData PricingStore, pricing *PricingService, payouts PayoutReleaser, dispatcher Dispatcher, priceChangeThreshold float64) *BookingService {
	return &BookingService{
		bookings:             bookings,
		pricingData:          pricingData,
		pricing:              pricing,
		payouts:              payouts,
		dispatcher:           dispatcher,
		priceChangeThreshold: priceChangeThreshold,
	}
}

// CreateBookingInput carries the customer's booking request. The property
// attributes are the customer's own estimate; the authoritative values arrive
// with address verification.
type CreateBookingInput struct {
	AddressID             uuid.UUID
	PreferredContractorID *uuid.UUID
	ServiceDate           time.Time
	TimeSlot              string
	GrassLength           string
	ClippingsRemoval      bool
	PublicHoliday         bool
	EstimatedProperty     models.Property
}

// CreateBooking quotes and stores a new booking awaiting address verification.
func (s *BookingService) CreateBooking(ctx context.Context, customerID uuid.UUID, in CreateBookingInput) (*models.Booking, error) {
	if _, ok := models.ValidTimeSlots[in.TimeSlot]; !ok {
		return nil, apperror.Newf(apperror.ErrCodeValidation, "unknown time slot %q", in.TimeSlot)
	}
	if _, ok := models.ValidGrassLengths[in.GrassLength]; !ok {
		return nil, apperror.Newf(apperror.ErrCodeValidation, "unknown grass length %q", in.GrassLength)
	}
	if in.ServiceDate.Before(time.Now().Truncate(24 * time.Hour)) {
		return nil, apperror.New(apperror.ErrCodeValidation, "service date must not be in the past")
	}

	settings, err := s.pricingData.Settings(ctx)
	if err != nil {
		return nil, err
	}

	weekend := IsWeekend(in.ServiceDate)
	quote := s.pricing.Quote(*settings, QuoteInput{
		Property:         in.EstimatedProperty,
		GrassLength:      in.GrassLength,
		ClippingsRemoval: in.ClippingsRemoval,
		ServiceDate:      in.ServiceDate,
		Weekend:          weekend,
		PublicHoliday:    in.PublicHoliday,
	})

	booking := &models.Booking{
		CustomerID:            customerID,
		PreferredContractorID: in.PreferredContractorID,
		AddressID:             in.AddressID,
		ServiceDate:           in.ServiceDate,
		TimeSlot:              in.TimeSlot,
		Weekend:               weekend,
		PublicHoliday:         in.PublicHoliday,
		GrassLength:           in.GrassLength,
		ClippingsRemoval:      in.ClippingsRemoval,
		TotalPrice:            quote.Total,
		Quote:                 quote,
		Status:                models.BookingStatusPendingAddressVerification,
		PaymentStatus:         models.PaymentStatusUnpaid,
		PayoutStatus:          models.PayoutStatusPending,
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

// GetBooking returns one booking after a visibility check.
func (s *BookingService) GetBooking(ctx context.Context, id uuid.UUID, caller Identity) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSeeBooking(booking, caller) {
		return nil, apperror.ErrForbidden
	}
	return booking, nil
}

// ListCustomerBookings returns a customer's bookings.
func (s *BookingService) ListCustomerBookings(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.Booking, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.bookings.ListByCustomer(ctx, customerID, limit, offset)
}

// ListContractorBookings returns a contractor's assigned bookings.
func (s *BookingService) ListContractorBookings(ctx context.Context, contractorID uuid.UUID, limit, offset int) ([]models.Booking, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.bookings.ListByContractor(ctx, contractorID, limit, offset)
}

// HandleAddressVerified runs the verification gate over every booking parked
// on the address. Price increases beyond the threshold require explicit
// customer approval; equal or lower recomputes go straight to the pool.
// Never silently charge more than quoted.
func (s *BookingService) HandleAddressVerified(ctx context.Context, addressID uuid.UUID) error {
	property, err := s.pricingData.VerifiedProperty(ctx, addressID)
	if err != nil {
		return err
	}
	settings, err := s.pricingData.Settings(ctx)
	if err != nil {
		return err
	}

	pending, err := s.bookings.ListByAddressAndStatus(ctx, addressID, models.BookingStatusPendingAddressVerification)
	if err != nil {
		return err
	}

	var failed int
	for i := range pending {
		booking := &pending[i]
		if err := s.verifyOne(ctx, booking, *property, *settings); err != nil {
			failed++
			logger.Log.WithError(err).WithField("booking_id", booking.ID).Error("address gate: booking processing failed")
		}
	}
	if failed > 0 {
		return fmt.Errorf("address gate: %d of %d bookings failed", failed, len(pending))
	}
	return nil
}

func (s *BookingService) verifyOne(ctx context.Context, booking *models.Booking, property models.Property, settings models.PricingSettings) error {
	quote := s.pricing.Quote(settings, QuoteInput{
		Property:         property,
		GrassLength:      booking.GrassLength,
		ClippingsRemoval: booking.ClippingsRemoval,
		ServiceDate:      booking.ServiceDate,
		Weekend:          booking.Weekend,
		PublicHoliday:    booking.PublicHoliday,
	})

	now := time.Now().UTC()
	diff := quote.Total - booking.TotalPrice

	switch {
	case diff > s.priceChangeThreshold:
		if err := s.bookings.SetPriceChangePending(ctx, booking.ID, booking.TotalPrice, quote.Total, quote, now); err != nil {
			return err
		}
		s.dispatcher.Dispatch(ctx, []models.Notice{{
			UserID:    booking.CustomerID,
			Title:     "Price update needs your approval",
			Message:   fmt.Sprintf("Your verified property details changed the quote from $%.2f to $%.2f. Approve within 7 days or the booking will be cancelled.", booking.TotalPrice, quote.Total),
			Severity:  models.SeverityWarning,
			BookingID: &booking.ID,
			Email:     true,
		}})

	case diff < 0:
		// Decreases apply directly; no approval needed to charge less.
		if err := s.bookings.SetVerifiedPending(ctx, booking.ID, quote.Total, quote, models.BookingStatusPendingAddressVerification); err != nil {
			return err
		}
		s.dispatcher.Dispatch(ctx, []models.Notice{{
			UserID:    booking.CustomerID,
			Title:     "Booking confirmed at a lower price",
			Message:   fmt.Sprintf("Good news: your verified quote came down to $%.2f. Your booking is now open to contractors.", quote.Total),
			Severity:  models.SeverityInfo,
			BookingID: &booking.ID,
		}})

	default:
		// Equal or sub-threshold increase: the quoted price stands.
		if err := s.bookings.SetVerifiedPending(ctx, booking.ID, booking.TotalPrice, booking.Quote, models.BookingStatusPendingAddressVerification); err != nil {
			return err
		}
		s.dispatcher.Dispatch(ctx, []models.Notice{{
			UserID:    booking.CustomerID,
			Title:     "Address verified",
			Message:   "Your address was verified and your booking is now open to contractors.",
			Severity:  models.SeverityInfo,
			BookingID: &booking.ID,
		}})
	}
	return nil
}

// HandleAddressRejected cancels every booking parked on a rejected address.
// Nothing was charged yet, so there is no financial movement.
func (s *BookingService) HandleAddressRejected(ctx context.Context, addressID uuid.UUID) error {
	pending, err := s.bookings.ListByAddressAndStatus(ctx, addressID, models.BookingStatusPendingAddressVerification)
	if err != nil {
		return err
	}

	for i := range pending {
		booking := &pending[i]
		if err := s.bookings.UpdateStatus(ctx, booking.ID, models.BookingStatusPendingAddressVerification, models.BookingStatusCancelled); err != nil {
			logger.Log.WithError(err).WithField("booking_id", booking.ID).Error("address gate: cancel failed")
			continue
		}
		s.dispatcher.Dispatch(ctx, []models.Notice{{
			UserID:    booking.CustomerID,
			Title:     "Booking cancelled",
			Message:   "We could not verify the address for this booking, so it has been cancelled. You were not charged.",
			Severity:  models.SeverityWarning,
			BookingID: &booking.ID,
			Email:     true,
		}})
	}
	return nil
}

// ApprovePriceChange records the customer's consent to the new price.
func (s *BookingService) ApprovePriceChange(ctx context.Context, bookingID, customerID uuid.UUID) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.CustomerID != customerID {
		return nil, ErrNotBookingOwner
	}
	if booking.Status != models.BookingStatusPriceChangePending {
		return nil, apperror.Newf(apperror.ErrCodeConflict, "booking is %s, no price change to approve", booking.Status)
	}

	if err := s.bookings.ApprovePriceChange(ctx, bookingID); err != nil {
		return nil, err
	}
	return s.bookings.GetByID(ctx, bookingID)
}

// Cancel moves a booking to cancelled when the transition table allows it.
// Customers may cancel their own bookings; admins may cancel any.
func (s *BookingService) Cancel(ctx context.Context, bookingID uuid.UUID, caller Identity) error {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if caller.Role != models.RoleAdmin && booking.CustomerID != caller.UserID {
		return ErrNotBookingOwner
	}
	if !models.CanTransition(booking.Status, models.BookingStatusCancelled) {
		return apperror.Newf(apperror.ErrCodeConflict, "booking in status %s cannot be cancelled", booking.Status)
	}

	if err := s.bookings.UpdateStatus(ctx, bookingID, booking.Status, models.BookingStatusCancelled); err != nil {
		return err
	}

	notices := []models.Notice{{
		UserID:    booking.CustomerID,
		Title:     "Booking cancelled",
		Message:   "Your booking has been cancelled.",
		Severity:  models.SeverityInfo,
		BookingID: &booking.ID,
	}}
	if booking.ContractorID != nil {
		notices = append(notices, models.Notice{
			UserID:    *booking.ContractorID,
			Title:     "Job cancelled",
			Message:   "A job you accepted has been cancelled.",
			Severity:  models.SeverityWarning,
			BookingID: &booking.ID,
		})
	}
	s.dispatcher.Dispatch(ctx, notices)
	return nil
}

// ApproveCompletion is the customer signing off a finished job: the rating is
// stored and the payout released.
func (s *BookingService) ApproveCompletion(ctx context.Context, bookingID, customerID uuid.UUID, rating int, comment *string) error {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if booking.CustomerID != customerID {
		return ErrNotBookingOwner
	}
	if booking.Status != models.BookingStatusCompletedPendingVerify {
		return apperror.Newf(apperror.ErrCodeConflict, "booking is %s, nothing to approve", booking.Status)
	}
	if rating < 1 || rating > 5 {
		return ErrRatingOutOfRange
	}
	if booking.ContractorID == nil {
		return ErrNoContractorToRate
	}

	now := time.Now().UTC()
	if err := s.bookings.SubmitRating(ctx, bookingID, rating, comment, false, now); err != nil {
		if errors.Is(err, repository.ErrBookingStale) {
			return ErrAlreadyRated
		}
		return err
	}

	return s.payouts.Release(ctx, bookingID, now)
}

// ExpireStalePriceChanges cancels bookings whose price-change approval window
// has lapsed without a customer decision. The approval window is passed in as
// a cutoff so the sweeper owns the clock.
func (s *BookingService) ExpireStalePriceChanges(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := s.bookings.ListStalePriceChanges(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for i := range stale {
		booking := &stale[i]
		if err := s.bookings.UpdateStatus(ctx, booking.ID, models.BookingStatusPriceChangePending, models.BookingStatusCancelled); err != nil {
			logger.Log.WithError(err).WithField("booking_id", booking.ID).Error("price-change sweep: cancel failed")
			continue
		}
		cancelled++
		s.dispatcher.Dispatch(ctx, []models.Notice{{
			UserID:    booking.CustomerID,
			Title:     "Booking cancelled",
			Message:   "The updated price was not approved within 7 days, so the booking has been cancelled. You were not charged.",
			Severity:  models.SeverityWarning,
			BookingID: &booking.ID,
			Email:     true,
		}})
	}
	return cancelled, nil
}

// ReplyToRating stores the contractor's public reply to a customer rating.
func (s *BookingService) ReplyToRating(ctx context.Context, bookingID, contractorID uuid.UUID, reply string) error {
	if reply == "" {
		return apperror.New(apperror.ErrCodeValidation, "reply must not be empty")
	}
	return s.bookings.SetContractorReply(ctx, bookingID, contractorID, reply)
}

// canSeeBooking restricts booking reads to participants and admins, plus the
// open pool for contractors.
func canSeeBooking(b *models.Booking, caller Identity) bool {
	switch {
	case caller.Role == models.RoleAdmin:
		return true
	case b.CustomerID == caller.UserID:
		return true
	case b.ContractorID != nil && *b.ContractorID == caller.UserID:
		return true
	case caller.Role == models.RoleContractor && b.Status == models.BookingStatusPending:
		return true
	default:
		return false
	}
}
