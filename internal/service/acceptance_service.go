package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/mowmarket/mowmarket-backend/internal/logger"
	"github.com/mowmarket/mowmarket-backend/internal/metrics"
	"github.com/mowmarket/mowmarket-backend/internal/models"
	"github.com/mowmarket/mowmarket-backend/internal/payments"
	"github.com/mowmarket/mowmarket-backend/internal/pkg/apperror"
	"github.com/mowmarket/mowmarket-backend/internal/repository"
)

var (
	ErrPayoutAccountRequired = errors.New("contractor has no active payout account")
	ErrContractorSuspended   = errors.New("contractor account is suspended")
	ErrJobLimitReached       = errors.New("active job limit reached for tier")
	ErrJobValueTooHigh       = errors.New("booking value exceeds tier ceiling")
	ErrJobAlreadyTaken       = errors.New("booking was already accepted by another contractor")
	ErrPaymentDeclined       = errors.New("customer card was declined")
	ErrNotSuggestionTarget   = errors.New("suggestion belongs to another booking party")
)

// AcceptanceStore is the booking storage surface for claim and assignment.
type AcceptanceStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	ListPending(ctx context.Context, limit, offset int) ([]models.Booking, error)
	Claim(ctx context.Context, id, contractorID uuid.UUID) error
	ReleaseClaim(ctx context.Context, id, contractorID uuid.UUID) error
	ConfirmAssignment(ctx context.Context, id, contractorID uuid.UUID, chargeRef string, at time.Time) error
	Reschedule(ctx context.Context, id uuid.UUID, date time.Time, slot string, weekend bool) error
	CountActiveByContractor(ctx context.Context, contractorID uuid.UUID) (int, error)
	CreateSuggestion(ctx context.Context, s *models.TimeSuggestion) error
	GetSuggestion(ctx context.Context, id uuid.UUID) (*models.TimeSuggestion, error)
	ListSuggestions(ctx context.Context, bookingID uuid.UUID) ([]models.TimeSuggestion, error)
	AcceptSuggestion(ctx context.Context, id, bookingID uuid.UUID, at time.Time) error
	DeclineSuggestion(ctx context.Context, id uuid.UUID, at time.Time) error
}

// ContractorDirectory is the contractor profile surface acceptance checks.
type ContractorDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Contractor, error)
	TouchLastActive(ctx context.Context, id uuid.UUID, at time.Time) error
}

// CustomerBilling resolves a customer's stored payment method.
type CustomerBilling interface {
	PaymentMethodRef(ctx context.Context, userID uuid.UUID) (string, error)
}

// AcceptanceService controls how contractors take jobs from the open pool:
// eligibility gates, the claim-charge-confirm sequence and alternative time
// suggestions.
type AcceptanceService struct {
	bookings    AcceptanceStore
	contractors ContractorDirectory
	billing     CustomerBilling
	processor   payments.Processor
	dispatcher  Dispatcher

	probationMaxActiveJobs int
	probationValueCeiling  float64
	standardMaxActiveJobs  int
}

func NewAcceptanceService(bookings AcceptanceStore, contractors ContractorDirectory, billing CustomerBilling, processor payments.Processor, dispatcher Dispatcher, probationMaxActiveJobs int, probationValueCeiling float64, standardMaxActiveJobs int) *AcceptanceService {
	return &AcceptanceService{
		bookings:               bookings,
		contractors:            contractors,
		billing:                billing,
		processor:              processor,
		dispatcher:             dispatcher,
		probationMaxActiveJobs: probationMaxActiveJobs,
		probationValueCeiling:  probationValueCeiling,
		standardMaxActiveJobs:  standardMaxActiveJobs,
	}
}

// ListOpenJobs returns the open pool visible to contractors.
func (s *AcceptanceService) ListOpenJobs(ctx context.Context, limit, offset int) ([]models.Booking, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.bookings.ListPending(ctx, limit, offset)
}

// Accept assigns a pending booking to the contractor and charges the customer.
// The sequence is claim, charge, confirm; a declined card releases the claim
// so the job returns to the pool untouched.
func (s *AcceptanceService) Accept(ctx context.Context, bookingID, contractorID uuid.UUID) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := s.checkEligibility(ctx, contractorID, booking.TotalPrice); err != nil {
		return nil, err
	}

	if err := s.bookings.Claim(ctx, bookingID, contractorID); err != nil {
		if errors.Is(err, repository.ErrBookingStale) {
			return nil, ErrJobAlreadyTaken
		}
		return nil, err
	}

	if err := s.chargeAndConfirm(ctx, booking, contractorID); err != nil {
		return nil, err
	}

	if err := s.contractors.TouchLastActive(ctx, contractorID, time.Now().UTC()); err != nil {
		logger.Log.WithError(err).WithField("contractor_id", contractorID).Warn("failed to touch last_active_at")
	}
	return s.bookings.GetByID(ctx, bookingID)
}

// chargeAndConfirm runs the payment for a claimed booking, confirming the
// assignment on success and releasing the claim on failure.
func (s *AcceptanceService) chargeAndConfirm(ctx context.Context, booking *models.Booking, contractorID uuid.UUID) error {
	release := func() {
		if err := s.bookings.ReleaseClaim(ctx, booking.ID, contractorID); err != nil {
			logger.Log.WithError(err).WithField("booking_id", booking.ID).Error("failed to release claim after charge failure")
		}
	}

	methodRef, err := s.billing.PaymentMethodRef(ctx, booking.CustomerID)
	if err != nil {
		release()
		if errors.Is(err, repository.ErrNoPaymentMethod) {
			return s.notifyChargeFailed(ctx, booking, "no payment method on file")
		}
		return err
	}

	result, err := s.processor.Charge(ctx, methodRef, toCents(booking.TotalPrice), booking.ID)
	if err != nil {
		release()
		if errors.Is(err, payments.ErrCardDeclined) {
			metrics.IncCharge("declined")
			return s.notifyChargeFailed(ctx, booking, "card declined")
		}
		metrics.IncCharge("failed")
		return err
	}
	metrics.IncCharge("succeeded")

	if err := s.bookings.ConfirmAssignment(ctx, booking.ID, contractorID, result.ChargeRef, time.Now().UTC()); err != nil {
		// The charge went through but the row moved underneath us. Refund so
		// the customer is not charged for a job nobody holds.
		if _, refundErr := s.processor.Refund(ctx, result.ChargeRef, toCents(booking.TotalPrice), false); refundErr != nil {
			logger.Log.WithError(refundErr).WithField("booking_id", booking.ID).Error("refund after failed confirmation also failed, needs manual review")
			s.dispatcher.Dispatch(ctx, []models.Notice{{
				AdminWide: true,
				Title:     "Stranded charge needs manual review",
				Message:   fmt.Sprintf("Booking %s: charge %s succeeded but assignment and refund both failed.", booking.ID, result.ChargeRef),
				Severity:  models.SeverityCritical,
				BookingID: &booking.ID,
			}})
		}
		return err
	}

	s.dispatcher.Dispatch(ctx, []models.Notice{
		{
			UserID:    booking.CustomerID,
			Title:     "Contractor assigned",
			Message:   fmt.Sprintf("A contractor accepted your booking and your card was charged $%.2f.", booking.TotalPrice),
			Severity:  models.SeverityInfo,
			BookingID: &booking.ID,
			Email:     true,
		},
		{
			UserID:    contractorID,
			Title:     "Job confirmed",
			Message:   "You are confirmed for this job. Check the schedule for details.",
			Severity:  models.SeverityInfo,
			BookingID: &booking.ID,
		},
	})
	return nil
}

func (s *AcceptanceService) notifyChargeFailed(ctx context.Context, booking *models.Booking, reason string) error {
	s.dispatcher.Dispatch(ctx, []models.Notice{{
		UserID:    booking.CustomerID,
		Title:     "Payment failed",
		Message:   "We could not charge your card for this booking (" + reason + "). Please update your payment method; the booking stays open.",
		Severity:  models.SeverityWarning,
		BookingID: &booking.ID,
		Email:     true,
	}})
	return ErrPaymentDeclined
}

// checkEligibility enforces the payout account requirement and per-tier
// admission limits before any claim is attempted.
func (s *AcceptanceService) checkEligibility(ctx context.Context, contractorID uuid.UUID, jobValue float64) error {
	contractor, err := s.contractors.GetByID(ctx, contractorID)
	if err != nil {
		return err
	}
	if !contractor.Active || contractor.SuspensionStatus == models.StandingSuspended {
		return ErrContractorSuspended
	}
	if contractor.ApprovalStatus != models.ApprovalStatusApproved {
		return apperror.New(apperror.ErrCodeForbidden, "contractor is not approved")
	}
	if !contractor.PayoutsEnabled || contractor.PayoutAccountRef == nil {
		return ErrPayoutAccountRequired
	}

	switch contractor.Tier {
	case models.TierProbation:
		if jobValue > s.probationValueCeiling {
			return ErrJobValueTooHigh
		}
		return s.checkActiveLimit(ctx, contractorID, s.probationMaxActiveJobs)
	case models.TierStandard:
		return s.checkActiveLimit(ctx, contractorID, s.standardMaxActiveJobs)
	default:
		// Premium has no concurrency cap.
		return nil
	}
}

func (s *AcceptanceService) checkActiveLimit(ctx context.Context, contractorID uuid.UUID, limit int) error {
	active, err := s.bookings.CountActiveByContractor(ctx, contractorID)
	if err != nil {
		return err
	}
	if active >= limit {
		return ErrJobLimitReached
	}
	return nil
}

// SuggestTime records a contractor's alternative (date, slot) proposal on a
// pending booking.
func (s *AcceptanceService) SuggestTime(ctx context.Context, bookingID, contractorID uuid.UUID, date time.Time, slot string) (*models.TimeSuggestion, error) {
	if _, ok := models.ValidTimeSlots[slot]; !ok {
		return nil, apperror.Newf(apperror.ErrCodeValidation, "unknown time slot %q", slot)
	}

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingStatusPending {
		return nil, apperror.Newf(apperror.ErrCodeConflict, "booking is %s, suggestions are closed", booking.Status)
	}
	if err := s.checkEligibility(ctx, contractorID, booking.TotalPrice); err != nil {
		return nil, err
	}

	suggestion := &models.TimeSuggestion{
		BookingID:    bookingID,
		ContractorID: contractorID,
		Date:         date,
		TimeSlot:     slot,
		Status:       models.SuggestionStatusPending,
	}
	if err := s.bookings.CreateSuggestion(ctx, suggestion); err != nil {
		return nil, err
	}

	s.dispatcher.Dispatch(ctx, []models.Notice{{
		UserID:    booking.CustomerID,
		Title:     "Alternative time suggested",
		Message:   fmt.Sprintf("A contractor proposed %s (%s) for your booking.", date.Format("Mon 2 Jan"), slot),
		Severity:  models.SeverityInfo,
		BookingID: &booking.ID,
	}})
	return suggestion, nil
}

// ListSuggestions returns the proposals on a booking, owner or admin only.
func (s *AcceptanceService) ListSuggestions(ctx context.Context, bookingID uuid.UUID, caller Identity) ([]models.TimeSuggestion, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if caller.Role != models.RoleAdmin && booking.CustomerID != caller.UserID {
		return nil, apperror.ErrForbidden
	}
	return s.bookings.ListSuggestions(ctx, bookingID)
}

// AcceptSuggestion is the customer taking one contractor's proposed time.
// Accepting reschedules the booking, declines every sibling proposal, and
// immediately runs the normal assignment path for the proposing contractor.
func (s *AcceptanceService) AcceptSuggestion(ctx context.Context, suggestionID, customerID uuid.UUID) (*models.Booking, error) {
	suggestion, err := s.bookings.GetSuggestion(ctx, suggestionID)
	if err != nil {
		return nil, err
	}
	booking, err := s.bookings.GetByID(ctx, suggestion.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.CustomerID != customerID {
		return nil, ErrNotSuggestionTarget
	}
	if booking.Status != models.BookingStatusPending {
		return nil, apperror.Newf(apperror.ErrCodeConflict, "booking is %s, suggestion can no longer be accepted", booking.Status)
	}
	if suggestion.Status != models.SuggestionStatusPending {
		return nil, apperror.Newf(apperror.ErrCodeConflict, "suggestion is already %s", suggestion.Status)
	}

	if err := s.checkEligibility(ctx, suggestion.ContractorID, booking.TotalPrice); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.bookings.AcceptSuggestion(ctx, suggestionID, suggestion.BookingID, now); err != nil {
		return nil, err
	}
	if err := s.bookings.Reschedule(ctx, booking.ID, suggestion.Date, suggestion.TimeSlot, IsWeekend(suggestion.Date)); err != nil {
		return nil, err
	}

	if err := s.bookings.Claim(ctx, booking.ID, suggestion.ContractorID); err != nil {
		if errors.Is(err, repository.ErrBookingStale) {
			return nil, ErrJobAlreadyTaken
		}
		return nil, err
	}

	booking.ServiceDate = suggestion.Date
	booking.TimeSlot = suggestion.TimeSlot
	if err := s.chargeAndConfirm(ctx, booking, suggestion.ContractorID); err != nil {
		return nil, err
	}
	return s.bookings.GetByID(ctx, booking.ID)
}

// DeclineSuggestion rejects one proposal and tells the contractor.
func (s *AcceptanceService) DeclineSuggestion(ctx context.Context, suggestionID, customerID uuid.UUID) error {
	suggestion, err := s.bookings.GetSuggestion(ctx, suggestionID)
	if err != nil {
		return err
	}
	booking, err := s.bookings.GetByID(ctx, suggestion.BookingID)
	if err != nil {
		return err
	}
	if booking.CustomerID != customerID {
		return ErrNotSuggestionTarget
	}
	if suggestion.Status != models.SuggestionStatusPending {
		return apperror.Newf(apperror.ErrCodeConflict, "suggestion is already %s", suggestion.Status)
	}

	if err := s.bookings.DeclineSuggestion(ctx, suggestionID, time.Now().UTC()); err != nil {
		return err
	}
	s.dispatcher.Dispatch(ctx, []models.Notice{{
		UserID:    suggestion.ContractorID,
		Title:     "Suggestion declined",
		Message:   "The customer declined your proposed time. The job is still open at its original time.",
		Severity:  models.SeverityInfo,
		BookingID: &booking.ID,
	}})
	return nil
}

// toCents converts a dollar amount to minor units for the payment API.
func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
