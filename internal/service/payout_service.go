package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mowmarket/mowmarket-backend/internal/logger"
	"github.com/mowmarket/mowmarket-backend/internal/metrics"
	"github.com/mowmarket/mowmarket-backend/internal/models"
	"github.com/mowmarket/mowmarket-backend/internal/payments"
	"github.com/mowmarket/mowmarket-backend/internal/repository"
)

var ErrPayoutNotReady = errors.New("booking is not ready for payout")

// PayoutStore is the booking surface the settlement engine writes through.
type PayoutStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	MarkPayoutReleased(ctx context.Context, id uuid.UUID, payoutRef string, at time.Time) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error
	SubmitRating(ctx context.Context, id uuid.UUID, rating int, comment *string, system bool, at time.Time) error
	ListAutoReleasable(ctx context.Context, cutoff time.Time) ([]models.Booking, error)
}

// EarningsRecorder rolls a released payout into the contractor's totals.
type EarningsRecorder interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Contractor, error)
	RecordCompletion(ctx context.Context, id uuid.UUID, earnings float64, at time.Time) error
}

// PayoutService settles completed jobs: it computes the contractor's share,
// moves the money, and promotes the booking to its terminal completed state.
// Release is idempotent; the payout_status row guard is the single source of
// truth for whether money already moved.
type PayoutService struct {
	bookings    PayoutStore
	contractors EarningsRecorder
	processor   payments.Processor
	dispatcher  Dispatcher

	shareRate    float64
	reviewWindow time.Duration
}

func NewPayoutService(bookings PayoutStore, contractors EarningsRecorder, processor payments.Processor, dispatcher Dispatcher, shareRate float64, reviewWindow time.Duration) *PayoutService {
	return &PayoutService{
		bookings:     bookings,
		contractors:  contractors,
		processor:    processor,
		dispatcher:   dispatcher,
		shareRate:    shareRate,
		reviewWindow: reviewWindow,
	}
}

// Earnings returns the contractor's share of a booking total, rounded to
// cents.
func (s *PayoutService) Earnings(total float64) float64 {
	return round2(total * s.shareRate)
}

// Release settles one booking. Calling it again after a successful release is
// a no-op; a frozen or refunded payout is never released from here.
func (s *PayoutService) Release(ctx context.Context, bookingID uuid.UUID, now time.Time) error {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}

	switch booking.PayoutStatus {
	case models.PayoutStatusReleased:
		return nil
	case models.PayoutStatusPending:
		// proceed
	default:
		return fmt.Errorf("%w: payout is %s", ErrPayoutNotReady, booking.PayoutStatus)
	}
	if booking.Status != models.BookingStatusCompletedPendingVerify && booking.Status != models.BookingStatusCompleted {
		return fmt.Errorf("%w: booking is %s", ErrPayoutNotReady, booking.Status)
	}
	if booking.ContractorID == nil {
		return fmt.Errorf("%w: no contractor assigned", ErrPayoutNotReady)
	}

	contractor, err := s.contractors.GetByID(ctx, *booking.ContractorID)
	if err != nil {
		return err
	}
	if contractor.PayoutAccountRef == nil {
		return fmt.Errorf("%w: contractor has no payout account", ErrPayoutNotReady)
	}

	earnings := s.Earnings(booking.TotalPrice)
	result, err := s.processor.Transfer(ctx, *contractor.PayoutAccountRef, toCents(earnings), booking.ID)
	if err != nil {
		metrics.IncPayoutFailure()
		s.dispatcher.Dispatch(ctx, []models.Notice{{
			AdminWide: true,
			Title:     "Payout transfer failed",
			Message:   fmt.Sprintf("Transfer of $%.2f to contractor %s for booking %s failed: %v", earnings, contractor.ID, booking.ID, err),
			Severity:  models.SeverityCritical,
			BookingID: &booking.ID,
		}})
		return fmt.Errorf("payout transfer: %w", err)
	}

	if err := s.bookings.MarkPayoutReleased(ctx, bookingID, result.TransferRef, now); err != nil {
		if errors.Is(err, repository.ErrBookingStale) {
			// A concurrent release won the row. The transfer API is keyed on
			// the booking, so the duplicate call did not double-pay.
			return nil
		}
		return err
	}

	metrics.IncPayoutReleased()

	if booking.Status == models.BookingStatusCompletedPendingVerify {
		if err := s.bookings.UpdateStatus(ctx, bookingID, models.BookingStatusCompletedPendingVerify, models.BookingStatusCompleted); err != nil {
			logger.Log.WithError(err).WithField("booking_id", bookingID).Error("payout released but status promotion failed")
		}
	}
	if err := s.contractors.RecordCompletion(ctx, contractor.ID, earnings, now); err != nil {
		logger.Log.WithError(err).WithField("contractor_id", contractor.ID).Error("payout released but earnings rollup failed")
	}

	s.dispatcher.Dispatch(ctx, []models.Notice{{
		UserID:    contractor.ID,
		Title:     "Payout on its way",
		Message:   fmt.Sprintf("Your earnings of $%.2f for a completed job have been released.", earnings),
		Severity:  models.SeverityInfo,
		BookingID: &booking.ID,
		Email:     true,
	}})
	return nil
}

// AutoRelease sweeps completions the customer never reviewed. Once the review
// window has passed, the job gets a neutral system rating and the payout is
// released as if the customer had approved it. Failures are isolated per
// booking so one bad row cannot stall the sweep.
func (s *PayoutService) AutoRelease(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.reviewWindow)
	due, err := s.bookings.ListAutoReleasable(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	released := 0
	for i := range due {
		booking := &due[i]
		if booking.Rating == nil {
			if err := s.bookings.SubmitRating(ctx, booking.ID, 5, nil, true, now); err != nil && !errors.Is(err, repository.ErrBookingStale) {
				logger.Log.WithError(err).WithField("booking_id", booking.ID).Error("auto-release: system rating failed")
				continue
			}
		}
		if err := s.Release(ctx, booking.ID, now); err != nil {
			logger.Log.WithError(err).WithField("booking_id", booking.ID).Error("auto-release: payout failed")
			continue
		}
		released++
	}
	return released, nil
}
