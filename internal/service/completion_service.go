package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mowmarket/mowmarket-backend/internal/models"
	"github.com/mowmarket/mowmarket-backend/internal/pkg/apperror"
)

var (
	ErrNotAssignedContractor = errors.New("caller is not the assigned contractor")
	ErrJobNotCompletable     = errors.New("only confirmed jobs can be completed")
)

// InsufficientEvidenceError reports exactly which evidence requirement failed
// so the contractor knows what is missing.
type InsufficientEvidenceError struct {
	Kind     string
	Have     int
	Required int
}

func (e *InsufficientEvidenceError) Error() string {
	return fmt.Sprintf("need at least %d %s photos, have %d", e.Required, e.Kind, e.Have)
}

// CompletionStore is the booking surface for marking jobs done.
type CompletionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	Complete(ctx context.Context, id uuid.UUID, status, payoutStatus string, issues []string, notes *string, at time.Time) error
}

// EvidenceCounter counts stored evidence photos per kind.
type EvidenceCounter interface {
	CountByKind(ctx context.Context, bookingID, contractorID uuid.UUID, kind string) (int, error)
}

// CompletionService is the job completion workflow: evidence checks, issue
// reporting and the handoff into customer verification.
type CompletionService struct {
	bookings   CompletionStore
	photos     EvidenceCounter
	dispatcher Dispatcher

	minEvidencePhotos int
}

func NewCompletionService(bookings CompletionStore, photos EvidenceCounter, dispatcher Dispatcher, minEvidencePhotos int) *CompletionService {
	return &CompletionService{
		bookings:          bookings,
		photos:            photos,
		dispatcher:        dispatcher,
		minEvidencePhotos: minEvidencePhotos,
	}
}

// CompletionInput carries the contractor's completion report.
type CompletionInput struct {
	IssueTags []string
	Notes     *string
}

// Complete marks a confirmed job as done. Both photo sets must meet the
// minimum. A clean completion leaves the payout on the normal release track;
// reported issues freeze it for admin review instead.
func (s *CompletionService) Complete(ctx context.Context, bookingID, contractorID uuid.UUID, in CompletionInput) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.ContractorID == nil || *booking.ContractorID != contractorID {
		return nil, ErrNotAssignedContractor
	}
	if booking.Status != models.BookingStatusConfirmed {
		return nil, ErrJobNotCompletable
	}

	for _, tag := range in.IssueTags {
		if _, ok := models.ValidIssueTags[tag]; !ok {
			return nil, apperror.Newf(apperror.ErrCodeValidation, "unknown issue tag %q", tag)
		}
	}

	for _, kind := range []string{models.PhotoKindBefore, models.PhotoKindAfter} {
		have, err := s.photos.CountByKind(ctx, bookingID, contractorID, kind)
		if err != nil {
			return nil, err
		}
		if have < s.minEvidencePhotos {
			return nil, &InsufficientEvidenceError{Kind: kind, Have: have, Required: s.minEvidencePhotos}
		}
	}

	status := models.BookingStatusCompletedPendingVerify
	payoutStatus := models.PayoutStatusPending
	if len(in.IssueTags) > 0 {
		status = models.BookingStatusCompletedWithIssues
		payoutStatus = models.PayoutStatusFrozen
	}

	now := time.Now().UTC()
	if err := s.bookings.Complete(ctx, bookingID, status, payoutStatus, in.IssueTags, in.Notes, now); err != nil {
		return nil, err
	}

	var notices []models.Notice
	if len(in.IssueTags) > 0 {
		notices = []models.Notice{
			{
				UserID:    booking.CustomerID,
				Title:     "Job completed with reported issues",
				Message:   "Your contractor marked the job as complete but reported issues. Our team will review before any money moves.",
				Severity:  models.SeverityWarning,
				BookingID: &booking.ID,
				Email:     true,
			},
			{
				AdminWide: true,
				Title:     "Completion reported with issues",
				Message:   fmt.Sprintf("Booking %s completed with issues %v. Payout frozen pending adjudication.", booking.ID, in.IssueTags),
				Severity:  models.SeverityWarning,
				BookingID: &booking.ID,
			},
		}
	} else {
		notices = []models.Notice{
			{
				UserID:    booking.CustomerID,
				Title:     "Job completed",
				Message:   "Your contractor marked the job as complete. Please review the photos and confirm within 48 hours.",
				Severity:  models.SeverityInfo,
				BookingID: &booking.ID,
				Email:     true,
			},
			{
				UserID:    contractorID,
				Title:     "Completion submitted",
				Message:   "Your completion report was submitted. The payout releases once the customer confirms, or automatically after 48 hours.",
				Severity:  models.SeverityInfo,
				BookingID: &booking.ID,
			},
		}
	}
	s.dispatcher.Dispatch(ctx, notices)

	return s.bookings.GetByID(ctx, bookingID)
}
