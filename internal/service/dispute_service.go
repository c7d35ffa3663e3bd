package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mowmarket/mowmarket-backend/internal/logger"
	"github.com/mowmarket/mowmarket-backend/internal/models"
	"github.com/mowmarket/mowmarket-backend/internal/payments"
	"github.com/mowmarket/mowmarket-backend/internal/repository"
)

var (
	ErrDisputeAlreadyOpen   = errors.New("booking already has an open dispute")
	ErrNotDisputeParty      = errors.New("caller is not a party to this booking")
	ErrDisputeClosed        = errors.New("dispute is already resolved")
	ErrInvalidRefundPercent = errors.New("partial refunds must be between 5 and 100 percent")
	ErrBookingNotDisputable = errors.New("booking is not in a disputable state")
	ErrDisputeFieldsMissing = errors.New("dispute reason and description are required")
	ErrSuggestedRefundRange = errors.New("suggested refund must be a percentage between 0 and 100")
)

// DisputeStore is the dispute storage surface.
type DisputeStore interface {
	Create(ctx context.Context, d *models.Dispute) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	GetOpenByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.Dispute, error)
	AddCounterEvidence(ctx context.Context, id uuid.UUID, paths []string) error
	MarkUnderReview(ctx context.Context, id uuid.UUID) error
	Resolve(ctx context.Context, id uuid.UUID, resolution string, refundPercent *float64, resolvedBy uuid.UUID, at time.Time) error
	ListOpen(ctx context.Context, limit, offset int) ([]models.Dispute, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error)
}

// DisputeBookingStore is the booking surface dispute handling needs.
type DisputeBookingStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error
	SetPayoutStatus(ctx context.Context, id uuid.UUID, status string) error
	MarkPayoutReleased(ctx context.Context, id uuid.UUID, payoutRef string, at time.Time) error
}

// DisputeService handles disputes over completed work, from filing through
// the admin ruling. A dispute filed before the payout released freezes the
// contractor's money; one filed after release can only be settled from
// platform funds.
type DisputeService struct {
	disputes    DisputeStore
	bookings    DisputeBookingStore
	contractors EarningsRecorder
	processor   payments.Processor
	dispatcher  Dispatcher

	shareRate float64
}

func NewDisputeService(disputes DisputeStore, bookings DisputeBookingStore, contractors EarningsRecorder, processor payments.Processor, dispatcher Dispatcher, shareRate float64) *DisputeService {
	return &DisputeService{
		disputes:    disputes,
		bookings:    bookings,
		contractors: contractors,
		processor:   processor,
		dispatcher:  dispatcher,
		shareRate:   shareRate,
	}
}

// CreateDisputeInput is the filing party's case.
type CreateDisputeInput struct {
	ReasonTag       string
	Description     string
	Evidence        []string
	SuggestedRefund *float64
}

// Create files a dispute on a booking. Only one dispute may be open per
// booking at a time.
func (s *DisputeService) Create(ctx context.Context, bookingID uuid.UUID, raiser Identity, in CreateDisputeInput) (*models.Dispute, error) {
	if in.ReasonTag == "" || in.Description == "" {
		return nil, ErrDisputeFieldsMissing
	}
	if in.SuggestedRefund != nil && (*in.SuggestedRefund < 0 || *in.SuggestedRefund > 100) {
		return nil, ErrSuggestedRefundRange
	}

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !isBookingParty(booking, raiser.UserID) {
		return nil, ErrNotDisputeParty
	}

	if _, err := s.disputes.GetOpenByBookingID(ctx, bookingID); err == nil {
		return nil, ErrDisputeAlreadyOpen
	} else if !errors.Is(err, repository.ErrDisputeNotFound) {
		return nil, err
	}

	var postPayment bool
	switch booking.Status {
	case models.BookingStatusCompletedPendingVerify:
		// Money has not moved to the contractor yet; freeze it.
		if err := s.bookings.UpdateStatus(ctx, bookingID, booking.Status, models.BookingStatusDisputed); err != nil {
			return nil, err
		}
		if err := s.bookings.SetPayoutStatus(ctx, bookingID, models.PayoutStatusFrozen); err != nil {
			return nil, err
		}
	case models.BookingStatusCompleted:
		postPayment = true
		if err := s.bookings.UpdateStatus(ctx, bookingID, booking.Status, models.BookingStatusPostPaymentDispute); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: booking is %s", ErrBookingNotDisputable, booking.Status)
	}

	dispute := &models.Dispute{
		BookingID:       bookingID,
		RaisedBy:        raiser.UserID,
		RaiserRole:      raiser.Role,
		ReasonTag:       in.ReasonTag,
		Description:     in.Description,
		Evidence:        in.Evidence,
		SuggestedRefund: in.SuggestedRefund,
		PostPayment:     postPayment,
		Status:          models.DisputeStatusPending,
	}
	if err := s.disputes.Create(ctx, dispute); err != nil {
		return nil, err
	}

	notices := []models.Notice{{
		AdminWide: true,
		Title:     "New dispute filed",
		Message:   fmt.Sprintf("Dispute on booking %s (%s): %s", bookingID, in.ReasonTag, in.Description),
		Severity:  models.SeverityWarning,
		BookingID: &bookingID,
	}}
	if other := otherParty(booking, raiser.UserID); other != nil {
		notices = append(notices, models.Notice{
			UserID:    *other,
			Title:     "A dispute was raised",
			Message:   "The other party raised a dispute on a booking you are part of. You can add counter evidence while it is reviewed.",
			Severity:  models.SeverityWarning,
			BookingID: &bookingID,
			Email:     true,
		})
	}
	s.dispatcher.Dispatch(ctx, notices)
	return dispute, nil
}

// AddCounterEvidence lets the opposing party attach material to an open
// dispute.
func (s *DisputeService) AddCounterEvidence(ctx context.Context, disputeID uuid.UUID, caller Identity, paths []string) error {
	if len(paths) == 0 {
		return errors.New("no evidence supplied")
	}
	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return err
	}
	if dispute.Status == models.DisputeStatusResolved {
		return ErrDisputeClosed
	}

	booking, err := s.bookings.GetByID(ctx, dispute.BookingID)
	if err != nil {
		return err
	}
	if !isBookingParty(booking, caller.UserID) || dispute.RaisedBy == caller.UserID {
		return ErrNotDisputeParty
	}
	return s.disputes.AddCounterEvidence(ctx, disputeID, paths)
}

// MarkUnderReview flags a dispute as actively being worked by an admin.
func (s *DisputeService) MarkUnderReview(ctx context.Context, disputeID uuid.UUID) error {
	return s.disputes.MarkUnderReview(ctx, disputeID)
}

// Resolve records the admin ruling and moves the money accordingly. The
// terminal stamp on the dispute row goes first, so a crash mid-settlement can
// never re-open a ruling; any stranded money movement is surfaced to admins.
func (s *DisputeService) Resolve(ctx context.Context, disputeID, adminID uuid.UUID, resolution string, refundPercent *float64) error {
	pct, err := normalizeRefundPercent(resolution, refundPercent)
	if err != nil {
		return err
	}

	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return err
	}
	booking, err := s.bookings.GetByID(ctx, dispute.BookingID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := s.disputes.Resolve(ctx, disputeID, resolution, pct, adminID, now); err != nil {
		if errors.Is(err, repository.ErrDisputeResolved) {
			return ErrDisputeClosed
		}
		return err
	}

	if err := s.settle(ctx, booking, booking.Status, resolution, pct, dispute.PostPayment, fmt.Sprintf("dispute:%s", dispute.ID), now); err != nil {
		logger.Log.WithError(err).WithField("dispute_id", disputeID).Error("dispute resolved but settlement failed")
		s.dispatcher.Dispatch(ctx, []models.Notice{{
			AdminWide: true,
			Title:     "Dispute settlement incomplete",
			Message:   fmt.Sprintf("Dispute %s was resolved (%s) but the money movement failed: %v. Manual intervention required.", disputeID, resolution, err),
			Severity:  models.SeverityCritical,
			BookingID: &booking.ID,
		}})
		return err
	}

	s.notifyResolution(ctx, booking, resolution, pct)
	return nil
}

// AdjudicateIssues settles a job the contractor completed with reported
// issues. It uses the same ruling vocabulary as dispute resolution, but there
// is no dispute row: the frozen payout itself is what gets adjudicated.
func (s *DisputeService) AdjudicateIssues(ctx context.Context, bookingID, adminID uuid.UUID, resolution string, refundPercent *float64) error {
	pct, err := normalizeRefundPercent(resolution, refundPercent)
	if err != nil {
		return err
	}

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if booking.Status != models.BookingStatusCompletedWithIssues {
		return fmt.Errorf("%w: booking is %s", ErrBookingNotDisputable, booking.Status)
	}

	now := time.Now().UTC()
	if err := s.settle(ctx, booking, booking.Status, resolution, pct, false, fmt.Sprintf("adjudication:%s", adminID), now); err != nil {
		logger.Log.WithError(err).WithField("booking_id", bookingID).Error("issue adjudication settlement failed")
		return err
	}

	s.notifyResolution(ctx, booking, resolution, pct)
	return nil
}

// settle applies the financial and state outcome of a ruling. The from status
// parameter is the disputed state the booking leaves.
func (s *DisputeService) settle(ctx context.Context, booking *models.Booking, from, resolution string, pct *float64, postPayment bool, payoutRef string, now time.Time) error {
	var refund float64
	if pct != nil {
		refund = round2(booking.TotalPrice * *pct / 100)
	}

	if refund > 0 {
		if booking.PaymentIntentRef == nil {
			return errors.New("booking has no charge reference to refund against")
		}
		if _, err := s.processor.Refund(ctx, *booking.PaymentIntentRef, toCents(refund), postPayment); err != nil {
			return fmt.Errorf("refund: %w", err)
		}
	}

	if postPayment {
		// The contractor was already paid; the platform absorbed the refund.
		return s.bookings.UpdateStatus(ctx, booking.ID, from, models.BookingStatusCompleted)
	}

	switch resolution {
	case models.ResolutionFullRefund:
		if err := s.bookings.SetPayoutStatus(ctx, booking.ID, models.PayoutStatusRefunded); err != nil {
			return err
		}
		return s.bookings.UpdateStatus(ctx, booking.ID, from, models.BookingStatusCancelled)

	default:
		// Partial and no-refund rulings pay the contractor their share of
		// whatever the customer ultimately paid.
		retained := round2(booking.TotalPrice - refund)
		earnings := round2(retained * s.shareRate)
		if booking.ContractorID == nil {
			return errors.New("disputed booking has no contractor")
		}
		contractor, err := s.contractors.GetByID(ctx, *booking.ContractorID)
		if err != nil {
			return err
		}
		if contractor.PayoutAccountRef == nil {
			return errors.New("contractor has no payout account")
		}
		if _, err := s.processor.Transfer(ctx, *contractor.PayoutAccountRef, toCents(earnings), booking.ID); err != nil {
			return fmt.Errorf("payout transfer: %w", err)
		}
		if err := s.bookings.SetPayoutStatus(ctx, booking.ID, models.PayoutStatusPending); err != nil {
			return err
		}
		if err := s.bookings.MarkPayoutReleased(ctx, booking.ID, payoutRef, now); err != nil && !errors.Is(err, repository.ErrBookingStale) {
			return err
		}
		if err := s.contractors.RecordCompletion(ctx, contractor.ID, earnings, now); err != nil {
			logger.Log.WithError(err).WithField("contractor_id", contractor.ID).Error("dispute payout released but earnings rollup failed")
		}
		return s.bookings.UpdateStatus(ctx, booking.ID, from, models.BookingStatusCompleted)
	}
}

func (s *DisputeService) notifyResolution(ctx context.Context, booking *models.Booking, resolution string, pct *float64) {
	outcome := "no refund was issued"
	if pct != nil && *pct > 0 {
		outcome = fmt.Sprintf("a %.0f%% refund was issued", *pct)
	}

	notices := []models.Notice{{
		UserID:    booking.CustomerID,
		Title:     "Dispute resolved",
		Message:   fmt.Sprintf("Your dispute has been resolved (%s); %s.", resolution, outcome),
		Severity:  models.SeverityInfo,
		BookingID: &booking.ID,
		Email:     true,
	}}
	if booking.ContractorID != nil {
		notices = append(notices, models.Notice{
			UserID:    *booking.ContractorID,
			Title:     "Dispute resolved",
			Message:   fmt.Sprintf("A dispute on one of your jobs has been resolved (%s).", resolution),
			Severity:  models.SeverityInfo,
			BookingID: &booking.ID,
			Email:     true,
		})
	}
	s.dispatcher.Dispatch(ctx, notices)
}

// ListOpen returns the admin dispute queue.
func (s *DisputeService) ListOpen(ctx context.Context, limit, offset int) ([]models.Dispute, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.disputes.ListOpen(ctx, limit, offset)
}

// ListMine returns the disputes a user is party to.
func (s *DisputeService) ListMine(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.disputes.ListByUser(ctx, userID, limit, offset)
}

// normalizeRefundPercent validates the refund percentage against the ruling.
func normalizeRefundPercent(resolution string, pct *float64) (*float64, error) {
	switch resolution {
	case models.ResolutionFullRefund:
		full := 100.0
		return &full, nil
	case models.ResolutionPartialRefund:
		if pct == nil || *pct < 5 || *pct > 100 {
			return nil, ErrInvalidRefundPercent
		}
		return pct, nil
	case models.ResolutionNoRefund:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown resolution %q", resolution)
	}
}

func isBookingParty(b *models.Booking, userID uuid.UUID) bool {
	if b.CustomerID == userID {
		return true
	}
	return b.ContractorID != nil && *b.ContractorID == userID
}

// otherParty returns the counterpart of userID on the booking, if any.
func otherParty(b *models.Booking, userID uuid.UUID) *uuid.UUID {
	if b.CustomerID == userID {
		return b.ContractorID
	}
	id := b.CustomerID
	return &id
}
