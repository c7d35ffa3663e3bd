package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/mowmarket/mowmarket-backend/internal/metrics"
	"github.com/mowmarket/mowmarket-backend/internal/models"
	"github.com/mowmarket/mowmarket-backend/internal/repository/common"
)

var (
	ErrBookingNotFound     = errors.New("booking not found")
	ErrBookingStale        = errors.New("booking state changed concurrently")
	ErrSuggestionNotFound  = errors.New("time suggestion not found")
	ErrDuplicateSuggestion = errors.New("identical suggestion already exists for this booking")
)

type BookingRepository struct {
	db *sqlx.DB
}

func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create inserts a new booking in pending_address_verification.
func (r *BookingRepository) Create(ctx context.Context, b *models.Booking) error {
	query := `
		INSERT INTO bookings (
			customer_id, preferred_contractor_id, address_id,
			service_date, time_slot, weekend, public_holiday,
			grass_length, clippings_removal,
			total_price, quote, status, payment_status, payout_status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRowContext(ctx, query,
		b.CustomerID, b.PreferredContractorID, b.AddressID,
		b.ServiceDate, b.TimeSlot, b.Weekend, b.PublicHoliday,
		b.GrassLength, b.ClippingsRemoval,
		b.TotalPrice, b.Quote, b.Status, b.PaymentStatus, b.PayoutStatus,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
}

// GetByID returns one booking.
func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return common.GetByID[models.Booking](ctx, r.db, "bookings", id, ErrBookingNotFound)
}

// ListByAddressAndStatus returns the bookings attached to an address in the
// given status. Used by the address verification gate.
func (r *BookingRepository) ListByAddressAndStatus(ctx context.Context, addressID uuid.UUID, status string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.SelectContext(ctx, &bookings, `
		SELECT * FROM bookings WHERE address_id = $1 AND status = $2 ORDER BY created_at
	`, addressID, status)
	return bookings, err
}

// ListPending returns the open job pool visible to contractors.
func (r *BookingRepository) ListPending(ctx context.Context, limit, offset int) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.SelectContext(ctx, &bookings, `
		SELECT * FROM bookings WHERE status = $1 AND contractor_id IS NULL
		ORDER BY service_date LIMIT $2 OFFSET $3
	`, models.BookingStatusPending, limit, offset)
	return bookings, err
}

// ListByCustomer returns a customer's bookings, newest first.
func (r *BookingRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.SelectContext(ctx, &bookings, `
		SELECT * FROM bookings WHERE customer_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, customerID, limit, offset)
	return bookings, err
}

// ListByContractor returns a contractor's assigned bookings, newest first.
func (r *BookingRepository) ListByContractor(ctx context.Context, contractorID uuid.UUID, limit, offset int) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.SelectContext(ctx, &bookings, `
		SELECT * FROM bookings WHERE contractor_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, contractorID, limit, offset)
	return bookings, err
}

// UpdateStatus moves a booking between statuses with a check-and-set guard:
// the UPDATE only matches when the row still carries the expected status, so
// two workflows can never race the same transition.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bookings SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return fmt.Errorf("booking repository: update status: %w", err)
	}
	if err := requireOneRow(res); err != nil {
		return err
	}
	metrics.IncTransition(to)
	return nil
}

// SetPriceChangePending stores both prices and stamps the notification time.
// Guarded on the booking still awaiting address verification.
func (r *BookingRepository) SetPriceChangePending(ctx context.Context, id uuid.UUID, originalPrice, newTotal float64, quote models.QuoteBreakdown, notifiedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bookings
		SET status = $2, original_price = $3, total_price = $4, quote = $5,
		    price_change_notified_at = $6, updated_at = NOW()
		WHERE id = $1 AND status = $7
	`, id, models.BookingStatusPriceChangePending, originalPrice, newTotal, quote,
		notifiedAt, models.BookingStatusPendingAddressVerification)
	if err != nil {
		return fmt.Errorf("booking repository: set price change pending: %w", err)
	}
	return requireOneRow(res)
}

// SetVerifiedPending releases a verified booking into the contractor pool,
// applying the (equal or lower) recomputed price.
func (r *BookingRepository) SetVerifiedPending(ctx context.Context, id uuid.UUID, total float64, quote models.QuoteBreakdown, from string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bookings
		SET status = $2, total_price = $3, quote = $4, payment_status = $5, updated_at = NOW()
		WHERE id = $1 AND status = $6
	`, id, models.BookingStatusPending, total, quote, models.PaymentStatusUnpaid, from)
	if err != nil {
		return fmt.Errorf("booking repository: set verified pending: %w", err)
	}
	return requireOneRow(res)
}

// ApprovePriceChange moves price_change_pending to pending on explicit
// customer approval. The stored total is already the new price.
func (r *BookingRepository) ApprovePriceChange(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bookings SET status = $2, payment_status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`, id, models.BookingStatusPending, models.PaymentStatusUnpaid, models.BookingStatusPriceChangePending)
	if err != nil {
		return fmt.Errorf("booking repository: approve price change: %w", err)
	}
	return requireOneRow(res)
}

// Claim reserves a pending, unassigned booking for a contractor. Exactly one
// of two concurrent contractors can win this conditional update.
func (r *BookingRepository) Claim(ctx context.Context, id, contractorID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bookings SET contractor_id = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3 AND contractor_id IS NULL
	`, id, contractorID, models.BookingStatusPending)
	if err != nil {
		return fmt.Errorf("booking repository: claim: %w", err)
	}
	return requireOneRow(res)
}

// ReleaseClaim is the compensating action after a failed charge: the job
// returns to the pool exactly as it was.
func (r *BookingRepository) ReleaseClaim(ctx context.Context, id, contractorID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bookings SET contractor_id = NULL, updated_at = NOW()
		WHERE id = $1 AND contractor_id = $2 AND status = $3
	`, id, contractorID, models.BookingStatusPending)
	if err != nil {
		return fmt.Errorf("booking repository: release claim: %w", err)
	}
	return requireOneRow(res)
}

// ConfirmAssignment finalizes a successful charge: the booking is confirmed,
// payment recorded, acceptance stamped.
func (r *BookingRepository) ConfirmAssignment(ctx context.Context, id, contractorID uuid.UUID, chargeRef string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bookings
		SET status = $3, payment_status = $4, payment_intent_ref = $5,
		    charged_at = $6, accepted_at = $6, updated_at = NOW()
		WHERE id = $1 AND contractor_id = $2 AND status = $7
	`, id, contractorID, models.BookingStatusConfirmed, models.PaymentStatusPaid,
		chargeRef, at, models.BookingStatusPending)
	if err != nil {
		return fmt.Errorf("booking repository: confirm assignment: %w", err)
	}
	if err := requireOneRow(res); err != nil {
		return err
	}
	metrics.IncTransition(models.BookingStatusConfirmed)
	return nil
}

// Reschedule applies an accepted alternative (date, slot) pair.
func (r *BookingRepository) Reschedule(ctx context.Context, id uuid.UUID, date time.Time, slot string, weekend bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE bookings SET service_date = $2, time_slot = $3, weekend = $4, updated_at = NOW()
		WHERE id = $1
	`, id, date, slot, weekend)
	return err
}

// Complete records the completion branch chosen by the evidence/issue check.
func (r *BookingRepository) Complete(ctx context.Context, id uuid.UUID, status, payoutStatus string, issues []string, notes *string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bookings
		SET status = $2, payout_status = $3, issue_tags = $4, issue_notes = $5,
		    completed_at = $6, updated_at = NOW()
		WHERE id = $1 AND status = $7
	`, id, status, payoutStatus, pq.StringArray(issues), notes, at, models.BookingStatusConfirmed)
	if err != nil {
		return fmt.Errorf("booking repository: complete: %w", err)
	}
	if err := requireOneRow(res); err != nil {
		return err
	}
	metrics.IncTransition(status)
	return nil
}

// MarkPayoutReleased stamps the settlement. The payout_status guard makes the
// release idempotent even under concurrent duplicate triggers.
func (r *BookingRepository) MarkPayoutReleased(ctx context.Context, id uuid.UUID, payoutRef string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bookings
		SET payout_status = $2, payout_ref = $3, payout_released_at = $4, updated_at = NOW()
		WHERE id = $1 AND payout_status = $5
	`, id, models.PayoutStatusReleased, payoutRef, at, models.PayoutStatusPending)
	if err != nil {
		return fmt.Errorf("booking repository: mark payout released: %w", err)
	}
	return requireOneRow(res)
}

// SetPayoutStatus records a dispute-driven settlement outcome.
func (r *BookingRepository) SetPayoutStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE bookings SET payout_status = $2, updated_at = NOW() WHERE id = $1
	`, id, status)
	return err
}

// SubmitRating stores the customer rating once; a second write is rejected.
func (r *BookingRepository) SubmitRating(ctx context.Context, id uuid.UUID, rating int, comment *string, system bool, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bookings
		SET rating = $2, rating_comment = $3, rating_system = $4, rated_at = $5, updated_at = NOW()
		WHERE id = $1 AND rating IS NULL
	`, id, rating, comment, system, at)
	if err != nil {
		return fmt.Errorf("booking repository: submit rating: %w", err)
	}
	return requireOneRow(res)
}

// SetContractorReply stores the contractor's reply to a rating.
func (r *BookingRepository) SetContractorReply(ctx context.Context, id, contractorID uuid.UUID, reply string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bookings SET contractor_reply = $3, updated_at = NOW()
		WHERE id = $1 AND contractor_id = $2 AND rating IS NOT NULL
	`, id, contractorID, reply)
	if err != nil {
		return fmt.Errorf("booking repository: set contractor reply: %w", err)
	}
	return requireOneRow(res)
}

// ListStalePriceChanges finds price-change approvals older than the cutoff.
func (r *BookingRepository) ListStalePriceChanges(ctx context.Context, cutoff time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.SelectContext(ctx, &bookings, `
		SELECT * FROM bookings
		WHERE status = $1 AND price_change_notified_at < $2
		ORDER BY price_change_notified_at
	`, models.BookingStatusPriceChangePending, cutoff)
	return bookings, err
}

// ListAutoReleasable finds completions whose review window has expired with
// the payout still pending.
func (r *BookingRepository) ListAutoReleasable(ctx context.Context, cutoff time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.SelectContext(ctx, &bookings, `
		SELECT * FROM bookings
		WHERE status = $1 AND payout_status = $2 AND completed_at < $3
		ORDER BY completed_at
	`, models.BookingStatusCompletedPendingVerify, models.PayoutStatusPending, cutoff)
	return bookings, err
}

// CountActiveByContractor counts confirmed, not yet completed assignments.
func (r *BookingRepository) CountActiveByContractor(ctx context.Context, contractorID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM bookings WHERE contractor_id = $1 AND status = $2
	`, contractorID, models.BookingStatusConfirmed)
	return count, err
}

// CreateSuggestion inserts an alternative-time proposal. A duplicate
// (booking, contractor, date, slot) hits the unique index.
func (r *BookingRepository) CreateSuggestion(ctx context.Context, s *models.TimeSuggestion) error {
	query := `
		INSERT INTO time_suggestions (booking_id, contractor_id, date, time_slot, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, s.BookingID, s.ContractorID, s.Date, s.TimeSlot, s.Status).
		Scan(&s.ID, &s.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateSuggestion
	}
	return err
}

// GetSuggestion returns one suggestion.
func (r *BookingRepository) GetSuggestion(ctx context.Context, id uuid.UUID) (*models.TimeSuggestion, error) {
	return common.GetByID[models.TimeSuggestion](ctx, r.db, "time_suggestions", id, ErrSuggestionNotFound)
}

// ListSuggestions returns all suggestions for a booking.
func (r *BookingRepository) ListSuggestions(ctx context.Context, bookingID uuid.UUID) ([]models.TimeSuggestion, error) {
	var suggestions []models.TimeSuggestion
	err := r.db.SelectContext(ctx, &suggestions, `
		SELECT * FROM time_suggestions WHERE booking_id = $1 ORDER BY created_at
	`, bookingID)
	return suggestions, err
}

// AcceptSuggestion marks one suggestion accepted and auto-declines every
// pending sibling, in one transaction. At most one acceptance can ever win.
func (r *BookingRepository) AcceptSuggestion(ctx context.Context, id, bookingID uuid.UUID, at time.Time) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE time_suggestions SET status = $2, responded_at = $3
			WHERE id = $1 AND status = $4
		`, id, models.SuggestionStatusAccepted, at, models.SuggestionStatusPending)
		if err != nil {
			return fmt.Errorf("accept suggestion: %w", err)
		}
		if err := requireOneRow(res); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE time_suggestions SET status = $3, responded_at = $4
			WHERE booking_id = $1 AND id <> $2 AND status = $5
		`, bookingID, id, models.SuggestionStatusDeclined, at, models.SuggestionStatusPending)
		if err != nil {
			return fmt.Errorf("decline sibling suggestions: %w", err)
		}
		return nil
	})
}

// DeclineSuggestion marks one pending suggestion declined.
func (r *BookingRepository) DeclineSuggestion(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE time_suggestions SET status = $2, responded_at = $3
		WHERE id = $1 AND status = $4
	`, id, models.SuggestionStatusDeclined, at, models.SuggestionStatusPending)
	if err != nil {
		return fmt.Errorf("booking repository: decline suggestion: %w", err)
	}
	return requireOneRow(res)
}

// requireOneRow maps a zero-row conditional update to ErrBookingStale.
func requireOneRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrBookingStale
	}
	return nil
}

// isUniqueViolation reports whether err is a postgres unique constraint error.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
