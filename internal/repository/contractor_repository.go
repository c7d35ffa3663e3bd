package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mowmarket/mowmarket-backend/internal/models"
	"github.com/mowmarket/mowmarket-backend/internal/repository/common"
)

var ErrContractorNotFound = errors.New("contractor not found")

type ContractorRepository struct {
	db *sqlx.DB
}

func NewContractorRepository(db *sqlx.DB) *ContractorRepository {
	return &ContractorRepository{db: db}
}

// GetByID returns one contractor.
func (r *ContractorRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Contractor, error) {
	return common.GetByID[models.Contractor](ctx, r.db, "contractors", id, ErrContractorNotFound)
}

// ListActiveApproved returns the contractors the quality loop evaluates.
func (r *ContractorRepository) ListActiveApproved(ctx context.Context) ([]models.Contractor, error) {
	var contractors []models.Contractor
	err := r.db.SelectContext(ctx, &contractors, `
		SELECT * FROM contractors WHERE active = TRUE AND approval_status = $1 ORDER BY created_at
	`, models.ApprovalStatusApproved)
	return contractors, err
}

// QualityMetrics computes the rolling-window figures for one contractor.
func (r *ContractorRepository) QualityMetrics(ctx context.Context, contractorID uuid.UUID, now time.Time) (*models.QualityMetrics, error) {
	var m models.QualityMetrics

	// A dispute counts against the contractor for 30 days from the day it
	// was filed. Resolving it does not drop it out of the window early.
	row := r.db.QueryRowxContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = $2 AND updated_at >= $3) AS cancelled_7d,
			COUNT(*) FILTER (WHERE status = $2 AND updated_at >= $4) AS cancelled_14d,
			COUNT(*) FILTER (WHERE status = $2 AND updated_at >= $5) AS cancelled_30d,
			COUNT(*) FILTER (WHERE rating = 1 AND rated_at >= $3) AS one_star_7d,
			COUNT(*) FILTER (WHERE status = $6 AND completed_at >= $5) AS completed_30d,
			(SELECT COUNT(*)
			 FROM disputes d
			 JOIN bookings b ON b.id = d.booking_id
			 WHERE b.contractor_id = $1 AND d.created_at >= $5) AS disputed_30d
		FROM bookings WHERE contractor_id = $1
	`, contractorID,
		models.BookingStatusCancelled,
		now.AddDate(0, 0, -7), now.AddDate(0, 0, -14), now.AddDate(0, 0, -30),
		models.BookingStatusCompleted,
	)
	if err := row.Scan(
		&m.Cancellations7d, &m.Cancellations14d, &m.Cancellations30d,
		&m.OneStarRatings7d, &m.Completed30d, &m.Disputed30d,
	); err != nil {
		return nil, fmt.Errorf("contractor repository: quality metrics: %w", err)
	}

	if err := r.db.GetContext(ctx, &m.LifetimeRating, `
		SELECT AVG(rating) FROM bookings WHERE contractor_id = $1 AND rating IS NOT NULL
	`, contractorID); err != nil {
		return nil, fmt.Errorf("contractor repository: lifetime rating: %w", err)
	}

	return &m, nil
}

// UpdateStanding writes the outcome of one quality evaluation: the standing,
// both bounded history logs and the rolled-up counters, in one statement.
func (r *ContractorRepository) UpdateStanding(ctx context.Context, c *models.Contractor) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE contractors
		SET suspension_status = $2, suspension_reason = $3, suspended_at = $4,
		    warning_log = $5, review_log = $6, active = $7,
		    cancelled_jobs = $8, disputed_jobs = $9, average_rating = $10,
		    updated_at = NOW()
		WHERE id = $1
	`, c.ID, c.SuspensionStatus, c.SuspensionReason, c.SuspendedAt,
		c.WarningLog, c.ReviewLog, c.Active,
		c.CancelledJobs, c.DisputedJobs, c.AverageRating)
	if err != nil {
		return fmt.Errorf("contractor repository: update standing: %w", err)
	}
	return nil
}

// RecordCompletion bumps the lifetime counters after a settled payout.
func (r *ContractorRepository) RecordCompletion(ctx context.Context, id uuid.UUID, earnings float64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE contractors
		SET completed_jobs = completed_jobs + 1, total_revenue = total_revenue + $2,
		    last_active_at = $3, updated_at = NOW()
		WHERE id = $1
	`, id, earnings, at)
	if err != nil {
		return fmt.Errorf("contractor repository: record completion: %w", err)
	}
	return nil
}

// TouchLastActive stamps contractor activity.
func (r *ContractorRepository) TouchLastActive(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE contractors SET last_active_at = $2, updated_at = NOW() WHERE id = $1
	`, id, at)
	return err
}
