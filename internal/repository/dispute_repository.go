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

	"github.com/mowmarket/mowmarket-backend/internal/models"
	"github.com/mowmarket/mowmarket-backend/internal/repository/common"
)

var (
	ErrDisputeNotFound = errors.New("dispute not found")
	ErrDisputeResolved = errors.New("dispute already resolved")
)

type DisputeRepository struct {
	db *sqlx.DB
}

func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

func (r *DisputeRepository) Create(ctx context.Context, d *models.Dispute) error {
	query := `
		INSERT INTO disputes (
			booking_id, raised_by, raiser_role, reason_tag, description,
			evidence, suggested_refund, post_payment, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`
	return r.db.QueryRowContext(ctx, query,
		d.BookingID, d.RaisedBy, d.RaiserRole, d.ReasonTag, d.Description,
		d.Evidence, d.SuggestedRefund, d.PostPayment, d.Status,
	).Scan(&d.ID, &d.CreatedAt)
}

func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	return common.GetByID[models.Dispute](ctx, r.db, "disputes", id, ErrDisputeNotFound)
}

func (r *DisputeRepository) GetOpenByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	err := r.db.GetContext(ctx, &d, `
		SELECT * FROM disputes WHERE booking_id = $1 AND status <> $2
	`, bookingID, models.DisputeStatusResolved)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDisputeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// AddCounterEvidence appends the accused party's photo references.
func (r *DisputeRepository) AddCounterEvidence(ctx context.Context, id uuid.UUID, paths []string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE disputes SET counter_evidence = counter_evidence || $2 WHERE id = $1 AND status <> $3
	`, id, pq.StringArray(paths), models.DisputeStatusResolved)
	return err
}

// MarkUnderReview flags a dispute an admin has started on.
func (r *DisputeRepository) MarkUnderReview(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE disputes SET status = $2 WHERE id = $1 AND status = $3
	`, id, models.DisputeStatusUnderReview, models.DisputeStatusPending)
	return err
}

// Resolve stamps resolution, refund percentage, adjudicator and time in one
// atomic write. The status guard makes a second resolution attempt fail.
func (r *DisputeRepository) Resolve(ctx context.Context, id uuid.UUID, resolution string, refundPercent *float64, resolvedBy uuid.UUID, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE disputes
		SET status = $2, resolution = $3, refund_percent = $4, resolved_by = $5, resolved_at = $6
		WHERE id = $1 AND status <> $2
	`, id, models.DisputeStatusResolved, resolution, refundPercent, resolvedBy, at)
	if err != nil {
		return fmt.Errorf("dispute repository: resolve: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrDisputeResolved
	}
	return nil
}

// ListOpen returns unresolved disputes for the admin queue.
func (r *DisputeRepository) ListOpen(ctx context.Context, limit, offset int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT * FROM disputes WHERE status <> $1 ORDER BY created_at LIMIT $2 OFFSET $3
	`, models.DisputeStatusResolved, limit, offset)
	return disputes, err
}

// ListByUser returns disputes visible to one participant.
func (r *DisputeRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT d.* FROM disputes d
		JOIN bookings b ON d.booking_id = b.id
		WHERE b.customer_id = $1 OR b.contractor_id = $1
		ORDER BY d.created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return disputes, err
}
