package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mowmarket/mowmarket-backend/internal/models"
)

// PhotoRepository stores completion-evidence metadata. The files themselves
// live in blob storage; the count gate only needs these rows.
type PhotoRepository struct {
	db *sqlx.DB
}

func NewPhotoRepository(db *sqlx.DB) *PhotoRepository {
	return &PhotoRepository{db: db}
}

func (r *PhotoRepository) Create(ctx context.Context, p *models.EvidencePhoto) error {
	query := `
		INSERT INTO evidence_photos (booking_id, contractor_id, kind, path, size_bytes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	return r.db.QueryRowContext(ctx, query, p.BookingID, p.ContractorID, p.Kind, p.Path, p.SizeBytes).
		Scan(&p.ID, &p.CreatedAt)
}

// CountByKind counts photos of one kind for a booking/contractor pair.
func (r *PhotoRepository) CountByKind(ctx context.Context, bookingID, contractorID uuid.UUID, kind string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM evidence_photos
		WHERE booking_id = $1 AND contractor_id = $2 AND kind = $3
	`, bookingID, contractorID, kind)
	if err != nil {
		return 0, fmt.Errorf("photo repository: count by kind: %w", err)
	}
	return count, nil
}

// ListByBooking returns all evidence for a booking.
func (r *PhotoRepository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.EvidencePhoto, error) {
	var photos []models.EvidencePhoto
	err := r.db.SelectContext(ctx, &photos, `
		SELECT * FROM evidence_photos WHERE booking_id = $1 ORDER BY created_at
	`, bookingID)
	return photos, err
}
