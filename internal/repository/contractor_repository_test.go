package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mowmarket/mowmarket-backend/internal/models"
)

// The rolling dispute count is keyed to when each dispute was filed, so it
// must come from the disputes table. Counting bookings by status would let a
// resolved dispute vanish from the window the moment the status moved on.
func TestContractorRepository_QualityMetrics_CountsFiledDisputes(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mockDB.Close()

	repo := NewContractorRepository(sqlx.NewDb(mockDB, "sqlmock"))
	contractorID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM disputes d`).
		WithArgs(contractorID, models.BookingStatusCancelled,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			models.BookingStatusCompleted).
		WillReturnRows(sqlmock.NewRows([]string{
			"cancelled_7d", "cancelled_14d", "cancelled_30d",
			"one_star_7d", "completed_30d", "disputed_30d",
		}).AddRow(0, 1, 1, 0, 12, 2))
	mock.ExpectQuery(`SELECT AVG\(rating\) FROM bookings`).
		WithArgs(contractorID).
		WillReturnRows(sqlmock.NewRows([]string{"avg"}).AddRow(4.5))

	m, err := repo.QualityMetrics(context.Background(), contractorID, now)
	require.NoError(t, err)

	assert.Equal(t, 2, m.Disputed30d)
	assert.Equal(t, 12, m.Completed30d)
	assert.Equal(t, 1, m.Cancellations30d)
	if assert.NotNil(t, m.LifetimeRating) {
		assert.InDelta(t, 4.5, *m.LifetimeRating, 0.0001)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}
