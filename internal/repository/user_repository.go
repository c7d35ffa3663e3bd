package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mowmarket/mowmarket-backend/internal/models"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrNoPaymentMethod = errors.New("user has no stored payment method")
)

// UserRepository reads the minimal user directory this core needs: emails for
// the side channel and the admin list for escalation fan-out. Account
// management itself lives with the auth provider.
type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Email returns a user's email address.
func (r *UserRepository) Email(ctx context.Context, userID uuid.UUID) (string, error) {
	var email string
	err := r.db.GetContext(ctx, &email, `SELECT email FROM users WHERE id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUserNotFound
	}
	return email, err
}

// PaymentMethodRef returns the tokenized card reference stored for a customer.
func (r *UserRepository) PaymentMethodRef(ctx context.Context, userID uuid.UUID) (string, error) {
	var ref sql.NullString
	err := r.db.GetContext(ctx, &ref, `SELECT payment_method_ref FROM users WHERE id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", err
	}
	if !ref.Valid || ref.String == "" {
		return "", ErrNoPaymentMethod
	}
	return ref.String, nil
}

// ListAdminIDs returns every admin user id.
func (r *UserRepository) ListAdminIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids, `SELECT id FROM users WHERE role = $1`, models.RoleAdmin)
	return ids, err
}
