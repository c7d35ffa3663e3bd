package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mowmarket/mowmarket-backend/internal/models"
)

var (
	ErrPropertyNotFound        = errors.New("property not found")
	ErrPricingSettingsNotFound = errors.New("pricing settings not found")
)

// PricingRepository reads the keyed pricing configuration and verified
// property attributes the quote recomputation depends on.
type PricingRepository struct {
	db *sqlx.DB
}

func NewPricingRepository(db *sqlx.DB) *PricingRepository {
	return &PricingRepository{db: db}
}

// Settings loads the pricing knobs from the key/value settings table.
func (r *PricingRepository) Settings(ctx context.Context) (*models.PricingSettings, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT key, value FROM pricing_settings`)
	if err != nil {
		return nil, fmt.Errorf("pricing repository: load settings: %w", err)
	}
	defer rows.Close()

	values := map[string]float64{}
	for rows.Next() {
		var key string
		var value float64
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("pricing repository: scan setting: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, ErrPricingSettingsNotFound
	}

	get := func(key string, fallback float64) float64 {
		if v, ok := values[key]; ok {
			return v
		}
		return fallback
	}

	return &models.PricingSettings{
		BasePrice:               get("base_price", 45),
		PerSqmRate:              get("per_sqm_rate", 0.12),
		SlopeMultiplier:         get("slope_multiplier", 1.2),
		PerTierMultiplier:       get("per_tier_multiplier", 0.1),
		GrassMediumMultiplier:   get("grass_medium_multiplier", 1.1),
		GrassLongMultiplier:     get("grass_long_multiplier", 1.25),
		GrassVeryLongMultiplier: get("grass_very_long_multiplier", 1.5),
		ClippingsFee:            get("clippings_fee", 15),
		WeekendSurchargeRate:    get("weekend_surcharge_rate", 0.15),
		HolidaySurchargeRate:    get("holiday_surcharge_rate", 0.25),
		TaxRate:                 get("tax_rate", 0.10),
	}, nil
}

// UpdateSetting upserts one pricing knob.
func (r *PricingRepository) UpdateSetting(ctx context.Context, key string, value float64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pricing_settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = NOW()
	`, key, value)
	return err
}

// SetAddressVerification records the outcome of an admin address review.
// A verified address carries the measured attributes future quotes read.
func (r *PricingRepository) SetAddressVerification(ctx context.Context, addressID uuid.UUID, verified bool, p models.Property) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE addresses
		SET verified = $2, area_sqm = $3, sloped = $4, tiers = $5, reviewed_at = NOW()
		WHERE id = $1
	`, addressID, verified, p.AreaSqm, p.Sloped, p.Tiers)
	if err != nil {
		return fmt.Errorf("pricing repository: set address verification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPropertyNotFound
	}
	return nil
}

// VerifiedProperty returns the admin-verified attributes of an address.
func (r *PricingRepository) VerifiedProperty(ctx context.Context, addressID uuid.UUID) (*models.Property, error) {
	var p models.Property
	err := r.db.GetContext(ctx, &p, `
		SELECT area_sqm, sloped, tiers FROM addresses WHERE id = $1 AND verified = TRUE
	`, addressID)
	if err != nil {
		return nil, ErrPropertyNotFound
	}
	return &p, nil
}
