package models

// PricingSettings are the keyed numeric knobs the quote computation reads.
// Persisted in the pricing_settings table and admin-editable.
type PricingSettings struct {
	BasePrice  float64 `db:"base_price" json:"base_price"`
	PerSqmRate float64 `db:"per_sqm_rate" json:"per_sqm_rate"`

	SlopeMultiplier   float64 `db:"slope_multiplier" json:"slope_multiplier"`
	PerTierMultiplier float64 `db:"per_tier_multiplier" json:"per_tier_multiplier"`

	GrassMediumMultiplier   float64 `db:"grass_medium_multiplier" json:"grass_medium_multiplier"`
	GrassLongMultiplier     float64 `db:"grass_long_multiplier" json:"grass_long_multiplier"`
	GrassVeryLongMultiplier float64 `db:"grass_very_long_multiplier" json:"grass_very_long_multiplier"`

	ClippingsFee float64 `db:"clippings_fee" json:"clippings_fee"`

	WeekendSurchargeRate float64 `db:"weekend_surcharge_rate" json:"weekend_surcharge_rate"`
	HolidaySurchargeRate float64 `db:"holiday_surcharge_rate" json:"holiday_surcharge_rate"`

	// TaxRate is applied inclusively: quoted totals already contain tax and
	// the breakdown reports the included component.
	TaxRate float64 `db:"tax_rate" json:"tax_rate"`
}

// GrassMultiplier returns the multiplier for a grass length value.
func (p PricingSettings) GrassMultiplier(grassLength string) float64 {
	switch grassLength {
	case GrassLengthMedium:
		return p.GrassMediumMultiplier
	case GrassLengthLong:
		return p.GrassLongMultiplier
	case GrassLengthVeryLong:
		return p.GrassVeryLongMultiplier
	default:
		return 1.0
	}
}
