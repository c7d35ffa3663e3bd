package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mowmarket/mowmarket-backend/internal/models"
)

func testSettings() models.PricingSettings {
	return models.PricingSettings{
		BasePrice:               50,
		PerSqmRate:              0.5,
		SlopeMultiplier:         1.3,
		PerTierMultiplier:       0.15,
		GrassMediumMultiplier:   1.2,
		GrassLongMultiplier:     1.5,
		GrassVeryLongMultiplier: 2.0,
		ClippingsFee:            25,
		WeekendSurchargeRate:    0.10,
		HolidaySurchargeRate:    0.25,
		TaxRate:                 0.10,
	}
}

func TestPricingService_Quote_FlatBlock(t *testing.T) {
	svc := NewPricingService()

	quote := svc.Quote(testSettings(), QuoteInput{
		Property:    models.Property{AreaSqm: 100, Tiers: 1},
		GrassLength: models.GrassLengthShort,
		ServiceDate: time.Date(2026, 9, 16, 0, 0, 0, 0, time.UTC),
	})

	assert.Equal(t, 100.0, quote.Subtotal)
	assert.Equal(t, 0.0, quote.DaySurcharge)
	assert.Equal(t, 100.0, quote.Total)
	assert.Equal(t, 9.09, quote.Tax)
}

func TestPricingService_Quote_Multipliers(t *testing.T) {
	svc := NewPricingService()

	quote := svc.Quote(testSettings(), QuoteInput{
		Property:         models.Property{AreaSqm: 100, Sloped: true, Tiers: 3},
		GrassLength:      models.GrassLengthLong,
		ClippingsRemoval: true,
		ServiceDate:      time.Date(2026, 9, 16, 0, 0, 0, 0, time.UTC),
	})

	// (50 + 50) * 1.3 * 1.3 * 1.5 + 25
	assert.Equal(t, 278.5, quote.Subtotal)
	assert.Equal(t, 1.3, quote.SlopeMultiplier)
	assert.Equal(t, 1.3, quote.TierMultiplier)
	assert.Equal(t, 1.5, quote.GrassMultiplier)
	assert.Equal(t, 25.0, quote.ClippingsFee)
}

func TestPricingService_Quote_HolidayBeatsWeekend(t *testing.T) {
	svc := NewPricingService()

	quote := svc.Quote(testSettings(), QuoteInput{
		Property:      models.Property{AreaSqm: 100, Tiers: 1},
		GrassLength:   models.GrassLengthShort,
		Weekend:       true,
		PublicHoliday: true,
		ServiceDate:   time.Date(2026, 9, 19, 0, 0, 0, 0, time.UTC),
	})

	assert.Equal(t, 25.0, quote.DaySurcharge)
	assert.Equal(t, 125.0, quote.Total)
}

func TestPricingService_Quote_WeekendSurcharge(t *testing.T) {
	svc := NewPricingService()

	quote := svc.Quote(testSettings(), QuoteInput{
		Property:    models.Property{AreaSqm: 100, Tiers: 1},
		GrassLength: models.GrassLengthShort,
		Weekend:     true,
		ServiceDate: time.Date(2026, 9, 19, 0, 0, 0, 0, time.UTC),
	})

	assert.Equal(t, 10.0, quote.DaySurcharge)
	assert.Equal(t, 110.0, quote.Total)
}

func TestIsWeekend(t *testing.T) {
	assert.True(t, IsWeekend(time.Date(2026, 9, 19, 0, 0, 0, 0, time.UTC)))
	assert.True(t, IsWeekend(time.Date(2026, 9, 20, 0, 0, 0, 0, time.UTC)))
	assert.False(t, IsWeekend(time.Date(2026, 9, 21, 0, 0, 0, 0, time.UTC)))
}
