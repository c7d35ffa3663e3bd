package service

import (
	"math"
	"time"

	"github.com/mowmarket/mowmarket-backend/internal/models"
)

// PricingService computes quotes. It is a pure function of settings, property
// attributes, service options and date; it holds no state of its own.
type PricingService struct{}

func NewPricingService() *PricingService {
	return &PricingService{}
}

// QuoteInput carries everything a quote depends on.
type QuoteInput struct {
	Property         models.Property
	GrassLength      string
	ClippingsRemoval bool
	ServiceDate      time.Time
	Weekend          bool
	PublicHoliday    bool
}

// Quote produces the full price breakdown. Totals are tax-inclusive; the
// breakdown reports the included component.
func (s *PricingService) Quote(settings models.PricingSettings, in QuoteInput) models.QuoteBreakdown {
	area := in.Property.AreaSqm * settings.PerSqmRate

	slopeMult := 1.0
	if in.Property.Sloped {
		slopeMult = settings.SlopeMultiplier
	}

	tiers := in.Property.Tiers
	if tiers < 1 {
		tiers = 1
	}
	tierMult := 1.0 + settings.PerTierMultiplier*float64(tiers-1)

	grassMult := settings.GrassMultiplier(in.GrassLength)

	clippings := 0.0
	if in.ClippingsRemoval {
		clippings = settings.ClippingsFee
	}

	subtotal := round2((settings.BasePrice+area)*slopeMult*tierMult*grassMult + clippings)

	// Holiday surcharge takes precedence over weekend when both apply.
	surchargeRate := 0.0
	if in.Weekend {
		surchargeRate = settings.WeekendSurchargeRate
	}
	if in.PublicHoliday {
		surchargeRate = settings.HolidaySurchargeRate
	}
	surcharge := round2(subtotal * surchargeRate)

	total := round2(subtotal + surcharge)
	tax := round2(total * settings.TaxRate / (1 + settings.TaxRate))

	return models.QuoteBreakdown{
		Base:            settings.BasePrice,
		Area:            round2(area),
		SlopeMultiplier: slopeMult,
		TierMultiplier:  tierMult,
		GrassMultiplier: grassMult,
		ClippingsFee:    clippings,
		DaySurcharge:    surcharge,
		Subtotal:        subtotal,
		Tax:             tax,
		Total:           total,
	}
}

// IsWeekend reports whether a service date lands on a weekend.
func IsWeekend(date time.Time) bool {
	wd := date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// round2 rounds to cents.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
