package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// QuoteBreakdown records every multiplier and add-on that produced a price.
// Stored as JSONB alongside the booking.
type QuoteBreakdown struct {
	Base            float64 `json:"base"`
	Area            float64 `json:"area"`
	SlopeMultiplier float64 `json:"slope_multiplier"`
	TierMultiplier  float64 `json:"tier_multiplier"`
	GrassMultiplier float64 `json:"grass_multiplier"`
	ClippingsFee    float64 `json:"clippings_fee"`
	DaySurcharge    float64 `json:"day_surcharge"`
	Subtotal        float64 `json:"subtotal"`
	Tax             float64 `json:"tax"`
	Total           float64 `json:"total"`
}

// Value implements driver.Valuer for JSONB storage.
func (q QuoteBreakdown) Value() (driver.Value, error) {
	return json.Marshal(q)
}

// Scan implements sql.Scanner for JSONB storage.
func (q *QuoteBreakdown) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, q)
	case string:
		return json.Unmarshal([]byte(v), q)
	case nil:
		*q = QuoteBreakdown{}
		return nil
	default:
		return fmt.Errorf("models: cannot scan %T into QuoteBreakdown", src)
	}
}

// Booking is the central entity of the marketplace.
type Booking struct {
	ID                    uuid.UUID  `db:"id" json:"id"`
	CustomerID            uuid.UUID  `db:"customer_id" json:"customer_id"`
	ContractorID          *uuid.UUID `db:"contractor_id" json:"contractor_id,omitempty"`
	PreferredContractorID *uuid.UUID `db:"preferred_contractor_id" json:"preferred_contractor_id,omitempty"`
	AddressID             uuid.UUID  `db:"address_id" json:"address_id"`

	ServiceDate   time.Time `db:"service_date" json:"service_date"`
	TimeSlot      string    `db:"time_slot" json:"time_slot"`
	Weekend       bool      `db:"weekend" json:"weekend"`
	PublicHoliday bool      `db:"public_holiday" json:"public_holiday"`

	GrassLength      string `db:"grass_length" json:"grass_length"`
	ClippingsRemoval bool   `db:"clippings_removal" json:"clippings_removal"`

	// TotalPrice is always the authoritative charge amount. OriginalPrice is
	// populated only when a post-verification recalculation diverged beyond
	// the configured threshold.
	TotalPrice    float64        `db:"total_price" json:"total_price"`
	OriginalPrice *float64       `db:"original_price" json:"original_price,omitempty"`
	Quote         QuoteBreakdown `db:"quote" json:"quote"`

	Status string `db:"status" json:"status"`

	PaymentStatus    string     `db:"payment_status" json:"payment_status"`
	PaymentIntentRef *string    `db:"payment_intent_ref" json:"payment_intent_ref,omitempty"`
	ChargedAt        *time.Time `db:"charged_at" json:"charged_at,omitempty"`

	PayoutStatus     string     `db:"payout_status" json:"payout_status"`
	PayoutRef        *string    `db:"payout_ref" json:"payout_ref,omitempty"`
	PayoutReleasedAt *time.Time `db:"payout_released_at" json:"payout_released_at,omitempty"`

	PriceChangeNotifiedAt *time.Time `db:"price_change_notified_at" json:"price_change_notified_at,omitempty"`

	CompletedAt *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
	IssueTags   pq.StringArray `db:"issue_tags" json:"issue_tags,omitempty"`
	IssueNotes  *string        `db:"issue_notes" json:"issue_notes,omitempty"`

	Rating          *int       `db:"rating" json:"rating,omitempty"`
	RatingComment   *string    `db:"rating_comment" json:"rating_comment,omitempty"`
	RatedAt         *time.Time `db:"rated_at" json:"rated_at,omitempty"`
	RatingSystem    bool       `db:"rating_system" json:"rating_system"`
	ContractorReply *string    `db:"contractor_reply" json:"contractor_reply,omitempty"`

	AcceptedAt *time.Time `db:"accepted_at" json:"accepted_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// TimeSuggestion is a contractor's alternative (date, slot) proposal for a
// pending booking. At most one suggestion per booking may end up accepted.
type TimeSuggestion struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	BookingID    uuid.UUID  `db:"booking_id" json:"booking_id"`
	ContractorID uuid.UUID  `db:"contractor_id" json:"contractor_id"`
	Date         time.Time  `db:"date" json:"date"`
	TimeSlot     string     `db:"time_slot" json:"time_slot"`
	Status       string     `db:"status" json:"status"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	RespondedAt  *time.Time `db:"responded_at" json:"responded_at,omitempty"`
}

// EvidencePhoto is a before/after photographic record for a completion.
type EvidencePhoto struct {
	ID           uuid.UUID `db:"id" json:"id"`
	BookingID    uuid.UUID `db:"booking_id" json:"booking_id"`
	ContractorID uuid.UUID `db:"contractor_id" json:"contractor_id"`
	Kind         string    `db:"kind" json:"kind"`
	Path         string    `db:"path" json:"path"`
	SizeBytes    int64     `db:"size_bytes" json:"size_bytes"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Property holds the admin-verified attributes used for quoting.
type Property struct {
	AreaSqm float64 `db:"area_sqm" json:"area_sqm"`
	Sloped  bool    `db:"sloped" json:"sloped"`
	Tiers   int     `db:"tiers" json:"tiers"`
}
