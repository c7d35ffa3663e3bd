package dto

import (
	"time"

	"github.com/google/uuid"
)

// CreateBookingRequest is the customer payload for a new booking. Property
// attributes are the customer's own estimate; they are re-measured by an
// admin before any charge happens.
type CreateBookingRequest struct {
	AddressID             string  `json:"address_id" binding:"required"`
	PreferredContractorID *string `json:"preferred_contractor_id"`
	ServiceDate           string  `json:"service_date" binding:"required"`
	TimeSlot              string  `json:"time_slot" binding:"required"`
	GrassLength           string  `json:"grass_length" binding:"required"`
	ClippingsRemoval      bool    `json:"clippings_removal"`
	PublicHoliday         bool    `json:"public_holiday"`
	AreaSqm               float64 `json:"area_sqm" binding:"required,gt=0"`
	Sloped                bool    `json:"sloped"`
	Tiers                 int     `json:"tiers" binding:"gte=0"`
}

// ParseServiceDate parses the service date, accepting a bare date or a full
// RFC3339 timestamp.
func (r CreateBookingRequest) ParseServiceDate() (time.Time, error) {
	if t, err := time.Parse("2006-01-02", r.ServiceDate); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, r.ServiceDate)
}

// ParsePreferredContractorID parses the optional preferred contractor UUID.
func (r CreateBookingRequest) ParsePreferredContractorID() (*uuid.UUID, error) {
	if r.PreferredContractorID == nil || *r.PreferredContractorID == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*r.PreferredContractorID)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// ApproveCompletionRequest carries the mandatory rating the customer leaves
// when confirming a finished job.
type ApproveCompletionRequest struct {
	Rating  int     `json:"rating" binding:"required"`
	Comment *string `json:"comment"`
}

// RatingReplyRequest is the contractor's public reply to a rating.
type RatingReplyRequest struct {
	Reply string `json:"reply" binding:"required"`
}

// CompleteJobRequest is the contractor's completion submission. Evidence
// photos must already be uploaded before this call.
type CompleteJobRequest struct {
	IssueTags []string `json:"issue_tags"`
	Notes     *string  `json:"notes"`
}

// SuggestTimeRequest proposes an alternative schedule for a pending booking.
type SuggestTimeRequest struct {
	Date     string `json:"date" binding:"required"`
	TimeSlot string `json:"time_slot" binding:"required"`
}

// ParseDate parses the suggested date, accepting a bare date or RFC3339.
func (r SuggestTimeRequest) ParseDate() (time.Time, error) {
	if t, err := time.Parse("2006-01-02", r.Date); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, r.Date)
}

// CreateDisputeRequest opens a dispute against a booking.
type CreateDisputeRequest struct {
	ReasonTag       string   `json:"reason_tag" binding:"required"`
	Description     string   `json:"description" binding:"required"`
	Evidence        []string `json:"evidence"`
	SuggestedRefund *float64 `json:"suggested_refund"`
}

// CounterEvidenceRequest attaches the opposing party's evidence to an open
// dispute.
type CounterEvidenceRequest struct {
	Evidence []string `json:"evidence" binding:"required,min=1"`
}

// ResolveDisputeRequest is the admin ruling on a dispute or on a completion
// submitted with issues.
type ResolveDisputeRequest struct {
	Resolution    string   `json:"resolution" binding:"required"`
	RefundPercent *float64 `json:"refund_percent"`
}

// AddressReviewRequest records the admin's measurement of a property.
// Approvals feed the verified attributes into every waiting booking.
type AddressReviewRequest struct {
	AreaSqm float64 `json:"area_sqm" binding:"required,gt=0"`
	Sloped  bool    `json:"sloped"`
	Tiers   int     `json:"tiers" binding:"gte=0"`
}

// UpdatePricingSettingRequest upserts one pricing knob by key.
type UpdatePricingSettingRequest struct {
	Key   string  `json:"key" binding:"required"`
	Value float64 `json:"value" binding:"required"`
}
