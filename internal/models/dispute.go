package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Dispute is raised against exactly one booking and is terminal once resolved.
type Dispute struct {
	ID          uuid.UUID `db:"id" json:"id"`
	BookingID   uuid.UUID `db:"booking_id" json:"booking_id"`
	RaisedBy    uuid.UUID `db:"raised_by" json:"raised_by"`
	RaiserRole  string    `db:"raiser_role" json:"raiser_role"`
	ReasonTag   string    `db:"reason_tag" json:"reason_tag"`
	Description string    `db:"description" json:"description"`

	Evidence        pq.StringArray `db:"evidence" json:"evidence,omitempty"`
	CounterEvidence pq.StringArray `db:"counter_evidence" json:"counter_evidence,omitempty"`

	SuggestedRefund *float64 `db:"suggested_refund" json:"suggested_refund,omitempty"`

	// PostPayment marks disputes filed after the contractor payout had
	// already been released; any refund is then platform-funded.
	PostPayment bool `db:"post_payment" json:"post_payment"`

	Status        string     `db:"status" json:"status"`
	Resolution    *string    `db:"resolution" json:"resolution,omitempty"`
	RefundPercent *float64   `db:"refund_percent" json:"refund_percent,omitempty"`
	ResolvedBy    *uuid.UUID `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt    *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
