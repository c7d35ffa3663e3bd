package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StandingEntry is one timestamped reason line in a contractor's warning or
// review history.
type StandingEntry struct {
	At     time.Time `json:"at"`
	Reason string    `json:"reason"`
}

// StandingLog is the JSONB representation of a bounded standing history.
type StandingLog []StandingEntry

// Value implements driver.Valuer for JSONB storage.
func (l StandingLog) Value() (driver.Value, error) {
	if l == nil {
		l = StandingLog{}
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner for JSONB storage.
func (l *StandingLog) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	case nil:
		*l = StandingLog{}
		return nil
	default:
		return fmt.Errorf("models: cannot scan %T into StandingLog", src)
	}
}

// Contractor is a service provider profile.
type Contractor struct {
	ID             uuid.UUID `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	ApprovalStatus string    `db:"approval_status" json:"approval_status"`
	Active         bool      `db:"active" json:"active"`
	Tier           string    `db:"tier" json:"tier"`

	CompletedJobs int      `db:"completed_jobs" json:"completed_jobs"`
	CancelledJobs int      `db:"cancelled_jobs" json:"cancelled_jobs"`
	DisputedJobs  int      `db:"disputed_jobs" json:"disputed_jobs"`
	AverageRating *float64 `db:"average_rating" json:"average_rating,omitempty"`
	TotalRevenue  float64  `db:"total_revenue" json:"total_revenue"`

	LastActiveAt *time.Time `db:"last_active_at" json:"last_active_at,omitempty"`

	SuspensionStatus string      `db:"suspension_status" json:"suspension_status"`
	SuspensionReason *string     `db:"suspension_reason" json:"suspension_reason,omitempty"`
	SuspendedAt      *time.Time  `db:"suspended_at" json:"suspended_at,omitempty"`
	WarningLog       StandingLog `db:"warning_log" json:"warning_log"`
	ReviewLog        StandingLog `db:"review_log" json:"review_log"`

	InsuranceRef       *string    `db:"insurance_ref" json:"insurance_ref,omitempty"`
	InsuranceExpiresAt *time.Time `db:"insurance_expires_at" json:"insurance_expires_at,omitempty"`
	InsuranceVerified  bool       `db:"insurance_verified" json:"insurance_verified"`

	// PayoutAccountRef points at the external payout account; PayoutsEnabled
	// is true only once that account is fully onboarded.
	PayoutAccountRef *string `db:"payout_account_ref" json:"payout_account_ref,omitempty"`
	PayoutsEnabled   bool    `db:"payouts_enabled" json:"payouts_enabled"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// QualityMetrics are the rolling-window figures the quality control loop
// evaluates for one contractor.
type QualityMetrics struct {
	Cancellations7d  int
	Cancellations14d int
	Cancellations30d int
	OneStarRatings7d int
	Completed30d     int
	Disputed30d      int
	LifetimeRating   *float64
}

// DisputeRate returns the disputed/completed percentage over 30 days.
// Zero completions yield a zero rate.
func (m QualityMetrics) DisputeRate() float64 {
	if m.Completed30d == 0 {
		return 0
	}
	return float64(m.Disputed30d) / float64(m.Completed30d) * 100
}
