package models

import (
	"time"

	"github.com/google/uuid"
)

// Notice severity levels.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Notice is a pending side effect produced by a business operation. Services
// return notices alongside their result; the dispatcher delivers them after
// the core write has committed, so delivery failure never aborts a workflow.
type Notice struct {
	UserID    uuid.UUID
	AdminWide bool
	Title     string
	Message   string
	Severity  string
	BookingID *uuid.UUID
	Email     bool
}

// Notification is a delivered notice persisted for in-app display.
type Notification struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	UserID    uuid.UUID  `db:"user_id" json:"user_id"`
	Title     string     `db:"title" json:"title"`
	Message   string     `db:"message" json:"message"`
	Severity  string     `db:"severity" json:"severity"`
	BookingID *uuid.UUID `db:"booking_id" json:"booking_id,omitempty"`
	IsRead    bool       `db:"is_read" json:"is_read"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
