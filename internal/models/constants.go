package models

// BookingStatus constants for the booking lifecycle.
const (
	BookingStatusPendingAddressVerification = "pending_address_verification"
	BookingStatusPriceChangePending         = "price_change_pending"
	BookingStatusPending                    = "pending"
	BookingStatusConfirmed                  = "confirmed"
	BookingStatusCompletedPendingVerify     = "completed_pending_verification"
	BookingStatusCompletedWithIssues        = "completed_with_issues"
	BookingStatusCompleted                  = "completed"
	BookingStatusCancelled                  = "cancelled"
	BookingStatusDisputed                   = "disputed"
	BookingStatusPostPaymentDispute         = "post_payment_dispute"
)

// PaymentStatus constants for the customer charge.
const (
	PaymentStatusUnpaid  = "unpaid"
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
)

// PayoutStatus constants for the contractor settlement.
const (
	PayoutStatusPending  = "pending"
	PayoutStatusFrozen   = "frozen"
	PayoutStatusReleased = "released"
	PayoutStatusRefunded = "refunded"
)

// TimeSlot constants for the serviceable windows of a day.
const (
	TimeSlotEarly       = "early"
	TimeSlotLateMorning = "late_morning"
	TimeSlotAfternoon   = "afternoon"
)

// GrassLength constants reported by the customer at booking time.
const (
	GrassLengthShort    = "short"
	GrassLengthMedium   = "medium"
	GrassLengthLong     = "long"
	GrassLengthVeryLong = "very_long"
)

// ContractorTier constants gating concurrency and job value.
const (
	TierProbation = "probation"
	TierStandard  = "standard"
	TierPremium   = "premium"
)

// SuspensionStatus constants for contractor standing.
const (
	StandingActive         = "active"
	StandingWarning        = "warning"
	StandingReviewRequired = "review_required"
	StandingSuspended      = "suspended"
)

// ApprovalStatus constants for contractor onboarding.
const (
	ApprovalStatusPending  = "pending"
	ApprovalStatusApproved = "approved"
	ApprovalStatusDeclined = "declined"
	ApprovalStatusRejected = "rejected"
)

// SuggestionStatus constants for alternative-time proposals.
const (
	SuggestionStatusPending  = "pending"
	SuggestionStatusAccepted = "accepted"
	SuggestionStatusDeclined = "declined"
)

// DisputeStatus constants.
const (
	DisputeStatusPending     = "pending"
	DisputeStatusUnderReview = "under_review"
	DisputeStatusResolved    = "resolved"
)

// DisputeResolution constants.
const (
	ResolutionFullRefund    = "full_refund"
	ResolutionPartialRefund = "partial_refund"
	ResolutionNoRefund      = "no_refund"
)

// Caller role constants.
const (
	RoleCustomer   = "customer"
	RoleContractor = "contractor"
	RoleAdmin      = "admin"
)

// PhotoKind constants for completion evidence.
const (
	PhotoKindBefore = "before"
	PhotoKindAfter  = "after"
)

// IssueTag constants a contractor may report at completion.
const (
	IssueTagPropertyDamage = "property_damage"
	IssueTagAccessBlocked  = "access_blocked"
	IssueTagIncompleteLawn = "incomplete_lawn"
	IssueTagCustomerAbsent = "customer_absent"
	IssueTagOther          = "other"
)

// ValidTimeSlots lists accepted time slot values.
var ValidTimeSlots = map[string]struct{}{
	TimeSlotEarly:       {},
	TimeSlotLateMorning: {},
	TimeSlotAfternoon:   {},
}

// ValidGrassLengths lists accepted grass length values.
var ValidGrassLengths = map[string]struct{}{
	GrassLengthShort:    {},
	GrassLengthMedium:   {},
	GrassLengthLong:     {},
	GrassLengthVeryLong: {},
}

// ValidIssueTags lists accepted contractor issue tags.
var ValidIssueTags = map[string]struct{}{
	IssueTagPropertyDamage: {},
	IssueTagAccessBlocked:  {},
	IssueTagIncompleteLawn: {},
	IssueTagCustomerAbsent: {},
	IssueTagOther:          {},
}

// bookingTransitions is the single source of truth for legal status moves.
// Every status write goes through CanTransition, so illegal moves fail at
// one choke point instead of being possible from any call site.
var bookingTransitions = map[string]map[string]struct{}{
	BookingStatusPendingAddressVerification: {
		BookingStatusPriceChangePending: {},
		BookingStatusPending:            {},
		BookingStatusCancelled:          {},
	},
	BookingStatusPriceChangePending: {
		BookingStatusPending:   {},
		BookingStatusCancelled: {},
	},
	BookingStatusPending: {
		BookingStatusConfirmed: {},
		BookingStatusCancelled: {},
	},
	BookingStatusConfirmed: {
		BookingStatusCompletedPendingVerify: {},
		BookingStatusCompletedWithIssues:    {},
		BookingStatusCancelled:              {},
	},
	BookingStatusCompletedPendingVerify: {
		BookingStatusCompleted: {},
		BookingStatusDisputed:  {},
	},
	BookingStatusCompletedWithIssues: {
		BookingStatusCompleted: {},
		BookingStatusCancelled: {},
	},
	BookingStatusDisputed: {
		BookingStatusCompleted: {},
		BookingStatusCancelled: {},
	},
	// Late dispute filing is the only way out of completed.
	BookingStatusCompleted: {
		BookingStatusPostPaymentDispute: {},
	},
	BookingStatusPostPaymentDispute: {
		BookingStatusCompleted: {},
	},
	BookingStatusCancelled: {},
}

// CanTransition reports whether a booking may move from one status to another.
func CanTransition(from, to string) bool {
	next, ok := bookingTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// IsTerminalBookingStatus reports whether a status ends the main flow.
func IsTerminalBookingStatus(status string) bool {
	return status == BookingStatusCancelled || status == BookingStatusCompleted
}
