package dto

import (
	"github.com/mowmarket/mowmarket-backend/internal/models"
)

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse is the uniform success envelope for mutations that return
// confirmation plus an optional payload.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// BookingResponse is a booking with its evidence photos attached.
type BookingResponse struct {
	*models.Booking
	Photos []models.EvidencePhoto `json:"photos,omitempty"`
}

// NewBookingResponse bundles a booking with its photo records.
func NewBookingResponse(b *models.Booking, photos []models.EvidencePhoto) *BookingResponse {
	return &BookingResponse{Booking: b, Photos: photos}
}

// ListResponse wraps paginated collections.
type ListResponse struct {
	Items  interface{} `json:"items"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// UnreadCountResponse reports a user's unread notification count.
type UnreadCountResponse struct {
	Unread int `json:"unread"`
}

// UploadResponse returns the stored photo record and a time-limited URL.
type UploadResponse struct {
	Photo models.EvidencePhoto `json:"photo"`
	URL   string               `json:"url"`
}
