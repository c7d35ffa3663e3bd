package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mowmarket/mowmarket-backend/internal/dto"
	"github.com/mowmarket/mowmarket-backend/internal/http/handlers/common"
	"github.com/mowmarket/mowmarket-backend/internal/models"
	"github.com/mowmarket/mowmarket-backend/internal/repository"
	"github.com/mowmarket/mowmarket-backend/internal/service"
)

type BookingHandler struct {
	bookings *service.BookingService
	photos   *repository.PhotoRepository
}

// NewBookingHandler creates the customer-facing booking handler.
func NewBookingHandler(bookings *service.BookingService, photos *repository.PhotoRepository) *BookingHandler {
	return &BookingHandler{bookings: bookings, photos: photos}
}

// CreateBooking handles POST /bookings.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.CreateBookingRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	addressID, err := uuid.Parse(req.AddressID)
	if err != nil {
		common.RespondBadRequest(c, "address_id must be a UUID")
		return
	}

	serviceDate, err := req.ParseServiceDate()
	if err != nil {
		common.RespondBadRequest(c, "service_date must be YYYY-MM-DD or RFC3339")
		return
	}

	preferred, err := req.ParsePreferredContractorID()
	if err != nil {
		common.RespondBadRequest(c, "preferred_contractor_id must be a UUID")
		return
	}

	booking, err := h.bookings.CreateBooking(c.Request.Context(), userID, service.CreateBookingInput{
		AddressID:             addressID,
		PreferredContractorID: preferred,
		ServiceDate:           serviceDate,
		TimeSlot:              req.TimeSlot,
		GrassLength:           req.GrassLength,
		ClippingsRemoval:      req.ClippingsRemoval,
		PublicHoliday:         req.PublicHoliday,
		EstimatedProperty: models.Property{
			AreaSqm: req.AreaSqm,
			Sloped:  req.Sloped,
			Tiers:   req.Tiers,
		},
	})
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondJSON(c, http.StatusCreated, booking)
}

// GetBooking handles GET /bookings/:id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	caller, err := common.CurrentIdentity(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	bookingID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	booking, err := h.bookings.GetBooking(c.Request.Context(), bookingID, caller)
	if err != nil {
		common.Fail(c, err)
		return
	}

	photos, err := h.photos.ListByBooking(c.Request.Context(), bookingID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondJSON(c, http.StatusOK, dto.NewBookingResponse(booking, photos))
}

// ListMyBookings handles GET /bookings.
func (h *BookingHandler) ListMyBookings(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.Pagination(c)
	bookings, err := h.bookings.ListCustomerBookings(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondJSON(c, http.StatusOK, dto.ListResponse{Items: bookings, Limit: limit, Offset: offset})
}

// CancelBooking handles POST /bookings/:id/cancel.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	caller, err := common.CurrentIdentity(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	bookingID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.bookings.Cancel(c.Request.Context(), bookingID, caller); err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "booking cancelled", nil)
}

// ApprovePriceChange handles POST /bookings/:id/approve-price.
func (h *BookingHandler) ApprovePriceChange(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	bookingID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	booking, err := h.bookings.ApprovePriceChange(c.Request.Context(), bookingID, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondJSON(c, http.StatusOK, booking)
}

// ApproveCompletion handles POST /bookings/:id/approve-completion.
// The rating is mandatory; approval releases the contractor payout.
func (h *BookingHandler) ApproveCompletion(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	bookingID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.ApproveCompletionRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.bookings.ApproveCompletion(c.Request.Context(), bookingID, userID, req.Rating, req.Comment); err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "completion approved, payout released", nil)
}

// ReplyToRating handles POST /bookings/:id/rating-reply.
func (h *BookingHandler) ReplyToRating(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	bookingID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.RatingReplyRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.bookings.ReplyToRating(c.Request.Context(), bookingID, userID, req.Reply); err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "reply saved", nil)
}
