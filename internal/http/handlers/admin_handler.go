package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mowmarket/mowmarket-backend/internal/dto"
	"github.com/mowmarket/mowmarket-backend/internal/http/handlers/common"
	"github.com/mowmarket/mowmarket-backend/internal/models"
	"github.com/mowmarket/mowmarket-backend/internal/repository"
	"github.com/mowmarket/mowmarket-backend/internal/service"
)

type AdminHandler struct {
	pricing  *repository.PricingRepository
	bookings *service.BookingService
}

// NewAdminHandler creates the admin operations handler.
func NewAdminHandler(pricing *repository.PricingRepository, bookings *service.BookingService) *AdminHandler {
	return &AdminHandler{pricing: pricing, bookings: bookings}
}

// VerifyAddress handles POST /admin/addresses/:id/verify. Stores the measured
// property attributes and pushes every waiting booking through the price gate.
func (h *AdminHandler) VerifyAddress(c *gin.Context) {
	addressID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.AddressReviewRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	property := models.Property{
		AreaSqm: req.AreaSqm,
		Sloped:  req.Sloped,
		Tiers:   req.Tiers,
	}
	if err := h.pricing.SetAddressVerification(c.Request.Context(), addressID, true, property); err != nil {
		common.Fail(c, err)
		return
	}

	if err := h.bookings.HandleAddressVerified(c.Request.Context(), addressID); err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "address verified", nil)
}

// RejectAddress handles POST /admin/addresses/:id/reject. Cancels every
// booking parked on the unverifiable address.
func (h *AdminHandler) RejectAddress(c *gin.Context) {
	addressID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.pricing.SetAddressVerification(c.Request.Context(), addressID, false, models.Property{}); err != nil {
		common.Fail(c, err)
		return
	}

	if err := h.bookings.HandleAddressRejected(c.Request.Context(), addressID); err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "address rejected", nil)
}

// GetPricingSettings handles GET /admin/pricing.
func (h *AdminHandler) GetPricingSettings(c *gin.Context) {
	settings, err := h.pricing.Settings(c.Request.Context())
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondJSON(c, http.StatusOK, settings)
}

// UpdatePricingSetting handles PUT /admin/pricing.
func (h *AdminHandler) UpdatePricingSetting(c *gin.Context) {
	var req dto.UpdatePricingSettingRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.pricing.UpdateSetting(c.Request.Context(), req.Key, req.Value); err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "setting updated", nil)
}
