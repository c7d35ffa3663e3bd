package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mowmarket/mowmarket-backend/internal/dto"
	"github.com/mowmarket/mowmarket-backend/internal/http/handlers/common"
	"github.com/mowmarket/mowmarket-backend/internal/repository"
	"github.com/mowmarket/mowmarket-backend/internal/service"
)

type ContractorHandler struct {
	acceptance  *service.AcceptanceService
	completions *service.CompletionService
	bookings    *service.BookingService
	contractors *repository.ContractorRepository
}

// NewContractorHandler creates the contractor-facing handler.
func NewContractorHandler(acceptance *service.AcceptanceService, completions *service.CompletionService, bookings *service.BookingService, contractors *repository.ContractorRepository) *ContractorHandler {
	return &ContractorHandler{acceptance: acceptance, completions: completions, bookings: bookings, contractors: contractors}
}

// ListOpenJobs handles GET /jobs. Returns pending bookings any eligible
// contractor may accept.
func (h *ContractorHandler) ListOpenJobs(c *gin.Context) {
	limit, offset := common.Pagination(c)
	jobs, err := h.acceptance.ListOpenJobs(c.Request.Context(), limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondJSON(c, http.StatusOK, dto.ListResponse{Items: jobs, Limit: limit, Offset: offset})
}

// AcceptJob handles POST /jobs/:id/accept. Acceptance charges the customer
// card; a decline leaves the job open.
func (h *ContractorHandler) AcceptJob(c *gin.Context) {
	contractorID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	bookingID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	booking, err := h.acceptance.Accept(c.Request.Context(), bookingID, contractorID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondJSON(c, http.StatusOK, booking)
}

// SuggestTime handles POST /jobs/:id/suggest-time.
func (h *ContractorHandler) SuggestTime(c *gin.Context) {
	contractorID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	bookingID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.SuggestTimeRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	date, err := req.ParseDate()
	if err != nil {
		common.RespondBadRequest(c, "date must be YYYY-MM-DD or RFC3339")
		return
	}

	suggestion, err := h.acceptance.SuggestTime(c.Request.Context(), bookingID, contractorID, date, req.TimeSlot)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondJSON(c, http.StatusCreated, suggestion)
}

// ListSuggestions handles GET /bookings/:id/suggestions.
func (h *ContractorHandler) ListSuggestions(c *gin.Context) {
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

	suggestions, err := h.acceptance.ListSuggestions(c.Request.Context(), bookingID, caller)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondJSON(c, http.StatusOK, suggestions)
}

// AcceptSuggestion handles POST /suggestions/:id/accept. Customer-only:
// accepting reschedules the booking and assigns the suggesting contractor.
func (h *ContractorHandler) AcceptSuggestion(c *gin.Context) {
	customerID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	suggestionID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	booking, err := h.acceptance.AcceptSuggestion(c.Request.Context(), suggestionID, customerID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondJSON(c, http.StatusOK, booking)
}

// DeclineSuggestion handles POST /suggestions/:id/decline.
func (h *ContractorHandler) DeclineSuggestion(c *gin.Context) {
	customerID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	suggestionID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.acceptance.DeclineSuggestion(c.Request.Context(), suggestionID, customerID); err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "suggestion declined", nil)
}

// CompleteJob handles POST /jobs/:id/complete. Requires the evidence photos
// to have been uploaded first.
func (h *ContractorHandler) CompleteJob(c *gin.Context) {
	contractorID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	bookingID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.CompleteJobRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	booking, err := h.completions.Complete(c.Request.Context(), bookingID, contractorID, service.CompletionInput{
		IssueTags: req.IssueTags,
		Notes:     req.Notes,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondJSON(c, http.StatusOK, booking)
}

// GetMyStanding handles GET /contractors/me. Returns the caller's profile
// including quality standing and the bounded warning/review histories.
func (h *ContractorHandler) GetMyStanding(c *gin.Context) {
	contractorID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	contractor, err := h.contractors.GetByID(c.Request.Context(), contractorID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondJSON(c, http.StatusOK, contractor)
}

// GetContractor handles GET /admin/contractors/:id.
func (h *ContractorHandler) GetContractor(c *gin.Context) {
	contractorID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	contractor, err := h.contractors.GetByID(c.Request.Context(), contractorID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondJSON(c, http.StatusOK, contractor)
}

// ListMyJobs handles GET /jobs/mine.
func (h *ContractorHandler) ListMyJobs(c *gin.Context) {
	contractorID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.Pagination(c)
	jobs, err := h.bookings.ListContractorBookings(c.Request.Context(), contractorID, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondJSON(c, http.StatusOK, dto.ListResponse{Items: jobs, Limit: limit, Offset: offset})
}
