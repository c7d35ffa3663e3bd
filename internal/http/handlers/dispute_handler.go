package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mowmarket/mowmarket-backend/internal/dto"
	"github.com/mowmarket/mowmarket-backend/internal/http/handlers/common"
	"github.com/mowmarket/mowmarket-backend/internal/service"
)

type DisputeHandler struct {
	disputes *service.DisputeService
}

// NewDisputeHandler creates the dispute resolution handler.
func NewDisputeHandler(disputes *service.DisputeService) *DisputeHandler {
	return &DisputeHandler{disputes: disputes}
}

// CreateDispute handles POST /bookings/:id/disputes.
func (h *DisputeHandler) CreateDispute(c *gin.Context) {
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

	var req dto.CreateDisputeRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	dispute, err := h.disputes.Create(c.Request.Context(), bookingID, caller, service.CreateDisputeInput{
		ReasonTag:       req.ReasonTag,
		Description:     req.Description,
		Evidence:        req.Evidence,
		SuggestedRefund: req.SuggestedRefund,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondJSON(c, http.StatusCreated, dispute)
}

// AddCounterEvidence handles POST /disputes/:id/counter-evidence.
func (h *DisputeHandler) AddCounterEvidence(c *gin.Context) {
	caller, err := common.CurrentIdentity(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.CounterEvidenceRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.disputes.AddCounterEvidence(c.Request.Context(), disputeID, caller, req.Evidence); err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "evidence added", nil)
}

// MarkUnderReview handles POST /admin/disputes/:id/review.
func (h *DisputeHandler) MarkUnderReview(c *gin.Context) {
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.disputes.MarkUnderReview(c.Request.Context(), disputeID); err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "dispute under review", nil)
}

// ResolveDispute handles POST /admin/disputes/:id/resolve.
func (h *DisputeHandler) ResolveDispute(c *gin.Context) {
	adminID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.ResolveDisputeRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.disputes.Resolve(c.Request.Context(), disputeID, adminID, req.Resolution, req.RefundPercent); err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "dispute resolved", nil)
}

// AdjudicateIssues handles POST /admin/bookings/:id/adjudicate. Rules on a
// completion the contractor submitted with issue flags.
func (h *DisputeHandler) AdjudicateIssues(c *gin.Context) {
	adminID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	bookingID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.ResolveDisputeRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.disputes.AdjudicateIssues(c.Request.Context(), bookingID, adminID, req.Resolution, req.RefundPercent); err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "completion adjudicated", nil)
}

// ListOpenDisputes handles GET /admin/disputes.
func (h *DisputeHandler) ListOpenDisputes(c *gin.Context) {
	limit, offset := common.Pagination(c)
	disputes, err := h.disputes.ListOpen(c.Request.Context(), limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondJSON(c, http.StatusOK, dto.ListResponse{Items: disputes, Limit: limit, Offset: offset})
}

// ListMyDisputes handles GET /disputes.
func (h *DisputeHandler) ListMyDisputes(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.Pagination(c)
	disputes, err := h.disputes.ListMine(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondJSON(c, http.StatusOK, dto.ListResponse{Items: disputes, Limit: limit, Offset: offset})
}
