package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mowmarket/mowmarket-backend/internal/logger"
	"github.com/mowmarket/mowmarket-backend/internal/pkg/apperror"
	"github.com/mowmarket/mowmarket-backend/internal/repository"
	"github.com/mowmarket/mowmarket-backend/internal/service"
)

// ErrorHandler maps errors pushed onto the gin context to HTTP responses.
// Internal errors are masked; known sentinels get a stable status and a
// client-safe message.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status, message := classify(err)

		entry := logger.Log.WithFields(logrus.Fields{
			"error":  err.Error(),
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
			"status": status,
		})
		if status >= http.StatusInternalServerError {
			entry.Error("request failed")
		} else {
			entry.Warn("request rejected")
		}

		c.JSON(status, gin.H{"error": message})
	}
}

func classify(err error) (int, string) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			return appErr.HTTPStatus, "internal server error"
		}
		return appErr.HTTPStatus, appErr.Message
	}

	var evidenceErr *service.InsufficientEvidenceError
	if errors.As(err, &evidenceErr) {
		return http.StatusUnprocessableEntity, evidenceErr.Error()
	}

	for _, m := range sentinelStatuses {
		if errors.Is(err, m.err) {
			return m.status, m.err.Error()
		}
	}

	return http.StatusInternalServerError, "internal server error"
}

var sentinelStatuses = []struct {
	err    error
	status int
}{
	// not found
	{repository.ErrBookingNotFound, http.StatusNotFound},
	{repository.ErrContractorNotFound, http.StatusNotFound},
	{repository.ErrDisputeNotFound, http.StatusNotFound},
	{repository.ErrSuggestionNotFound, http.StatusNotFound},
	{repository.ErrUserNotFound, http.StatusNotFound},
	{repository.ErrNotificationNotFound, http.StatusNotFound},
	{repository.ErrPropertyNotFound, http.StatusNotFound},
	{repository.ErrPricingSettingsNotFound, http.StatusNotFound},

	// ownership and access
	{service.ErrNotBookingOwner, http.StatusForbidden},
	{service.ErrNotAssignedContractor, http.StatusForbidden},
	{service.ErrNotDisputeParty, http.StatusForbidden},
	{service.ErrNotSuggestionTarget, http.StatusForbidden},
	{service.ErrNotNotificationOwner, http.StatusForbidden},

	// invalid input
	{service.ErrRatingOutOfRange, http.StatusBadRequest},
	{service.ErrInvalidRefundPercent, http.StatusBadRequest},
	{service.ErrDisputeFieldsMissing, http.StatusBadRequest},
	{service.ErrSuggestedRefundRange, http.StatusBadRequest},

	// state conflicts
	{service.ErrJobAlreadyTaken, http.StatusConflict},
	{service.ErrJobNotCompletable, http.StatusConflict},
	{service.ErrAlreadyRated, http.StatusConflict},
	{service.ErrDisputeAlreadyOpen, http.StatusConflict},
	{service.ErrDisputeClosed, http.StatusConflict},
	{repository.ErrDuplicateSuggestion, http.StatusConflict},
	{repository.ErrBookingStale, http.StatusConflict},
	{repository.ErrDisputeResolved, http.StatusConflict},

	// preconditions the caller can fix
	{service.ErrPayoutAccountRequired, http.StatusUnprocessableEntity},
	{service.ErrContractorSuspended, http.StatusUnprocessableEntity},
	{service.ErrJobLimitReached, http.StatusUnprocessableEntity},
	{service.ErrJobValueTooHigh, http.StatusUnprocessableEntity},
	{service.ErrBookingNotDisputable, http.StatusUnprocessableEntity},
	{service.ErrPayoutNotReady, http.StatusUnprocessableEntity},
	{service.ErrNoContractorToRate, http.StatusUnprocessableEntity},
	{repository.ErrNoPaymentMethod, http.StatusUnprocessableEntity},

	// payment declined maps to 402 so clients can prompt for a new card
	{service.ErrPaymentDeclined, http.StatusPaymentRequired},
}
