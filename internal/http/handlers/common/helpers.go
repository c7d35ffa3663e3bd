package common

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mowmarket/mowmarket-backend/internal/dto"
	"github.com/mowmarket/mowmarket-backend/internal/http/middleware"
	"github.com/mowmarket/mowmarket-backend/internal/service"
)

var (
	// ErrNoIdentity is returned when no authenticated user is on the context.
	ErrNoIdentity = errors.New("no authenticated user in request context")

	// ErrInvalidUUID is returned when UUID parsing fails.
	ErrInvalidUUID = errors.New("malformed UUID")
)

// CurrentUserID extracts the authenticated user ID from the gin context.
func CurrentUserID(c *gin.Context) (uuid.UUID, error) {
	raw, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return uuid.Nil, ErrNoIdentity
	}

	userID, ok := raw.(uuid.UUID)
	if !ok {
		return uuid.Nil, ErrNoIdentity
	}

	return userID, nil
}

// CurrentUserRole extracts the authenticated role from the gin context.
func CurrentUserRole(c *gin.Context) (string, error) {
	raw, exists := c.Get(middleware.ContextRoleKey)
	if !exists {
		return "", ErrNoIdentity
	}

	role, ok := raw.(string)
	if !ok {
		return "", ErrNoIdentity
	}

	return role, nil
}

// CurrentIdentity returns the full (user id, role) pair from the context.
func CurrentIdentity(c *gin.Context) (service.Identity, error) {
	userID, err := CurrentUserID(c)
	if err != nil {
		return service.Identity{}, err
	}
	role, err := CurrentUserRole(c)
	if err != nil {
		return service.Identity{}, err
	}
	return service.Identity{UserID: userID, Role: role}, nil
}

// ParseUUIDParam parses a UUID from a URL path parameter.
func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, error) {
	param := c.Param(paramName)
	if param == "" {
		return uuid.Nil, fmt.Errorf("missing %s parameter", paramName)
	}

	parsed, err := uuid.Parse(param)
	if err != nil {
		return uuid.Nil, ErrInvalidUUID
	}

	return parsed, nil
}

// BindAndValidate binds a JSON request body and wraps binding failures.
func BindAndValidate(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// Pagination reads limit/offset query parameters with sane bounds.
func Pagination(c *gin.Context) (limit, offset int) {
	limit = ParseIntQuery(c, "limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset = ParseIntQuery(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ParseIntQuery safely reads an integer query parameter with a fallback value.
func ParseIntQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// RespondError sends a standardized error response.
func RespondError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, dto.ErrorResponse{Error: message})
}

// RespondSuccess sends a standardized success response.
func RespondSuccess(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, dto.SuccessResponse{
		Message: message,
		Data:    data,
	})
}

// RespondJSON sends a JSON response with the given status code and data.
func RespondJSON(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// RespondUnauthorized sends a 401 Unauthorized response.
func RespondUnauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "authorization required"
	}
	RespondError(c, http.StatusUnauthorized, message)
}

// RespondBadRequest sends a 400 Bad Request response.
func RespondBadRequest(c *gin.Context, message string) {
	if message == "" {
		message = "invalid request"
	}
	RespondError(c, http.StatusBadRequest, message)
}

// RespondNotFound sends a 404 Not Found response.
func RespondNotFound(c *gin.Context, message string) {
	if message == "" {
		message = "resource not found"
	}
	RespondError(c, http.StatusNotFound, message)
}

// Fail records the error on the context for the error handler middleware.
// Use for service and repository errors whose status mapping is centralized.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
