package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/mowmarket/mowmarket-backend/internal/http/middleware"
)

func TestBookingHandler_CreateBooking_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &BookingHandler{}
	r.POST("/bookings", handler.CreateBooking)

	req, _ := http.NewRequest("POST", "/bookings", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBookingHandler_GetBooking_InvalidUUID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &BookingHandler{}
	r.GET("/bookings/:id", func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, uuid.New())
		c.Set(middleware.ContextRoleKey, "customer")
	}, handler.GetBooking)

	req, _ := http.NewRequest("GET", "/bookings/not-a-uuid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBookingHandler_CreateBooking_MalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &BookingHandler{}
	r.POST("/bookings", func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, uuid.New())
		c.Set(middleware.ContextRoleKey, "customer")
	}, handler.CreateBooking)

	req, _ := http.NewRequest("POST", "/bookings", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBookingHandler_ApproveCompletion_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &BookingHandler{}
	r.POST("/bookings/:id/approve-completion", handler.ApproveCompletion)

	req, _ := http.NewRequest("POST", "/bookings/"+uuid.NewString()+"/approve-completion", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
