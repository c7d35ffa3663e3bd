package router

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mowmarket/mowmarket-backend/internal/config"
	"github.com/mowmarket/mowmarket-backend/internal/http/handlers"
	"github.com/mowmarket/mowmarket-backend/internal/http/middleware"
	"github.com/mowmarket/mowmarket-backend/internal/metrics"
	"github.com/mowmarket/mowmarket-backend/internal/models"
	"github.com/mowmarket/mowmarket-backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	bookingHandler *handlers.BookingHandler,
	contractorHandler *handlers.ContractorHandler,
	disputeHandler *handlers.DisputeHandler,
	adminHandler *handlers.AdminHandler,
	notificationHandler *handlers.NotificationHandler,
	mediaHandler *handlers.MediaHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(httpMetrics())

	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))

	// Signed links carry their own auth, so evidence download stays outside
	// the session-protected group.
	api.GET("/media/evidence/*path", mediaHandler.ServeEvidence)
	api.GET("/ws", wsHandler.Handle)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		customer := protected.Group("/")
		customer.Use(middleware.RequireRole(models.RoleCustomer, models.RoleAdmin))
		{
			customer.POST("/bookings", bookingHandler.CreateBooking)
			customer.GET("/bookings", bookingHandler.ListMyBookings)
			customer.POST("/bookings/:id/approve-price", middleware.ValidateUUIDParam("id"), bookingHandler.ApprovePriceChange)
			customer.POST("/bookings/:id/approve-completion", middleware.ValidateUUIDParam("id"), bookingHandler.ApproveCompletion)
			customer.POST("/suggestions/:id/accept", middleware.ValidateUUIDParam("id"), contractorHandler.AcceptSuggestion)
			customer.POST("/suggestions/:id/decline", middleware.ValidateUUIDParam("id"), contractorHandler.DeclineSuggestion)
		}

		// Either party may view, cancel or dispute a booking; the services
		// enforce per-booking ownership.
		protected.GET("/bookings/:id", middleware.ValidateUUIDParam("id"), bookingHandler.GetBooking)
		protected.POST("/bookings/:id/cancel", middleware.ValidateUUIDParam("id"), bookingHandler.CancelBooking)
		protected.GET("/bookings/:id/suggestions", middleware.ValidateUUIDParam("id"), contractorHandler.ListSuggestions)
		protected.POST("/bookings/:id/disputes", middleware.ValidateUUIDParam("id"), disputeHandler.CreateDispute)
		protected.POST("/disputes/:id/counter-evidence", middleware.ValidateUUIDParam("id"), disputeHandler.AddCounterEvidence)
		protected.GET("/disputes", disputeHandler.ListMyDisputes)

		contractor := protected.Group("/")
		contractor.Use(middleware.RequireRole(models.RoleContractor, models.RoleAdmin))
		{
			contractor.GET("/jobs", contractorHandler.ListOpenJobs)
			contractor.GET("/jobs/mine", contractorHandler.ListMyJobs)
			contractor.GET("/contractors/me", contractorHandler.GetMyStanding)
			contractor.POST("/jobs/:id/accept", middleware.ValidateUUIDParam("id"), contractorHandler.AcceptJob)
			contractor.POST("/jobs/:id/suggest-time", middleware.ValidateUUIDParam("id"), contractorHandler.SuggestTime)
			contractor.POST("/jobs/:id/complete", middleware.ValidateUUIDParam("id"), contractorHandler.CompleteJob)
			contractor.POST("/bookings/:id/evidence", middleware.ValidateUUIDParam("id"), mediaHandler.UploadEvidence)
			contractor.POST("/bookings/:id/rating-reply", middleware.ValidateUUIDParam("id"), bookingHandler.ReplyToRating)
		}

		protected.GET("/notifications", notificationHandler.ListNotifications)
		protected.GET("/notifications/unread-count", notificationHandler.CountUnread)
		protected.POST("/notifications/:id/read", middleware.ValidateUUIDParam("id"), notificationHandler.MarkAsRead)
		protected.POST("/notifications/read-all", notificationHandler.MarkAllAsRead)

		admin := protected.Group("/admin")
		admin.Use(middleware.RequireAdmin())
		{
			admin.POST("/addresses/:id/verify", middleware.ValidateUUIDParam("id"), adminHandler.VerifyAddress)
			admin.POST("/addresses/:id/reject", middleware.ValidateUUIDParam("id"), adminHandler.RejectAddress)
			admin.GET("/pricing", adminHandler.GetPricingSettings)
			admin.PUT("/pricing", adminHandler.UpdatePricingSetting)
			admin.GET("/contractors/:id", middleware.ValidateUUIDParam("id"), contractorHandler.GetContractor)
			admin.GET("/disputes", disputeHandler.ListOpenDisputes)
			admin.POST("/disputes/:id/review", middleware.ValidateUUIDParam("id"), disputeHandler.MarkUnderReview)
			admin.POST("/disputes/:id/resolve", middleware.ValidateUUIDParam("id"), disputeHandler.ResolveDispute)
			admin.POST("/bookings/:id/adjudicate", middleware.ValidateUUIDParam("id"), disputeHandler.AdjudicateIssues)
		}
	}

	return r
}

// httpMetrics counts requests per route template and status.
func httpMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.IncHTTP(endpoint, strconv.Itoa(c.Writer.Status()))
	}
}
