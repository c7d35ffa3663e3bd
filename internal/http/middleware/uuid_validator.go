package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ValidateUUIDParam rejects requests whose named path parameter is not a
// well-formed UUID before the handler runs.
func ValidateUUIDParam(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Param(name)
		if _, err := uuid.Parse(raw); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "invalid " + name + " parameter, expected a UUID",
			})
			return
		}
		c.Next()
	}
}
