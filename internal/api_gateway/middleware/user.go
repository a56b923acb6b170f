package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// UserIDHeader identifies the ledger owner of a request. Authentication happens upstream.
	UserIDHeader = "X-User-ID"

	// UserIDKey is the key used to store the user ID in the context
	UserIDKey = "user_id"
)

// UserID middleware rejects requests without a user and stores the user for handlers
func UserID() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if userID == "" {
			response := gin.H{
				"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "missing " + UserIDHeader + " header",
				},
			}
			if correlationID := GetCorrelationID(c); correlationID != "" {
				response["correlation_id"] = correlationID
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, response)
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// GetUserID retrieves the user ID stored by UserID
func GetUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
