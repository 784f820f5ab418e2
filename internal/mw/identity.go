package mw

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const userIDKey = "userID"

// Identity copies the caller's user id from the given request header into
// the context. Authentication happens upstream; the header is trusted.
func Identity(header string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.GetHeader(header)); id != "" {
			c.Set(userIDKey, id)
		}
		c.Next()
	}
}

// RequireUser rejects requests that carry no user id.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
			return
		}
		c.Next()
	}
}

// UserID returns the caller's user id, or "" when anonymous.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
