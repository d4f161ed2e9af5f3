package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docuchat/internal/pkg/jwtutil"
	"docuchat/internal/transport/http/response"
)

const (
	ContextUserIDKey   = "auth_user_id"
	ContextUsernameKey = "auth_username"
)

// AuthJWT rejects requests without a valid bearer token and exposes the
// token's identity to downstream handlers.
func AuthJWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "missing authorization header")
			c.Abort()
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "malformed authorization header")
			c.Abort()
			return
		}

		claims, err := jwtutil.ParseToken(secret, token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextUsernameKey, claims.Username)
		c.Next()
	}
}

// UserID reads the authenticated user id set by AuthJWT.
func UserID(c *gin.Context) (uint, bool) {
	value, exists := c.Get(ContextUserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := value.(uint)
	return id, ok
}
