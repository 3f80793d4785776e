package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"syntra-ledger/internal/utils"
)

// Context keys set by JWTAuth.
const (
	UserIDKey   = "user_id"
	UsernameKey = "username"
)

// JWTAuth requires a bearer token signed with secret and exposes the acting
// user under UserIDKey and UsernameKey.
func JWTAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Missing bearer token",
				"error":   "UNAUTHORIZED",
			})
			return
		}

		claims, err := utils.ParseToken(secret, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Invalid or expired token",
				"error":   "UNAUTHORIZED",
			})
			return
		}

		c.Set(UserIDKey, claims.UserId)
		c.Set(UsernameKey, claims.Username)
		c.Next()
	}
}
