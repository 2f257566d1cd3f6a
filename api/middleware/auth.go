package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/flowmail/flowmail/services/auth"
)

// JWTAuthMiddleware validates the bearer access token and stores the caller
// identity in the gin context for downstream handlers.
func JWTAuthMiddleware(jwtCfg *auth.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := auth.ParseAccessToken(jwtCfg, strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set("AccountID", claims.AccountID)
		c.Set("AccountEmail", claims.Email)
		c.Set("AccountRoles", []string{claims.Role})
		c.Next()
	}
}
