package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/guildmirror/internal/auth"
)

const ContextKeyOperator = "operator"

// AuthMiddleware validates the Bearer token on operator endpoints. Invalid
// or missing tokens abort the chain with a 401 before any handler runs.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing authorization header",
			})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid authorization format, expected: Bearer <token>",
			})
			return
		}

		claims, err := auth.ParseToken(parts[1], secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		c.Set(ContextKeyOperator, claims.Operator)
		c.Next()
	}
}

// GetOperator returns the operator name stored by AuthMiddleware, or "".
func GetOperator(c *gin.Context) string {
	val, exists := c.Get(ContextKeyOperator)
	if !exists {
		return ""
	}
	operator, ok := val.(string)
	if !ok {
		return ""
	}
	return operator
}
