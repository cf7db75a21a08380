package middleware

import (
	"net/http"
	"strings"

	"liveclass/internal/core/domain"
	"liveclass/internal/core/services"

	"github.com/gin-gonic/gin"
)

func AuthMiddleware(tokens services.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := tokens.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		// Store participant identity in context
		c.Set("username", claims.Username)
		c.Set("room_code", claims.Room)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// RequireTeacher gates endpoints only the room's teacher may call. Must run
// after AuthMiddleware.
func RequireTeacher() gin.HandlerFunc {
	return func(c *gin.Context) {
		roleVal, exists := c.Get("role")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}

		role, ok := roleVal.(domain.Role)
		if !ok || role != domain.RoleTeacher {
			c.JSON(http.StatusForbidden, gin.H{"error": "teacher role required"})
			c.Abort()
			return
		}
		c.Next()
	}
}
