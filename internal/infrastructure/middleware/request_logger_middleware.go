package middleware

import (
	"context"
	"time"

	"liveclass/internal/core/domain"
	"liveclass/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestLoggingMiddleware logs every HTTP request with a request id and,
// when the auth middleware ran, the caller's room and username.
func RequestLoggingMiddleware(cl *logger.ContextLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := uuid.NewString()
		c.Header("X-Request-ID", requestID)

		c.Next()

		ctx := context.WithValue(c.Request.Context(), "request_id", requestID)
		if username, exists := c.Get("username"); exists {
			if name, ok := username.(domain.Username); ok {
				ctx = context.WithValue(ctx, "username", string(name))
			}
		}
		if room, exists := c.Get("room_code"); exists {
			if code, ok := room.(domain.RoomCode); ok {
				ctx = context.WithValue(ctx, "room_code", string(code))
			}
		}

		cl.LogRequest(ctx, c.Request.Method, c.FullPath(), c.Writer.Status(),
			time.Since(start).Milliseconds())
	}
}
