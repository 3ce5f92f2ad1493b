package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/draftkiller/backend/internal/common"
)

const RequestIDKey = "request_id"

// RequestID assigns each request a ULID, honoring one supplied by an
// upstream proxy.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = common.NewULID()
		}
		c.Set(RequestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}
