package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/draftkiller/backend/internal/common"
	"github.com/draftkiller/backend/internal/usage"
)

// RateLimit enforces the anonymous free-request quota. Authenticated users
// pass through uncounted.
func RateLimit(tracker *usage.Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserIDFromContext(c) != uuid.Nil {
			c.Next()
			return
		}

		sessionID := SessionIDFromContext(c)
		if sessionID == "" {
			common.Fail(c, http.StatusBadRequest, 10005, "missing session identity")
			c.Abort()
			return
		}

		remaining, err := tracker.Allow(c.Request.Context(), sessionID)
		c.Header("X-RateLimit-Limit", strconv.Itoa(tracker.Limit()))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if err != nil {
			common.Fail(c, http.StatusTooManyRequests, 42901,
				"free request limit reached, sign up to continue")
			c.Abort()
			return
		}
		c.Next()
	}
}
