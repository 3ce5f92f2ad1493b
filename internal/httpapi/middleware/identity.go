package middleware

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/gin-gonic/gin"

	"github.com/draftkiller/backend/internal/common"
)

const (
	SessionIDKey      = "session_id"
	sessionCookieName = "dk_session"
	sessionHeaderName = "X-Session-Token"
)

// Identity derives a stable anonymous session ID. The client's opaque
// session token (header or cookie, minted here if absent) is hashed together
// with the user agent, so the raw token never reaches storage or logs.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(sessionHeaderName)
		if token == "" {
			if v, err := c.Cookie(sessionCookieName); err == nil {
				token = v
			}
		}
		if token == "" {
			token = common.NewULID()
			c.SetCookie(sessionCookieName, token, 86400*30, "/", "", false, true)
		}

		sum := sha256.Sum256([]byte(token + "|" + c.Request.UserAgent()))
		c.Set(SessionIDKey, hex.EncodeToString(sum[:]))
		c.Next()
	}
}

func SessionIDFromContext(c *gin.Context) string {
	v, ok := c.Get(SessionIDKey)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
