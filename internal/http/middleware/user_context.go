package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/quizforge/quizforge-backend/internal/http/response"
)

const userIDKey = "quizforge.user_id"

// RequireUser binds the calling operator's identity from the X-User-ID
// header. The gateway in front of this service handles authentication; here
// the ID only scopes job ownership and SSE channels.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("X-User-ID"))
		if raw == "" {
			response.RespondError(c, http.StatusUnauthorized, "missing_user", fmt.Errorf("X-User-ID header required"))
			c.Abort()
			return
		}
		userID, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusUnauthorized, "invalid_user", err)
			c.Abort()
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func GetUserID(c *gin.Context) string {
	if v, ok := c.Get(userIDKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id.String()
		}
	}
	return ""
}

func MustUserID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(userIDKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}
