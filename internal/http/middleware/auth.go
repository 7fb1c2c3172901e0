package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/http/response"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/platform/logger"
)

// RequireToken rejects requests that do not carry token as a bearer token
// (or ?token= for EventSource clients). An empty token allows everything.
func RequireToken(log *logger.Logger, token string) gin.HandlerFunc {
	token = strings.TrimSpace(token)
	if token == "" {
		return func(c *gin.Context) { c.Next() }
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("Middleware", "RequireToken")
	return func(c *gin.Context) {
		got := extractToken(c)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			log.Debug("rejected request", "path", c.Request.URL.Path, "has_token", got != "")
			response.AbortError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing or invalid token"))
			return
		}
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	h := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return strings.TrimSpace(c.Query("token"))
}
