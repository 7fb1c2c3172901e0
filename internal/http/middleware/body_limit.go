package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// LimitRequestBody caps request bodies at n bytes; n <= 0 disables the cap.
func LimitRequestBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if n > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}
