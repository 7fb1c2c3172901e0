package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/observability"
)

// RouteUnmatched labels requests that hit no registered route, so unknown
// paths cannot grow the route label without bound.
const RouteUnmatched = "unmatched"

// Metrics records request count and latency per route template. Scrapes of
// the paths in skip are not recorded.
func Metrics(m *observability.Metrics, skip ...string) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		if skipped[route] {
			c.Next()
			return
		}
		if route == "" {
			route = RouteUnmatched
		}

		start := time.Now()
		m.APIInflightInc()
		defer m.APIInflightDec()

		c.Next()

		m.ObserveAPI(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
