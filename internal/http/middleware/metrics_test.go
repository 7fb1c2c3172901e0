package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/observability"
)

func TestMetricsLabelsRouteTemplates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := observability.NewMetrics()
	r := gin.New()
	r.Use(Metrics(m, "/metrics"))
	r.GET("/api/runs/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/api/runs/a", "/api/runs/b", "/metrics", "/wp-login.php"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	body := scrape(t, m)
	assert.Contains(t, body, `scope_api_requests_total{method="GET",route="/api/runs/:id",status="404"} 2`)
	assert.Contains(t, body, `scope_api_requests_total{method="GET",route="unmatched",status="404"} 1`)
	assert.NotContains(t, body, `route="/metrics"`)
	assert.NotContains(t, body, "wp-login")
}

func scrape(t *testing.T, m *observability.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}
