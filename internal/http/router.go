package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/scopestack-jon/scopestack-content-engine-sub000/internal/http/handlers"
	httpMW "github.com/scopestack-jon/scopestack-content-engine-sub000/internal/http/middleware"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/http/response"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/observability"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/platform/logger"
)

const serviceName = "scopestack-content-engine"

type RouterConfig struct {
	Log     *logger.Logger
	Metrics *observability.Metrics

	CORSOrigins     []string
	MaxRequestBytes int64
	APIToken        string

	// MetricsEnabled exposes GET /metrics.
	MetricsEnabled bool

	ResearchHandler *httpH.ResearchHandler
	PushHandler     *httpH.PushHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(httpMW.RequestContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics, "/metrics"))
	r.Use(httpMW.CORS(cfg.CORSOrigins))
	r.Use(httpMW.LimitRequestBody(cfg.MaxRequestBytes))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.MetricsEnabled && cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	api.Use(httpMW.RequireToken(cfg.Log, cfg.APIToken))
	{
		if cfg.ResearchHandler != nil {
			api.POST("/research", cfg.ResearchHandler.Research)
			api.POST("/research/apply", cfg.ResearchHandler.Apply)
			api.GET("/runs/:id", cfg.ResearchHandler.GetRun)
			api.POST("/runs/:id/apply", cfg.ResearchHandler.ApplyRun)
		}
		if cfg.PushHandler != nil {
			api.POST("/runs/:id/push", cfg.PushHandler.PushRun)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		response.RespondError(c, http.StatusNotFound, "not_found", errors.New("route not found"))
	})
	return r
}
