package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/topicpulse-backend/internal/http/handlers"
	httpMW "github.com/yungbote/topicpulse-backend/internal/http/middleware"
	"github.com/yungbote/topicpulse-backend/internal/observability"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string

	HealthHandler    *httpH.HealthHandler
	AnalyticsHandler *httpH.AnalyticsHandler
	JobHandler       *httpH.JobHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	{
		// Analytics
		if cfg.AnalyticsHandler != nil {
			api.GET("/analytics/:scope_type/:scope_id", cfg.AnalyticsHandler.GetDashboard)
		}

		// Jobs
		if cfg.JobHandler != nil {
			api.POST("/jobs/:job_type", cfg.JobHandler.EnqueueJob)
			api.GET("/jobs/:id", cfg.JobHandler.GetJob)
			api.POST("/job-runs/:id/cancel", cfg.JobHandler.CancelJob)
			api.POST("/job-runs/:id/restart", cfg.JobHandler.RestartJob)
		}
	}

	return r
}
