package app

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/topicpulse-backend/internal/http"
	httpH "github.com/yungbote/topicpulse-backend/internal/http/handlers"
	"github.com/yungbote/topicpulse-backend/internal/observability"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
)

type Handlers struct {
	Health    *httpH.HealthHandler
	Analytics *httpH.AnalyticsHandler
	Job       *httpH.JobHandler
}

func wireHandlers(log *logger.Logger, db *gorm.DB, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:    httpH.NewHealthHandler(db),
		Analytics: httpH.NewAnalyticsHandler(services.Aggregator),
		Job:       httpH.NewJobHandler(services.JobService),
	}
}

func wireRouter(log *logger.Logger, cfg Config, handlers Handlers, metrics *observability.Metrics) *gin.Engine {
	return http.NewRouter(http.RouterConfig{
		Log:              log,
		Metrics:          metrics,
		ServiceName:      cfg.ServiceName,
		HealthHandler:    handlers.Health,
		AnalyticsHandler: handlers.Analytics,
		JobHandler:       handlers.Job,
	})
}
