package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/topicpulse-backend/internal/platform/ctxutil"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
)

// routeFields maps route params to log keys; :id only appears on job routes.
var routeFields = map[string]string{
	"scope_type": "scope_type",
	"scope_id":   "scope_id",
	"job_type":   "job_type",
	"id":         "job_id",
}

// quietRoutes are scraped constantly and only logged at debug unless they fail.
var quietRoutes = map[string]bool{
	"/healthcheck": true,
	"/metrics":     true,
}

func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if log == nil {
			return
		}

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []interface{}{
			"method", strings.ToUpper(c.Request.Method),
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes", c.Writer.Size(),
		}
		for _, p := range c.Params {
			if key, ok := routeFields[p.Key]; ok && p.Value != "" {
				fields = append(fields, key, p.Value)
			}
		}
		fields = append(fields, ctxutil.GetTraceData(c.Request.Context()).LogFields()...)
		if len(c.Errors) > 0 {
			fields = append(fields, "error", c.Errors.Last().Error())
		}

		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		case quietRoutes[path]:
			log.Debug("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}
