package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/topicpulse-backend/internal/analytics"
	domanalytics "github.com/yungbote/topicpulse-backend/internal/domain/analytics"
	"github.com/yungbote/topicpulse-backend/internal/domain/content"
	"github.com/yungbote/topicpulse-backend/internal/http/response"
)

// Dashboard is satisfied by *analytics.Aggregator.
type Dashboard interface {
	Aggregate(ctx context.Context, scopeType domanalytics.ScopeType, scopeID string, p analytics.Params) (*analytics.Payload, error)
}

type AnalyticsHandler struct {
	dashboard Dashboard
}

func NewAnalyticsHandler(dashboard Dashboard) *AnalyticsHandler {
	return &AnalyticsHandler{dashboard: dashboard}
}

// GET /api/analytics/:scope_type/:scope_id?kind=&from=&to=&top=
func (h *AnalyticsHandler) GetDashboard(c *gin.Context) {
	scopeType, ok := domanalytics.ParseScopeType(strings.ToLower(strings.TrimSpace(c.Param("scope_type"))))
	if !ok {
		response.RespondError(c, http.StatusBadRequest, "invalid_scope_type", fmt.Errorf("scope_type must be topic, tag or site"))
		return
	}
	p, err := paramsFromQuery(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_params", err)
		return
	}
	payload, err := h.dashboard.Aggregate(c.Request.Context(), scopeType, c.Param("scope_id"), p)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, payload)
}

func paramsFromQuery(c *gin.Context) (analytics.Params, error) {
	var p analytics.Params
	if raw := strings.TrimSpace(c.Query("kind")); raw != "" {
		k, ok := content.ParseKind(raw)
		if !ok {
			return p, fmt.Errorf("unknown kind %q", raw)
		}
		p.Kind = k
	}
	var err error
	if p.From, err = parseDay(c.Query("from")); err != nil {
		return p, fmt.Errorf("from: %w", err)
	}
	if p.To, err = parseDay(c.Query("to")); err != nil {
		return p, fmt.Errorf("to: %w", err)
	}
	if raw := strings.TrimSpace(c.Query("top")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return p, fmt.Errorf("top must be a non-negative integer")
		}
		p.Top = n
	}
	return p, nil
}

func parseDay(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
