package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/topicpulse-backend/internal/platform/ctxutil"
	"github.com/yungbote/topicpulse-backend/internal/platform/envutil"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
)

const (
	IssueMissingItem = "missing_item"
	IssuePanic       = "panic"
	IssueTransient   = "transient"
	IssueSyncError   = "sync_error"
)

type alertState struct {
	mu   sync.Mutex
	last map[string]time.Time
}

var itemAlerts alertState

// ReportItemErrors counts per-item failures of a bulk job by issue, logs a sample and, when
// ITEM_ERROR_ALERTS_ENABLED is set, posts a rate-limited alert to the configured webhook.
func ReportItemErrors(ctx context.Context, log *logger.Logger, stage string, errs []string, meta map[string]any) map[string]int {
	if len(errs) == 0 {
		return nil
	}
	stage = strings.TrimSpace(stage)
	if stage == "" {
		stage = "unknown"
	}
	if meta == nil {
		meta = map[string]any{}
	}
	if td := ctxutil.GetTraceData(ctx); td != nil {
		if td.TraceID != "" {
			meta["trace_id"] = td.TraceID
		}
		if td.RequestID != "" {
			meta["request_id"] = td.RequestID
		}
	}

	issueCounts := map[string]int{}
	sampleErrors := make([]string, 0, 3)
	for _, errStr := range errs {
		errStr = strings.TrimSpace(errStr)
		if errStr == "" {
			continue
		}
		if len(sampleErrors) < 3 {
			sampleErrors = append(sampleErrors, errStr)
		}
		issue := classifyItemError(errStr)
		Current().IncItemError(stage, issue)
		issueCounts[issue]++
	}

	if log != nil {
		log.Warn("bulk job items failed",
			"stage", stage,
			"issues", issueCounts,
			"sample_errors", sampleErrors,
			"meta", meta,
		)
	}
	sendItemErrorAlert(stage, issueCounts, sampleErrors, meta, log)
	return issueCounts
}

func classifyItemError(errStr string) string {
	lower := strings.ToLower(errStr)
	switch {
	case strings.Contains(lower, "not found"):
		return IssueMissingItem
	case strings.HasPrefix(lower, "panic"):
		return IssuePanic
	case strings.Contains(lower, "interrupted"),
		strings.Contains(lower, "timeout"),
		strings.Contains(lower, "deadline"):
		return IssueTransient
	default:
		return IssueSyncError
	}
}

func sendItemErrorAlert(stage string, issueCounts map[string]int, sampleErrors []string, meta map[string]any, log *logger.Logger) {
	if !envutil.Bool("ITEM_ERROR_ALERTS_ENABLED", false) {
		return
	}
	webhook := envutil.String("ITEM_ERROR_ALERT_WEBHOOK_URL", "")
	if webhook == "" || len(issueCounts) == 0 {
		return
	}
	itemAlerts.mu.Lock()
	if itemAlerts.last == nil {
		itemAlerts.last = map[string]time.Time{}
	}
	last := itemAlerts.last[stage]
	minInterval := envutil.Seconds("ITEM_ERROR_ALERT_MIN_INTERVAL_SECONDS", 300)
	if !last.IsZero() && time.Since(last) < minInterval {
		itemAlerts.mu.Unlock()
		return
	}
	itemAlerts.last[stage] = time.Now()
	itemAlerts.mu.Unlock()

	payload := map[string]any{
		"title":         "Bulk job item failures",
		"stage":         stage,
		"issues":        issueCounts,
		"sample_errors": sampleErrors,
		"meta":          meta,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequest(http.MethodPost, webhook, bytes.NewReader(body))
	if err != nil {
		if log != nil {
			log.Warn("item error alert request build failed", "error", err, "stage", stage)
		}
		return
	}
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		if log != nil {
			log.Warn("item error alert post failed", "error", err, "stage", stage)
		}
		return
	}
	_ = resp.Body.Close()
	if log != nil {
		log.Info("item error alert sent", "stage", stage, "status", resp.StatusCode)
	}
}
