package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/x", "200", time.Millisecond)
	m.AddAssociationWrites("body", 1, 1)
	m.IncAggregationFallback("velocity")
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from nil metrics, got %d", rec.Code)
	}
}

func TestMetricsCountAndExpose(t *testing.T) {
	m := NewMetrics()
	m.AddAssociationWrites("body", 3, 0)
	m.AddAssociationWrites("body", 0, 2)
	m.IncCacheLookup("redis", "hit")

	if got := testutil.ToFloat64(m.associationWrites.WithLabelValues("body", "inserted")); got != 3 {
		t.Fatalf("expected 3 inserted, got %v", got)
	}
	if got := testutil.ToFloat64(m.associationWrites.WithLabelValues("body", "deleted")); got != 2 {
		t.Fatalf("expected 2 deleted, got %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `tp_aggregation_cache_total{backend="redis",result="hit"} 1`) {
		t.Fatalf("expected cache counter in exposition, got:\n%s", body)
	}
}

func TestReportItemErrors(t *testing.T) {
	counts := ReportItemErrors(context.Background(), nil, "backfill", []string{
		"ItemRepo.Get: record not found",
		"panic: runtime error: index out of range",
		"AssociationRepo.Insert: operation interrupted",
		"constraint violated",
		" ",
	}, nil)
	want := map[string]int{IssueMissingItem: 1, IssuePanic: 1, IssueTransient: 1, IssueSyncError: 1}
	if len(counts) != len(want) {
		t.Fatalf("unexpected counts: %v", counts)
	}
	for k, v := range want {
		if counts[k] != v {
			t.Fatalf("issue %s: got %d want %d", k, counts[k], v)
		}
	}
	if ReportItemErrors(context.Background(), nil, "backfill", nil, nil) != nil {
		t.Fatalf("no errors should report nothing")
	}
}
