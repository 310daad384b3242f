package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/topicpulse-backend/internal/analytics"
	domanalytics "github.com/yungbote/topicpulse-backend/internal/domain/analytics"
	"github.com/yungbote/topicpulse-backend/internal/domain/classify"
	"github.com/yungbote/topicpulse-backend/internal/domain/content"
	domjobs "github.com/yungbote/topicpulse-backend/internal/domain/jobs"
	httpH "github.com/yungbote/topicpulse-backend/internal/http/handlers"
	"github.com/yungbote/topicpulse-backend/internal/observability"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
)

type fakeDashboard struct {
	scopeType domanalytics.ScopeType
	scopeID   string
	params    analytics.Params
	err       error
}

func (f *fakeDashboard) Aggregate(ctx context.Context, scopeType domanalytics.ScopeType, scopeID string, p analytics.Params) (*analytics.Payload, error) {
	f.scopeType, f.scopeID, f.params = scopeType, scopeID, p
	if f.err != nil {
		return nil, f.err
	}
	return &analytics.Payload{Scope: analytics.ScopeView{Type: scopeType, ID: scopeID}}, nil
}

type fakeJobs struct {
	jobs map[uuid.UUID]*domjobs.JobRun
}

func (f *fakeJobs) Enqueue(ctx context.Context, jobType string, payload map[string]any) (*domjobs.JobRun, bool, error) {
	if jobType != "sync_content" {
		return nil, false, classify.NewError(classify.CodeValidation, "Enqueue", "unknown job_type "+jobType, nil)
	}
	job := &domjobs.JobRun{ID: uuid.New(), JobType: jobType, Status: domjobs.StatusQueued}
	f.jobs[job.ID] = job
	return job, true, nil
}

func (f *fakeJobs) Dispatch(ctx context.Context, job *domjobs.JobRun) error { return nil }

func (f *fakeJobs) GetByID(ctx context.Context, id uuid.UUID) (*domjobs.JobRun, error) {
	if job, ok := f.jobs[id]; ok {
		return job, nil
	}
	return nil, classify.NewError(classify.CodeNotFound, "GetByID", "record not found", nil)
}

func (f *fakeJobs) Cancel(ctx context.Context, id uuid.UUID) (*domjobs.JobRun, error) {
	job, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	job.Status = domjobs.StatusCanceled
	return job, nil
}

func (f *fakeJobs) Restart(ctx context.Context, id uuid.UUID) (*domjobs.JobRun, error) {
	job, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != domjobs.StatusCanceled && job.Status != domjobs.StatusFailed {
		return nil, classify.NewError(classify.CodeConflict, "Restart", "not restartable", nil)
	}
	job.Status = domjobs.StatusQueued
	return job, nil
}

func newTestRouter(dash *fakeDashboard, jobs *fakeJobs) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(RouterConfig{
		Log:              logger.NewNop(),
		Metrics:          observability.NewMetrics(),
		HealthHandler:    httpH.NewHealthHandler(nil),
		AnalyticsHandler: httpH.NewAnalyticsHandler(dash),
		JobHandler:       httpH.NewJobHandler(jobs),
	})
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(&fakeDashboard{}, &fakeJobs{jobs: map[uuid.UUID]*domjobs.JobRun{}})
	if rec := do(r, http.MethodGet, "/healthcheck", ""); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthcheck: %d %q", rec.Code, rec.Body.String())
	}
	rec := do(r, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "healthcheck") {
		t.Fatalf("expected the prior request in api metrics")
	}
}

func TestAnalyticsRoute(t *testing.T) {
	dash := &fakeDashboard{}
	r := newTestRouter(dash, &fakeJobs{jobs: map[uuid.UUID]*domjobs.JobRun{}})

	rec := do(r, http.MethodGet, "/api/analytics/topic/12?kind=social_post&from=2026-03-01&to=2026-03-15&top=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if dash.scopeType != domanalytics.ScopeTopic || dash.scopeID != "12" {
		t.Fatalf("unexpected scope: %s/%s", dash.scopeType, dash.scopeID)
	}
	wantFrom := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if dash.params.Kind != content.KindSocialPost || !dash.params.From.Equal(wantFrom) || dash.params.Top != 5 {
		t.Fatalf("unexpected params: %+v", dash.params)
	}
	var payload analytics.Payload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil || payload.Scope.ID != "12" {
		t.Fatalf("unexpected body: %v %s", err, rec.Body.String())
	}

	if rec := do(r, http.MethodGet, "/api/analytics/planet/1", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad scope type: %d", rec.Code)
	}
	if rec := do(r, http.MethodGet, "/api/analytics/tag/Chaco?kind=video", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad kind: %d", rec.Code)
	}
	if rec := do(r, http.MethodGet, "/api/analytics/tag/Chaco?from=yesterday", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad from: %d", rec.Code)
	}

	dash.err = classify.NewError(classify.CodeValidation, "analytics.params", "from must be before to", nil)
	rec = do(r, http.MethodGet, "/api/analytics/tag/Chaco", "")
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), `"code":"validation"`) {
		t.Fatalf("classified error: %d %s", rec.Code, rec.Body.String())
	}
}

func TestJobRoutes(t *testing.T) {
	jobs := &fakeJobs{jobs: map[uuid.UUID]*domjobs.JobRun{}}
	r := newTestRouter(&fakeDashboard{}, jobs)

	rec := do(r, http.MethodPost, "/api/jobs/sync_content", `{"kind":"web_entry","id":1}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("enqueue: %d %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Job     domjobs.JobRun `json:"job"`
		Created bool           `json:"created"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || !body.Created {
		t.Fatalf("enqueue body: %v %s", err, rec.Body.String())
	}
	id := body.Job.ID.String()

	if rec := do(r, http.MethodGet, "/api/jobs/"+id, ""); rec.Code != http.StatusOK {
		t.Fatalf("get: %d", rec.Code)
	}
	if rec := do(r, http.MethodGet, "/api/jobs/not-a-uuid", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: %d", rec.Code)
	}
	if rec := do(r, http.MethodGet, "/api/jobs/"+uuid.New().String(), ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing job: %d", rec.Code)
	}
	if rec := do(r, http.MethodPost, "/api/job-runs/"+id+"/restart", ""); rec.Code != http.StatusConflict {
		t.Fatalf("restart queued: %d", rec.Code)
	}
	if rec := do(r, http.MethodPost, "/api/job-runs/"+id+"/cancel", ""); rec.Code != http.StatusOK {
		t.Fatalf("cancel: %d", rec.Code)
	}
	if rec := do(r, http.MethodPost, "/api/job-runs/"+id+"/restart", ""); rec.Code != http.StatusOK {
		t.Fatalf("restart: %d", rec.Code)
	}
	if rec := do(r, http.MethodPost, "/api/jobs/nope", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown type: %d", rec.Code)
	}
	if rec := do(r, http.MethodPost, "/api/jobs/sync_content", `{"kind":`); rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: %d", rec.Code)
	}
}
