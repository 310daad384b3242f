package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	jobsrepo "github.com/yungbote/topicpulse-backend/internal/data/repos/jobs"
	"github.com/yungbote/topicpulse-backend/internal/data/repos/testutil"
	"github.com/yungbote/topicpulse-backend/internal/domain/classify"
	domjobs "github.com/yungbote/topicpulse-backend/internal/domain/jobs"
	"github.com/yungbote/topicpulse-backend/internal/platform/ctxutil"
	"github.com/yungbote/topicpulse-backend/internal/platform/dbctx"
)

func newJob(t *testing.T, payload string) (*Context, jobsrepo.JobRunRepo) {
	t.Helper()
	db := testutil.DB(t)
	repo := jobsrepo.NewJobRunRepo(db, testutil.Logger(t))
	job := &domjobs.JobRun{
		JobType: "backfill_all",
		Status:  domjobs.StatusRunning,
		Stage:   "running",
		Payload: datatypes.JSON([]byte(payload)),
	}
	if _, err := repo.Create(dbctx.Context{Ctx: context.Background()}, []*domjobs.JobRun{job}); err != nil {
		t.Fatalf("create job: %v", err)
	}
	return NewContext(context.Background(), db, job, repo, testutil.Logger(t)), repo
}

func TestPayloadHelpers(t *testing.T) {
	jc, _ := newJob(t, `{"tag_id":12,"kind":" social_post ","batch_size":"250","from":"2026-10-01","bad":-1,"trace_id":"tr-1"}`)

	if id, ok := jc.PayloadUint("tag_id"); !ok || id != 12 {
		t.Fatalf("tag_id: %d %v", id, ok)
	}
	if _, ok := jc.PayloadUint("bad"); ok {
		t.Fatalf("negative ids must be rejected")
	}
	if _, ok := jc.PayloadUint("missing"); ok {
		t.Fatalf("missing ids must be rejected")
	}
	if got := jc.PayloadString("kind"); got != "social_post" {
		t.Fatalf("kind: %q", got)
	}
	if got := jc.PayloadInt("batch_size", 500); got != 250 {
		t.Fatalf("batch_size: %d", got)
	}
	if got := jc.PayloadInt("missing", 7); got != 7 {
		t.Fatalf("default: %d", got)
	}
	from, ok := jc.PayloadTime("from")
	if !ok || !from.Equal(time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("from: %v %v", from, ok)
	}
	td := ctxutil.GetTraceData(jc.Ctx)
	if td == nil || td.TraceID != "tr-1" {
		t.Fatalf("trace data not applied: %+v", td)
	}

	var typed struct {
		TagID uint64 `json:"tag_id"`
	}
	if err := jc.DecodePayload(&typed); err != nil || typed.TagID != 12 {
		t.Fatalf("DecodePayload: %+v %v", typed, err)
	}
}

func TestMalformedPayloadIsEmpty(t *testing.T) {
	jc, _ := newJob(t, `not-json`)
	if len(jc.Payload()) != 0 {
		t.Fatalf("expected empty payload, got %v", jc.Payload())
	}
}

func TestCheckpointAndSucceed(t *testing.T) {
	jc, repo := newJob(t, `{}`)
	dbc := dbctx.Context{Ctx: context.Background()}

	if ok, err := jc.Checkpoint(40, "web_entry", 25, map[string]any{"processed": 40}); !ok || err != nil {
		t.Fatalf("checkpoint refused: %v %v", ok, err)
	}
	got, err := repo.GetByID(dbc, jc.Job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Checkpoint != 40 || got.Stage != "web_entry" || got.Progress != 25 {
		t.Fatalf("checkpoint not persisted: %+v", got)
	}

	jc.RecordRetry("fetch", errors.New("upstream 503"))
	got, _ = repo.GetByID(dbc, jc.Job.ID)
	if got.Status != domjobs.StatusRunning || got.Error != "upstream 503" || got.LastErrorAt == nil {
		t.Fatalf("retry not recorded: %+v", got)
	}

	jc.Succeed("done", map[string]int{"processed": 80})
	got, _ = repo.GetByID(dbc, jc.Job.ID)
	if got.Status != domjobs.StatusSucceeded || got.Progress != 100 || got.Error != "" {
		t.Fatalf("succeed not persisted: %+v", got)
	}
	var res map[string]int
	if err := json.Unmarshal(got.Result, &res); err != nil || res["processed"] != 80 {
		t.Fatalf("result: %s %v", string(got.Result), err)
	}
}

func TestCanceledJobIsNotOverwritten(t *testing.T) {
	jc, repo := newJob(t, `{}`)
	dbc := dbctx.Context{Ctx: context.Background()}
	if err := repo.UpdateFields(dbc, jc.Job.ID, map[string]interface{}{"status": domjobs.StatusCanceled}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if ok, err := jc.Checkpoint(10, "web_entry", 5, nil); ok || err != nil {
		t.Fatalf("checkpoint on canceled job: ok=%v err=%v", ok, err)
	}
	jc.Fail("boom", errors.New("late failure"))
	got, _ := repo.GetByID(dbc, jc.Job.ID)
	if got.Status != domjobs.StatusCanceled || got.Checkpoint != 0 {
		t.Fatalf("canceled job overwritten: %+v", got)
	}
}

// flakyRepo fails every guarded update, as a dropped connection would.
type flakyRepo struct {
	jobsrepo.JobRunRepo
}

func (flakyRepo) UpdateFieldsUnlessStatus(dbctx.Context, uuid.UUID, []string, map[string]interface{}) (bool, error) {
	return false, errors.New("connection reset by peer")
}

func TestCheckpointWriteFailureIsTransient(t *testing.T) {
	jc, repo := newJob(t, `{}`)
	jc.Repo = flakyRepo{JobRunRepo: repo}

	ok, err := jc.Checkpoint(25, "web_entry", 10, map[string]any{"processed": 25})
	if ok {
		t.Fatalf("checkpoint should not report success")
	}
	if !classify.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if jc.Job.Checkpoint != 0 {
		t.Fatalf("in-memory checkpoint advanced: %d", jc.Job.Checkpoint)
	}
	got, _ := repo.GetByID(dbctx.Context{Ctx: context.Background()}, jc.Job.ID)
	if got.Checkpoint != 0 || got.Status != domjobs.StatusRunning {
		t.Fatalf("row changed: %+v", got)
	}
}

type stubHandler struct {
	name      string
	transient bool
}

func (h stubHandler) Type() string       { return h.name }
func (h stubHandler) Run(*Context) error { return nil }
func (h stubHandler) Transient() bool    { return h.transient }

type plainHandler struct{}

func (plainHandler) Type() string       { return "sync_content" }
func (plainHandler) Run(*Context) error { return nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(stubHandler{name: "refresh_engagement", transient: true}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(plainHandler{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(plainHandler{}); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
	if err := r.Register(stubHandler{}); err == nil {
		t.Fatalf("expected empty type error")
	}
	if !r.IsTransient("refresh_engagement") || r.IsTransient("sync_content") || r.IsTransient("nope") {
		t.Fatalf("IsTransient mismatch")
	}
	if got := r.Types(); len(got) != 2 || got[0] != "refresh_engagement" {
		t.Fatalf("Types: %v", got)
	}
}
