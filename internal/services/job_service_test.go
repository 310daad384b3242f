package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"

	jobsrepo "github.com/yungbote/topicpulse-backend/internal/data/repos/jobs"
	"github.com/yungbote/topicpulse-backend/internal/data/repos/testutil"
	"github.com/yungbote/topicpulse-backend/internal/domain/classify"
	domjobs "github.com/yungbote/topicpulse-backend/internal/domain/jobs"
	jobrt "github.com/yungbote/topicpulse-backend/internal/jobs/runtime"
	"github.com/yungbote/topicpulse-backend/internal/platform/ctxutil"
	"github.com/yungbote/topicpulse-backend/internal/platform/dbctx"
	"github.com/yungbote/topicpulse-backend/internal/temporalx/jobrun"
)

type started struct {
	opts temporalsdkclient.StartWorkflowOptions
	name interface{}
	in   jobrun.WorkflowInput
}

type fakeStarter struct {
	err      error
	started  []started
	canceled []string
}

func (f *fakeStarter) ExecuteWorkflow(ctx context.Context, opts temporalsdkclient.StartWorkflowOptions, workflow interface{}, args ...interface{}) (temporalsdkclient.WorkflowRun, error) {
	if f.err != nil {
		return nil, f.err
	}
	s := started{opts: opts, name: workflow}
	if len(args) > 0 {
		s.in, _ = args[0].(jobrun.WorkflowInput)
	}
	f.started = append(f.started, s)
	return nil, nil
}

func (f *fakeStarter) CancelWorkflow(ctx context.Context, workflowID string, runID string) error {
	f.canceled = append(f.canceled, workflowID)
	return nil
}

type namedHandler struct {
	name      string
	transient bool
}

func (h namedHandler) Type() string                { return h.name }
func (h namedHandler) Run(jc *jobrt.Context) error { return nil }
func (h namedHandler) Transient() bool             { return h.transient }

func newService(t *testing.T, starter *fakeStarter) (JobService, jobsrepo.JobRunRepo) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	reg := jobrt.NewRegistry()
	for _, h := range []namedHandler{{name: "sync_content"}, {name: "refresh_engagement", transient: true}, {name: "backfill_all"}} {
		if err := reg.Register(h); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	repo := jobsrepo.NewJobRunRepo(db, log)
	return NewJobService(db, log, repo, reg, starter, "topicpulse-jobs"), repo
}

func TestEnqueueDispatchesWorkflow(t *testing.T) {
	starter := &fakeStarter{}
	svc, repo := newService(t, starter)
	ctx := ctxutil.WithTraceData(context.Background(), &ctxutil.TraceData{RequestID: "req-1"})

	job, created, err := svc.Enqueue(ctx, "refresh_engagement", map[string]any{"kind": "web_entry", "id": 7})
	if err != nil || !created {
		t.Fatalf("Enqueue: created=%v err=%v", created, err)
	}
	if job.EntityType != "web_entry" || job.EntityID != "7" || job.Status != domjobs.StatusQueued {
		t.Fatalf("unexpected job: %+v", job)
	}
	if len(starter.started) != 1 {
		t.Fatalf("expected one workflow start, got %d", len(starter.started))
	}
	s := starter.started[0]
	if s.opts.ID != job.ID.String() || s.opts.TaskQueue != "topicpulse-jobs" {
		t.Fatalf("unexpected options: %+v", s.opts)
	}
	if s.opts.WorkflowIDReusePolicy != enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE {
		t.Fatalf("unexpected reuse policy: %v", s.opts.WorkflowIDReusePolicy)
	}
	if s.name != jobrun.WorkflowName || s.in.JobType != "refresh_engagement" || !s.in.Transient {
		t.Fatalf("unexpected workflow input: %v %+v", s.name, s.in)
	}

	stored, err := repo.GetByID(dbctx.Context{Ctx: ctx}, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	jc := jobrt.NewContext(ctx, nil, stored, nil, testutil.Logger(t))
	if got := jc.PayloadString("request_id"); got != "req-1" {
		t.Fatalf("expected request id in payload, got %q", got)
	}
}

func TestEnqueueReturnsRunnableDuplicate(t *testing.T) {
	starter := &fakeStarter{}
	svc, _ := newService(t, starter)
	ctx := context.Background()

	first, _, err := svc.Enqueue(ctx, "sync_content", map[string]any{"kind": "social_post", "id": 3})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	second, created, err := svc.Enqueue(ctx, "sync_content", map[string]any{"kind": "social_post", "id": 3})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if created || second.ID != first.ID {
		t.Fatalf("expected the existing job, got created=%v id=%s", created, second.ID)
	}
	if len(starter.started) != 1 {
		t.Fatalf("duplicate must not start a workflow, got %d starts", len(starter.started))
	}

	other, created, err := svc.Enqueue(ctx, "sync_content", map[string]any{"kind": "social_post", "id": 4})
	if err != nil || !created || other.ID == first.ID {
		t.Fatalf("distinct entity must enqueue: created=%v err=%v", created, err)
	}
}

func TestEnqueueBackfillEntity(t *testing.T) {
	svc, _ := newService(t, &fakeStarter{})
	job, _, err := svc.Enqueue(context.Background(), "backfill_all", map[string]any{"batch_size": 100})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if job.EntityType != "content_kind" || job.EntityID != "all" {
		t.Fatalf("unexpected entity: %s/%s", job.EntityType, job.EntityID)
	}
}

func TestEnqueueUnknownType(t *testing.T) {
	svc, _ := newService(t, &fakeStarter{})
	_, _, err := svc.Enqueue(context.Background(), "nope", nil)
	if !classify.IsCode(err, classify.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEnqueueDispatchFailureMarksJobFailed(t *testing.T) {
	starter := &fakeStarter{err: errors.New("frontend unavailable")}
	svc, repo := newService(t, starter)
	ctx := context.Background()

	job, created, err := svc.Enqueue(ctx, "sync_content", map[string]any{"kind": "web_entry", "id": 1})
	if err == nil || !created {
		t.Fatalf("expected dispatch error on a created job, got created=%v err=%v", created, err)
	}
	if !classify.IsTransient(err) {
		t.Fatalf("dispatch failure should be transient: %v", err)
	}
	stored, err := repo.GetByID(dbctx.Context{Ctx: ctx}, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != domjobs.StatusFailed || stored.Stage != "dispatch" || stored.Error == "" {
		t.Fatalf("unexpected stored job: %+v", stored)
	}
}

func TestEnqueueAlreadyStartedIsNotAnError(t *testing.T) {
	starter := &fakeStarter{err: serviceerror.NewWorkflowExecutionAlreadyStarted("exists", "", "")}
	svc, _ := newService(t, starter)
	job, _, err := svc.Enqueue(context.Background(), "sync_content", map[string]any{"kind": "web_entry", "id": 2})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if job.Status != domjobs.StatusQueued {
		t.Fatalf("expected queued, got %s", job.Status)
	}
}

func TestCancelAndRestart(t *testing.T) {
	starter := &fakeStarter{}
	svc, repo := newService(t, starter)
	ctx := context.Background()

	job, _, err := svc.Enqueue(ctx, "backfill_all", nil)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := svc.Restart(ctx, job.ID); !classify.IsCode(err, classify.CodeConflict) {
		t.Fatalf("queued job must not restart, got %v", err)
	}

	if err := repo.UpdateFields(dbctx.Context{Ctx: ctx}, job.ID, map[string]interface{}{"checkpoint": uint64(42)}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	canceled, err := svc.Cancel(ctx, job.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if canceled.Status != domjobs.StatusCanceled {
		t.Fatalf("expected canceled, got %s", canceled.Status)
	}
	if len(starter.canceled) != 1 || starter.canceled[0] != job.ID.String() {
		t.Fatalf("expected workflow cancel, got %v", starter.canceled)
	}

	restarted, err := svc.Restart(ctx, job.ID)
	if err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if restarted.Status != domjobs.StatusQueued || restarted.Checkpoint != 42 {
		t.Fatalf("restart must queue and keep the checkpoint: %+v", restarted)
	}
	last := starter.started[len(starter.started)-1]
	if last.opts.WorkflowIDReusePolicy != enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE || last.opts.ID != job.ID.String() {
		t.Fatalf("unexpected restart options: %+v", last.opts)
	}
}

func TestGetByIDMissing(t *testing.T) {
	svc, _ := newService(t, &fakeStarter{})
	if _, err := svc.GetByID(context.Background(), uuid.Nil); !classify.IsCode(err, classify.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.GetByID(context.Background(), uuid.New()); !classify.IsCode(err, classify.CodeNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}
