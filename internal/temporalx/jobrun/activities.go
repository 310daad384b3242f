package jobrun

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"gorm.io/gorm"

	jobsrepo "github.com/yungbote/topicpulse-backend/internal/data/repos/jobs"
	"github.com/yungbote/topicpulse-backend/internal/domain/classify"
	domjobs "github.com/yungbote/topicpulse-backend/internal/domain/jobs"
	jobrt "github.com/yungbote/topicpulse-backend/internal/jobs/runtime"
	"github.com/yungbote/topicpulse-backend/internal/observability"
	"github.com/yungbote/topicpulse-backend/internal/platform/dbctx"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
)

type Activities struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Jobs     jobsrepo.JobRunRepo
	Registry *jobrt.Registry
	Metrics  *observability.Metrics

	// HeartbeatEvery controls both the Temporal and the job_run heartbeat; zero means 10s.
	HeartbeatEvery time.Duration
}

// Run executes the handler for jobID once.
//
// A transient handler error is returned as a plain error while attempts remain, so the
// activity retry policy applies. Anything else marks the job failed and is returned as a
// non-retryable application error.
func (a *Activities) Run(ctx context.Context, jobID string, transient bool) (RunResult, error) {
	res := RunResult{JobID: strings.TrimSpace(jobID)}
	if a == nil || a.DB == nil || a.Jobs == nil || a.Registry == nil {
		return res, temporal.NewNonRetryableApplicationError("jobrun: activity not configured", "config", nil)
	}
	id, err := uuid.Parse(res.JobID)
	if err != nil || id == uuid.Nil {
		return res, temporal.NewNonRetryableApplicationError("jobrun: invalid job_id", string(classify.CodeValidation), err)
	}
	attempt := activity.GetInfo(ctx).Attempt
	res.Attempt = attempt

	dbc := dbctx.Context{Ctx: ctx}
	job, err := a.Jobs.GetByID(dbc, id)
	if err != nil {
		if classify.IsCode(err, classify.CodeNotFound) {
			return res, temporal.NewNonRetryableApplicationError("jobrun: job not found", string(classify.CodeNotFound), err)
		}
		return res, err
	}
	if job.IsTerminal() {
		return fill(res, job), nil
	}
	ok, err := a.Jobs.MarkRunning(dbc, id)
	if err != nil {
		return res, err
	}
	if !ok {
		if job, err = a.Jobs.GetByID(dbc, id); err != nil {
			return res, err
		}
		return fill(res, job), nil
	}
	job.Status = domjobs.StatusRunning

	log := a.Log.With("job_id", id.String(), "job_type", job.JobType, "attempt", attempt)
	start := time.Now()
	stopHB := a.startHeartbeat(ctx, id)
	defer stopHB()

	jc := jobrt.NewContext(ctx, a.DB, job, a.Jobs, a.Log)
	runErr := a.execute(jc, log)

	if runErr != nil {
		retryable := transient && classify.IsTransient(runErr) && attempt < TransientMaxAttempts
		if retryable {
			log.Warn("transient job failure; retrying", "error", runErr)
			jc.RecordRetry("retry", runErr)
			a.Metrics.ObserveJob(job.JobType, "retry", time.Since(start))
			return fill(res, jc.Job), runErr
		}
		jc.Fail(failStage(jc.Job), runErr)
		a.Metrics.ObserveJob(job.JobType, domjobs.StatusFailed, time.Since(start))
		return fill(res, jc.Job), temporal.NewNonRetryableApplicationError(runErr.Error(), string(classify.CodeOf(runErr)), runErr)
	}

	updated, err := a.Jobs.GetByID(dbc, id)
	if err != nil {
		return res, err
	}
	// A handler that returns nil without a terminal status counts as succeeded.
	if updated.Status == domjobs.StatusRunning {
		log.Warn("handler returned without terminal status; marking succeeded", "stage", updated.Stage)
		var prior any
		if len(updated.Result) > 0 && string(updated.Result) != "null" {
			prior = json.RawMessage(updated.Result)
		}
		jc.Job = updated
		jc.Succeed("done", prior)
		updated = jc.Job
	}
	a.Metrics.ObserveJob(updated.JobType, updated.Status, time.Since(start))
	return fill(res, updated), nil
}

// execute dispatches to the registered handler, turning a panic into an internal error.
func (a *Activities) execute(jc *jobrt.Context, log *logger.Logger) (err error) {
	h, ok := a.Registry.Get(jc.Job.JobType)
	if !ok {
		return classify.NewError(classify.CodeValidation, "jobrun", fmt.Sprintf("no handler registered for job_type=%s", jc.Job.JobType), nil)
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("job handler panic", "panic", r)
			err = classify.NewError(classify.CodeInternal, "jobrun", fmt.Sprintf("panic: %v", r), nil)
		}
	}()
	return h.Run(jc)
}

func failStage(job *domjobs.JobRun) string {
	if job == nil || job.Stage == "" || job.Stage == "queued" || job.Stage == "running" {
		return "run"
	}
	return job.Stage
}

func fill(res RunResult, job *domjobs.JobRun) RunResult {
	if job == nil {
		return res
	}
	res.Status = job.Status
	res.Stage = job.Stage
	res.Progress = job.Progress
	return res
}

func (a *Activities) startHeartbeat(ctx context.Context, id uuid.UUID) func() {
	every := a.HeartbeatEvery
	if every <= 0 {
		every = 10 * time.Second
	}
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				activity.RecordHeartbeat(ctx)
				_ = a.Jobs.Heartbeat(dbctx.Context{Ctx: ctx}, id)
			}
		}
	}()
	return func() { close(done) }
}
