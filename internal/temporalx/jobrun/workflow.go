package jobrun

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/workflow"

	domjobs "github.com/yungbote/topicpulse-backend/internal/domain/jobs"
)

// Workflow executes one job_run row as a single activity. The activity's retry policy depends
// on whether the job type is transient.
func Workflow(ctx workflow.Context, in WorkflowInput) error {
	jobID := strings.TrimSpace(workflow.GetInfo(ctx).WorkflowExecution.ID)
	if jobID == "" {
		return fmt.Errorf("jobrun: missing job_id")
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 24 * time.Hour,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy:         RetryPolicy(in.Transient),
	})

	var out RunResult
	if err := workflow.ExecuteActivity(ctx, ActivityRun, jobID, in.Transient).Get(ctx, &out); err != nil {
		return err
	}
	if out.Status == domjobs.StatusFailed {
		return fmt.Errorf("job %s failed (stage=%s)", jobID, out.Stage)
	}
	workflow.GetLogger(ctx).Info("job finished", "job_id", jobID, "job_type", in.JobType, "status", out.Status)
	return nil
}
