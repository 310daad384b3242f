package jobrun

import (
	"time"

	"go.temporal.io/sdk/temporal"
)

const (
	WorkflowName = "job_run"
	ActivityRun  = "job_run_execute"

	// TransientMaxAttempts bounds retries of jobs that call external systems.
	TransientMaxAttempts = 3
)

// WorkflowInput travels with the workflow; the job id is the workflow id.
type WorkflowInput struct {
	JobType   string `json:"job_type"`
	Transient bool   `json:"transient"`
}

type RunResult struct {
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	Stage    string `json:"stage,omitempty"`
	Progress int    `json:"progress,omitempty"`
	Attempt  int32  `json:"attempt,omitempty"`
}

// RetryPolicy gives transient jobs exponential backoff (2s, 4s) over three attempts.
// Every other job runs exactly once; its per-item failures are recorded, not retried.
func RetryPolicy(transient bool) *temporal.RetryPolicy {
	if !transient {
		return &temporal.RetryPolicy{MaximumAttempts: 1}
	}
	return &temporal.RetryPolicy{
		InitialInterval:    2 * time.Second,
		BackoffCoefficient: 2,
		MaximumInterval:    time.Minute,
		MaximumAttempts:    TransientMaxAttempts,
	}
}
