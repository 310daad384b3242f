package temporalworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"gorm.io/gorm"

	jobsrepo "github.com/yungbote/topicpulse-backend/internal/data/repos/jobs"
	jobrt "github.com/yungbote/topicpulse-backend/internal/jobs/runtime"
	"github.com/yungbote/topicpulse-backend/internal/observability"
	"github.com/yungbote/topicpulse-backend/internal/platform/envutil"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
	"github.com/yungbote/topicpulse-backend/internal/temporalx"
	"github.com/yungbote/topicpulse-backend/internal/temporalx/jobrun"
)

// Runner hosts the job_run workflow and activity on the configured task queue.
type Runner struct {
	log      *logger.Logger
	cfg      temporalx.Config
	tc       temporalsdkclient.Client
	acts     *jobrun.Activities
	worker   worker.Worker
	startMax time.Duration
}

func NewRunner(
	log *logger.Logger,
	cfg temporalx.Config,
	tc temporalsdkclient.Client,
	db *gorm.DB,
	jobRepo jobsrepo.JobRunRepo,
	registry *jobrt.Registry,
	metrics *observability.Metrics,
) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if db == nil || jobRepo == nil || registry == nil {
		return nil, fmt.Errorf("temporal worker missing deps")
	}
	return &Runner{
		log: log.With("component", "TemporalWorker"),
		cfg: cfg,
		tc:  tc,
		acts: &jobrun.Activities{
			Log:      log,
			DB:       db,
			Jobs:     jobRepo,
			Registry: registry,
			Metrics:  metrics,
		},
		startMax: envutil.Seconds("TEMPORAL_WORKER_START_MAX_WAIT_SECONDS", 60),
	}, nil
}

// Start polls until the worker starts or the wait budget runs out. The worker stops when ctx ends.
func (r *Runner) Start(ctx context.Context) error {
	r.log.Info("starting Temporal worker", "namespace", r.cfg.Namespace, "task_queue", r.cfg.TaskQueue)
	deadline := time.Now().Add(r.startMax)
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		w := r.newWorker()
		startErr := w.Start()
		if startErr == nil {
			r.worker = w
			go func() {
				<-ctx.Done()
				w.Stop()
			}()
			r.log.Info("Temporal worker started", "task_queue", r.cfg.TaskQueue, "attempts", attempt)
			return nil
		}
		w.Stop()

		var nfe *serviceerror.NamespaceNotFound
		missingNS := errors.As(startErr, &nfe)
		if missingNS && r.cfg.AutoRegisterNamespace {
			if err := temporalx.EnsureNamespace(ctx, r.log, r.cfg); err != nil {
				r.log.Warn("namespace ensure failed", "namespace", r.cfg.Namespace, "error", err)
			}
		}
		if r.startMax <= 0 || time.Now().After(deadline) {
			if missingNS {
				return fmt.Errorf("temporal namespace not found (namespace=%s): %w", r.cfg.Namespace, startErr)
			}
			return startErr
		}
		r.log.Warn("Temporal worker failed to start; retrying", "attempt", attempt, "error", startErr)
		time.Sleep(temporalx.Backoff(r.cfg.DialBackoff, r.cfg.DialBackoffMax, attempt))
	}
}

func (r *Runner) newWorker() worker.Worker {
	concurrency := max(envutil.Int("WORKER_CONCURRENCY", 4), 1)
	w := worker.New(r.tc, r.cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: concurrency,
	})
	w.RegisterWorkflowWithOptions(jobrun.Workflow, workflow.RegisterOptions{Name: jobrun.WorkflowName})
	w.RegisterActivityWithOptions(r.acts.Run, activity.RegisterOptions{Name: jobrun.ActivityRun})
	return w
}

// Stop stops a started worker; safe to call when Start never succeeded.
func (r *Runner) Stop() {
	if r == nil || r.worker == nil {
		return
	}
	r.worker.Stop()
}
