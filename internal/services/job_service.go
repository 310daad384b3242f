package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	jobsrepo "github.com/yungbote/topicpulse-backend/internal/data/repos/jobs"
	"github.com/yungbote/topicpulse-backend/internal/domain/classify"
	domjobs "github.com/yungbote/topicpulse-backend/internal/domain/jobs"
	"github.com/yungbote/topicpulse-backend/internal/jobs/handlers"
	jobrt "github.com/yungbote/topicpulse-backend/internal/jobs/runtime"
	"github.com/yungbote/topicpulse-backend/internal/platform/ctxutil"
	"github.com/yungbote/topicpulse-backend/internal/platform/dbctx"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
	"github.com/yungbote/topicpulse-backend/internal/temporalx/jobrun"
)

// WorkflowStarter is the slice of the Temporal client the job service needs.
type WorkflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options temporalsdkclient.StartWorkflowOptions, workflow interface{}, args ...interface{}) (temporalsdkclient.WorkflowRun, error)
	CancelWorkflow(ctx context.Context, workflowID string, runID string) error
}

type JobService interface {
	// Enqueue records a job_run and starts its workflow. When a queued or running job of the same
	// type already exists for the same entity, that job is returned with created=false.
	Enqueue(ctx context.Context, jobType string, payload map[string]any) (job *domjobs.JobRun, created bool, err error)
	Dispatch(ctx context.Context, job *domjobs.JobRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*domjobs.JobRun, error)
	Cancel(ctx context.Context, id uuid.UUID) (*domjobs.JobRun, error)
	// Restart re-queues a failed or canceled job. Its checkpoint is kept, so a backfill resumes.
	Restart(ctx context.Context, id uuid.UUID) (*domjobs.JobRun, error)
}

type jobService struct {
	db        *gorm.DB
	log       *logger.Logger
	repo      jobsrepo.JobRunRepo
	registry  *jobrt.Registry
	temporal  WorkflowStarter
	taskQueue string
}

func NewJobService(
	db *gorm.DB,
	baseLog *logger.Logger,
	repo jobsrepo.JobRunRepo,
	registry *jobrt.Registry,
	tc WorkflowStarter,
	taskQueue string,
) JobService {
	return &jobService{
		db:        db,
		log:       baseLog.With("service", "JobService"),
		repo:      repo,
		registry:  registry,
		temporal:  tc,
		taskQueue: strings.TrimSpace(taskQueue),
	}
}

func (s *jobService) Enqueue(ctx context.Context, jobType string, payload map[string]any) (*domjobs.JobRun, bool, error) {
	const op = "JobService.Enqueue"
	jobType = strings.TrimSpace(jobType)
	if _, ok := s.registry.Get(jobType); !ok {
		return nil, false, classify.NewError(classify.CodeValidation, op, "unknown job_type "+jobType, nil)
	}
	if s.temporal == nil {
		return nil, false, classify.NewError(classify.CodeTransientExternal, op, "temporal not configured (TEMPORAL_ADDRESS)", nil)
	}
	payload = ctxutil.InjectPayload(ctx, payload)
	entityType, entityID := entityFor(jobType, payload)

	dbc := dbctx.Context{Ctx: ctx}
	if entityID != "" {
		has, err := s.repo.HasRunnableForEntity(dbc, entityType, entityID, jobType)
		if err != nil {
			return nil, false, err
		}
		if has {
			existing, err := s.repo.GetLatestByEntity(dbc, entityType, entityID, jobType)
			if err != nil {
				return nil, false, err
			}
			if existing != nil {
				s.log.Debug("job already runnable; not enqueuing", "job_id", existing.ID, "job_type", jobType, "entity_id", entityID)
				return existing, false, nil
			}
		}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, false, classify.Wrap(classify.CodeValidation, op, err)
	}
	now := time.Now().UTC()
	job := &domjobs.JobRun{
		ID:         uuid.New(),
		JobType:    jobType,
		EntityType: entityType,
		EntityID:   entityID,
		Status:     domjobs.StatusQueued,
		Stage:      "queued",
		Message:    "Queued",
		Payload:    datatypes.JSON(raw),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.repo.Create(dbc, []*domjobs.JobRun{job}); err != nil {
		return nil, false, err
	}
	if err := s.Dispatch(ctx, job); err != nil {
		return job, true, err
	}
	s.log.Info("job enqueued", "job_id", job.ID, "job_type", jobType, "entity_type", entityType, "entity_id", entityID)
	return job, true, nil
}

func (s *jobService) Dispatch(ctx context.Context, job *domjobs.JobRun) error {
	return s.start(ctx, job, enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE)
}

func (s *jobService) start(ctx context.Context, job *domjobs.JobRun, reuse enums.WorkflowIdReusePolicy) error {
	if job == nil || job.ID == uuid.Nil {
		return classify.NewError(classify.CodeValidation, "JobService.Dispatch", "missing job id", nil)
	}
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:                    job.ID.String(),
		TaskQueue:             s.taskQueue,
		WorkflowIDReusePolicy: reuse,
	}
	in := jobrun.WorkflowInput{JobType: job.JobType, Transient: s.registry.IsTransient(job.JobType)}
	_, err := s.temporal.ExecuteWorkflow(ctx, opts, jobrun.WorkflowName, in)
	if err == nil {
		return nil
	}
	if _, ok := err.(*serviceerror.WorkflowExecutionAlreadyStarted); ok {
		return nil
	}

	now := time.Now().UTC()
	_ = s.repo.UpdateFields(dbctx.Context{Ctx: ctx}, job.ID, map[string]interface{}{
		"status":        domjobs.StatusFailed,
		"stage":         "dispatch",
		"message":       "",
		"error":         err.Error(),
		"last_error_at": now,
	})
	job.Status, job.Stage, job.Error, job.LastErrorAt = domjobs.StatusFailed, "dispatch", err.Error(), &now
	s.log.Warn("job dispatch failed", "job_id", job.ID, "job_type", job.JobType, "error", err)
	return classify.Wrap(classify.CodeTransientExternal, "JobService.Dispatch", fmt.Errorf("start temporal workflow: %w", err))
}

func (s *jobService) GetByID(ctx context.Context, id uuid.UUID) (*domjobs.JobRun, error) {
	if id == uuid.Nil {
		return nil, classify.NewError(classify.CodeValidation, "JobService.GetByID", "missing job id", nil)
	}
	return s.repo.GetByID(dbctx.Context{Ctx: ctx}, id)
}

func (s *jobService) Cancel(ctx context.Context, id uuid.UUID) (*domjobs.JobRun, error) {
	var updated *domjobs.JobRun
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inner := dbctx.Context{Ctx: ctx, Tx: tx}
		job, err := s.repo.GetByID(inner, id)
		if err != nil {
			return err
		}
		if job.IsTerminal() {
			updated = job
			return nil
		}
		now := time.Now().UTC()
		if err := s.repo.UpdateFields(inner, id, map[string]interface{}{
			"status":     domjobs.StatusCanceled,
			"message":    "Canceled",
			"updated_at": now,
		}); err != nil {
			return err
		}
		job.Status, job.Message, job.UpdatedAt = domjobs.StatusCanceled, "Canceled", now
		updated = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	if updated.Status == domjobs.StatusCanceled && s.temporal != nil {
		if err := s.temporal.CancelWorkflow(ctx, id.String(), ""); err != nil {
			s.log.Debug("workflow cancel failed", "job_id", id, "error", err)
		}
	}
	return updated, nil
}

func (s *jobService) Restart(ctx context.Context, id uuid.UUID) (*domjobs.JobRun, error) {
	const op = "JobService.Restart"
	if s.temporal == nil {
		return nil, classify.NewError(classify.CodeTransientExternal, op, "temporal not configured (TEMPORAL_ADDRESS)", nil)
	}
	var updated *domjobs.JobRun
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inner := dbctx.Context{Ctx: ctx, Tx: tx}
		job, err := s.repo.GetByID(inner, id)
		if err != nil {
			return err
		}
		if job.Status != domjobs.StatusFailed && job.Status != domjobs.StatusCanceled {
			return classify.NewError(classify.CodeConflict, op, "job is "+job.Status+"; only failed or canceled jobs restart", nil)
		}
		now := time.Now().UTC()
		if err := s.repo.UpdateFields(inner, id, map[string]interface{}{
			"status":        domjobs.StatusQueued,
			"message":       "Restarting",
			"error":         "",
			"last_error_at": nil,
			"updated_at":    now,
		}); err != nil {
			return err
		}
		job.Status, job.Message, job.Error, job.LastErrorAt, job.UpdatedAt = domjobs.StatusQueued, "Restarting", "", nil, now
		updated = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.start(ctx, updated, enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE); err != nil {
		return updated, err
	}
	return updated, nil
}

// entityFor names the entity a job acts on, which keys duplicate suppression.
func entityFor(jobType string, payload map[string]any) (string, string) {
	str := func(key string) string {
		v, ok := payload[key]
		if !ok || v == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(v))
	}
	switch {
	case jobType == handlers.TypeBackfillAll:
		if k := str("kind"); k != "" {
			return "content_kind", k
		}
		return "content_kind", "all"
	case str("tag_id") != "":
		return "tag", str("tag_id")
	case str("tag_name") != "":
		return "tag_name", str("tag_name")
	case str("topic_id") != "":
		return "topic", str("topic_id")
	case str("kind") != "" && str("id") != "":
		return str("kind"), str("id")
	default:
		return "", ""
	}
}
