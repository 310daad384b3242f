package handlers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/yungbote/topicpulse-backend/internal/backfill"
	domjobs "github.com/yungbote/topicpulse-backend/internal/domain/jobs"
	jobrt "github.com/yungbote/topicpulse-backend/internal/jobs/runtime"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
)

const TypeBackfillAll = "backfill_all"

// errJobCanceled stops a backfill whose job row was canceled while it ran.
var errJobCanceled = errors.New("job canceled")

// Backfiller is the long-running walk; *backfill.Coordinator implements it.
type Backfiller interface {
	Run(ctx context.Context, p backfill.Params, onBatch backfill.BatchFunc) (backfill.Summary, error)
}

// BackfillAll re-syncs the association index over historical content. Every completed batch is
// checkpointed on the job row, and a re-run of the same job resumes after the last checkpoint.
type BackfillAll struct {
	log   *logger.Logger
	coord Backfiller
}

func NewBackfillAll(baseLog *logger.Logger, coord Backfiller) *BackfillAll {
	return &BackfillAll{log: baseLog.With("job", TypeBackfillAll), coord: coord}
}

func (h *BackfillAll) Type() string { return TypeBackfillAll }

// Transient lets a run that lost its store mid-walk retry from the last checkpoint.
func (h *BackfillAll) Transient() bool { return true }

func (h *BackfillAll) Run(jc *jobrt.Context) error {
	kind, err := optionalKind(jc, TypeBackfillAll)
	if err != nil {
		return err
	}
	p := backfill.Params{
		BatchSize: jc.PayloadInt("batch_size", 0),
		Kind:      kind,
		Retag:     jc.PayloadString("retag") == "true",
	}
	if p.BatchSize < 0 {
		return invalid(TypeBackfillAll, "batch_size must be positive")
	}
	p.StartID, _ = jc.PayloadUint("start_id")
	p.EndID, _ = jc.PayloadUint("end_id")
	if p.EndID > 0 && p.StartID > p.EndID {
		return invalid(TypeBackfillAll, "start_id %d is after end_id %d", p.StartID, p.EndID)
	}
	p.Resume = resumePoint(jc.Job)
	if p.Resume != nil {
		h.log.Info("resuming backfill", "kind", p.Resume.Kind, "last_id", p.Resume.LastID, "processed", p.Resume.Processed)
	}

	jc.Progress("starting", 0, "Counting items")
	sum, err := h.coord.Run(jc.Ctx, p, func(ctx context.Context, cp backfill.Checkpoint) error {
		ok, err := jc.Checkpoint(cp.LastID, string(cp.Kind), percent(cp), cp)
		if err != nil {
			return err
		}
		if !ok {
			return errJobCanceled
		}
		return nil
	})
	reportItemErrors(jc, TypeBackfillAll, sum.Errors)
	if errors.Is(err, errJobCanceled) {
		h.log.Warn("backfill stopped; job canceled", "processed", sum.Processed, "last_id", sum.LastID)
		return nil
	}
	if err != nil {
		return err
	}
	jc.Succeed("done", sum)
	return nil
}

// resumePoint decodes the snapshot written by the last checkpoint of an unfinished run.
func resumePoint(job *domjobs.JobRun) *backfill.Checkpoint {
	if job == nil || job.Checkpoint == 0 || job.Status == domjobs.StatusSucceeded || len(job.Result) == 0 {
		return nil
	}
	var cp backfill.Checkpoint
	if err := json.Unmarshal(job.Result, &cp); err != nil || cp.Kind == "" || cp.LastID != job.Checkpoint {
		return nil
	}
	return &cp
}

// percent stays below 100 until the run succeeds.
func percent(cp backfill.Checkpoint) int {
	if cp.Total <= 0 {
		return 0
	}
	pct := int(int64(cp.Processed+cp.Skipped) * 100 / cp.Total)
	return min(max(pct, 0), 99)
}
