package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	jobsrepo "github.com/yungbote/topicpulse-backend/internal/data/repos/jobs"
	"github.com/yungbote/topicpulse-backend/internal/domain/classify"
	domjobs "github.com/yungbote/topicpulse-backend/internal/domain/jobs"
	"github.com/yungbote/topicpulse-backend/internal/platform/ctxutil"
	"github.com/yungbote/topicpulse-backend/internal/platform/dbctx"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
)

/*
Context is the execution handle for a single job run.
It wraps:
	- the request-scoped context.Context
	- the job_run row held in memory
	- the only sanctioned ways to report progress, checkpoint, or terminate

Handlers never touch job_run directly. Every write is guarded so a canceled
job is never overwritten.
*/
type Context struct {
	Ctx     context.Context
	DB      *gorm.DB
	Job     *domjobs.JobRun
	Repo    jobsrepo.JobRunRepo
	Log     *logger.Logger
	payload map[string]any
}

func NewContext(ctx context.Context, db *gorm.DB, job *domjobs.JobRun, repo jobsrepo.JobRunRepo, baseLog *logger.Logger) *Context {
	c := &Context{
		Ctx:  ctx,
		DB:   db,
		Job:  job,
		Repo: repo,
	}
	if baseLog != nil && job != nil {
		c.Log = baseLog.With("job_id", job.ID.String(), "job_type", job.JobType)
	} else {
		c.Log = baseLog
	}
	_ = c.decodePayload()
	c.applyTraceData()
	return c
}

// decodePayload leaves an empty map behind on malformed JSON; handlers validate required fields.
func (c *Context) decodePayload() error {
	if c.Job == nil || len(c.Job.Payload) == 0 {
		c.payload = map[string]any{}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil || m == nil {
		c.payload = map[string]any{}
		return err
	}
	c.payload = m
	return nil
}

func (c *Context) applyTraceData() {
	if c.Ctx == nil {
		return
	}
	td := ctxutil.FromPayload(c.Payload())
	if td == nil {
		return
	}
	c.Ctx = ctxutil.WithTraceData(c.Ctx, td)
	if c.Log != nil {
		c.Log = c.Log.With(td.LogFields()...)
	}
}

// Payload never returns nil.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

// DecodePayload re-decodes the raw payload into a typed struct.
func (c *Context) DecodePayload(v any) error {
	if c.Job == nil || len(c.Job.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(c.Job.Payload, v)
}

func (c *Context) PayloadString(key string) string {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// PayloadUint accepts JSON numbers and numeric strings.
func (c *Context) PayloadUint(key string) (uint64, bool) {
	switch v := c.Payload()[key].(type) {
	case float64:
		if v < 0 || v != float64(uint64(v)) {
			return 0, false
		}
		return uint64(v), true
	case string:
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func (c *Context) PayloadInt(key string, def int) int {
	switch v := c.Payload()[key].(type) {
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

// PayloadTime accepts RFC3339 timestamps and YYYY-MM-DD dates.
func (c *Context) PayloadTime(key string) (time.Time, bool) {
	s := c.PayloadString(key)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.PayloadString(key))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

func (c *Context) ctx() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}
	return c.Ctx
}

func (c *Context) write(updates map[string]interface{}) bool {
	ok, err := c.tryWrite(updates)
	return ok && err == nil
}

// tryWrite reports false with a nil error when the row is canceled.
func (c *Context) tryWrite(updates map[string]interface{}) (bool, error) {
	if c.Repo == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return true, nil
	}
	ok, err := c.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: c.ctx()}, c.Job.ID, []string{domjobs.StatusCanceled}, updates)
	if err != nil {
		if c.Log != nil {
			c.Log.Warn("job_run update failed", "error", err)
		}
		return false, err
	}
	return ok, nil
}

// Progress records a non-terminal stage update.
func (c *Context) Progress(stage string, pct int, msg string) {
	if c == nil {
		return
	}
	now := time.Now().UTC()
	if !c.write(map[string]interface{}{
		"stage":        stage,
		"progress":     pct,
		"message":      msg,
		"heartbeat_at": now,
		"updated_at":   now,
	}) {
		return
	}
	if c.Job != nil {
		c.Job.Stage = stage
		c.Job.Progress = pct
		c.Job.Message = msg
		c.Job.HeartbeatAt = &now
		c.Job.UpdatedAt = now
	}
}

// Checkpoint persists the last fully processed id together with a resumable snapshot.
// It reports false when the job was canceled underneath the handler. A failed write is
// returned as a transient error and leaves the previous checkpoint in place.
func (c *Context) Checkpoint(lastID uint64, stage string, pct int, snapshot any) (bool, error) {
	if c == nil {
		return false, nil
	}
	now := time.Now().UTC()
	var res datatypes.JSON
	if snapshot != nil {
		b, _ := json.Marshal(snapshot)
		res = datatypes.JSON(b)
	}
	ok, err := c.tryWrite(map[string]interface{}{
		"checkpoint":   lastID,
		"stage":        stage,
		"progress":     pct,
		"result":       res,
		"heartbeat_at": now,
		"updated_at":   now,
	})
	if err != nil {
		return false, classify.Wrap(classify.CodeTransientExternal, "job_run.checkpoint", err)
	}
	if !ok {
		return false, nil
	}
	if c.Job != nil {
		c.Job.Checkpoint = lastID
		c.Job.Stage = stage
		c.Job.Progress = pct
		c.Job.Result = res
		c.Job.HeartbeatAt = &now
		c.Job.UpdatedAt = now
	}
	return true, nil
}

// RecordRetry notes a transient failure without leaving the running state.
func (c *Context) RecordRetry(stage string, err error) {
	if c == nil || err == nil {
		return
	}
	now := time.Now().UTC()
	if !c.write(map[string]interface{}{
		"stage":         stage,
		"error":         err.Error(),
		"last_error_at": now,
		"updated_at":    now,
	}) {
		return
	}
	if c.Job != nil {
		c.Job.Stage = stage
		c.Job.Error = err.Error()
		c.Job.LastErrorAt = &now
	}
}

// Fail marks the run terminally failed.
func (c *Context) Fail(stage string, err error) {
	if c == nil {
		return
	}
	now := time.Now().UTC()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if !c.write(map[string]interface{}{
		"status":        domjobs.StatusFailed,
		"stage":         stage,
		"message":       "",
		"error":         msg,
		"last_error_at": now,
		"updated_at":    now,
	}) {
		return
	}
	if c.Job != nil {
		c.Job.Status = domjobs.StatusFailed
		c.Job.Stage = stage
		c.Job.Message = ""
		c.Job.Error = msg
		c.Job.LastErrorAt = &now
		c.Job.UpdatedAt = now
	}
	if c.Log != nil {
		c.Log.Warn("job failed", "stage", stage, "error", msg)
	}
}

// Succeed marks the run terminally succeeded and stores result as JSON.
func (c *Context) Succeed(finalStage string, result any) {
	if c == nil {
		return
	}
	now := time.Now().UTC()
	var res datatypes.JSON
	if result != nil {
		b, _ := json.Marshal(result)
		res = datatypes.JSON(b)
	}
	if !c.write(map[string]interface{}{
		"status":       domjobs.StatusSucceeded,
		"stage":        finalStage,
		"progress":     100,
		"message":      "",
		"error":        "",
		"result":       res,
		"heartbeat_at": now,
		"updated_at":   now,
	}) {
		return
	}
	if c.Job != nil {
		c.Job.Status = domjobs.StatusSucceeded
		c.Job.Stage = finalStage
		c.Job.Progress = 100
		c.Job.Message = ""
		c.Job.Error = ""
		c.Job.Result = res
		c.Job.HeartbeatAt = &now
		c.Job.UpdatedAt = now
	}
}
