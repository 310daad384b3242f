package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/topicpulse-backend/internal/domain/classify"
	domjobs "github.com/yungbote/topicpulse-backend/internal/domain/jobs"
	"github.com/yungbote/topicpulse-backend/internal/platform/dbctx"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
)

type JobRunRepo interface {
	Create(dbc dbctx.Context, jobs []*domjobs.JobRun) ([]*domjobs.JobRun, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domjobs.JobRun, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domjobs.JobRun, error)
	GetLatestByEntity(dbc dbctx.Context, entityType string, entityID string, jobType string) (*domjobs.JobRun, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error)
	// MarkRunning moves a job to running and bumps attempts unless it is already terminal.
	MarkRunning(dbc dbctx.Context, id uuid.UUID) (bool, error)
	Heartbeat(dbc dbctx.Context, id uuid.UUID) error
	HasRunnableForEntity(dbc dbctx.Context, entityType string, entityID string, jobType string) (bool, error)
}

type jobRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return &jobRunRepo{
		db:  db,
		log: baseLog.With("repo", "JobRunRepo"),
	}
}

func (r *jobRunRepo) Create(dbc dbctx.Context, jobs []*domjobs.JobRun) ([]*domjobs.JobRun, error) {
	if len(jobs) == 0 {
		return []*domjobs.JobRun{}, nil
	}
	now := time.Now().UTC()
	for _, j := range jobs {
		if j.CreatedAt.IsZero() {
			j.CreatedAt = now
		}
		if j.UpdatedAt.IsZero() {
			j.UpdatedAt = j.CreatedAt
		}
	}
	if err := dbc.Or(r.db).WithContext(dbc.Context()).Create(&jobs).Error; err != nil {
		return nil, classify.MapStoreError("JobRunRepo.Create", err)
	}
	return jobs, nil
}

func (r *jobRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domjobs.JobRun, error) {
	var job domjobs.JobRun
	if err := dbc.Or(r.db).WithContext(dbc.Context()).
		Where("id = ?", id).
		First(&job).Error; err != nil {
		return nil, classify.MapStoreError("JobRunRepo.GetByID", err)
	}
	return &job, nil
}

func (r *jobRunRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domjobs.JobRun, error) {
	var out []*domjobs.JobRun
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.Or(r.db).WithContext(dbc.Context()).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, classify.MapStoreError("JobRunRepo.GetByIDs", err)
	}
	return out, nil
}

func (r *jobRunRepo) GetLatestByEntity(dbc dbctx.Context, entityType string, entityID string, jobType string) (*domjobs.JobRun, error) {
	if entityID == "" || entityType == "" || jobType == "" {
		return nil, nil
	}
	var job domjobs.JobRun
	err := dbc.Or(r.db).WithContext(dbc.Context()).
		Where("entity_type = ? AND entity_id = ? AND job_type = ?", entityType, entityID, jobType).
		Order("created_at DESC").
		Limit(1).
		Find(&job).Error
	if err != nil {
		return nil, classify.MapStoreError("JobRunRepo.GetLatestByEntity", err)
	}
	if job.ID == uuid.Nil {
		return nil, nil
	}
	return &job, nil
}

func (r *jobRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	err := dbc.Or(r.db).WithContext(dbc.Context()).
		Model(&domjobs.JobRun{}).
		Where("id = ?", id).
		Updates(updates).Error
	return classify.MapStoreError("JobRunRepo.UpdateFields", err)
}

func (r *jobRunRepo) UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}

	q := dbc.Or(r.db).WithContext(dbc.Context()).
		Model(&domjobs.JobRun{}).
		Where("id = ?", id)
	if len(disallowedStatuses) == 1 {
		q = q.Where("status <> ?", disallowedStatuses[0])
	} else if len(disallowedStatuses) > 1 {
		q = q.Where("status NOT IN ?", disallowedStatuses)
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return false, classify.MapStoreError("JobRunRepo.UpdateFieldsUnlessStatus", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *jobRunRepo) MarkRunning(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	now := time.Now().UTC()
	res := dbc.Or(r.db).WithContext(dbc.Context()).
		Model(&domjobs.JobRun{}).
		Where("id = ? AND status NOT IN ?", id, []string{domjobs.StatusSucceeded, domjobs.StatusCanceled}).
		Updates(map[string]interface{}{
			"status":       domjobs.StatusRunning,
			"attempts":     gorm.Expr("attempts + 1"),
			"heartbeat_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return false, classify.MapStoreError("JobRunRepo.MarkRunning", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *jobRunRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	now := time.Now().UTC()
	err := dbc.Or(r.db).WithContext(dbc.Context()).
		Model(&domjobs.JobRun{}).
		Where("id = ? AND status = ?", id, domjobs.StatusRunning).
		Updates(map[string]interface{}{
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error
	return classify.MapStoreError("JobRunRepo.Heartbeat", err)
}

func (r *jobRunRepo) HasRunnableForEntity(dbc dbctx.Context, entityType string, entityID string, jobType string) (bool, error) {
	if entityID == "" || entityType == "" || jobType == "" {
		return false, nil
	}
	var count int64
	err := dbc.Or(r.db).WithContext(dbc.Context()).
		Model(&domjobs.JobRun{}).
		Where("entity_type = ? AND entity_id = ? AND job_type = ? AND status IN ?",
			entityType, entityID, jobType, []string{domjobs.StatusQueued, domjobs.StatusRunning},
		).
		Count(&count).Error
	if err != nil {
		return false, classify.MapStoreError("JobRunRepo.HasRunnableForEntity", err)
	}
	return count > 0, nil
}
