package catalog

import (
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/topicpulse-backend/internal/domain/catalog"
	"github.com/yungbote/topicpulse-backend/internal/domain/classify"
	"github.com/yungbote/topicpulse-backend/internal/platform/dbctx"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
)

type TagRepo interface {
	ListAll(dbc dbctx.Context) ([]*catalog.Tag, error)
	GetByID(dbc dbctx.Context, id uint64) (*catalog.Tag, error)
	GetByName(dbc dbctx.Context, name string) (*catalog.Tag, error)
	Fingerprint(dbc dbctx.Context) (catalog.Fingerprint, error)
}

type tagRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTagRepo(db *gorm.DB, baseLog *logger.Logger) TagRepo {
	return &tagRepo{db: db, log: baseLog.With("repo", "TagRepo")}
}

func (r *tagRepo) ListAll(dbc dbctx.Context) ([]*catalog.Tag, error) {
	var out []*catalog.Tag
	if err := dbc.Or(r.db).WithContext(dbc.Context()).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, classify.MapStoreError("TagRepo.ListAll", err)
	}
	return out, nil
}

func (r *tagRepo) GetByID(dbc dbctx.Context, id uint64) (*catalog.Tag, error) {
	var tag catalog.Tag
	if err := dbc.Or(r.db).WithContext(dbc.Context()).
		Where("id = ?", id).
		First(&tag).Error; err != nil {
		return nil, classify.MapStoreError("TagRepo.GetByID", err)
	}
	return &tag, nil
}

func (r *tagRepo) GetByName(dbc dbctx.Context, name string) (*catalog.Tag, error) {
	var tag catalog.Tag
	if err := dbc.Or(r.db).WithContext(dbc.Context()).
		Where("LOWER(name) = LOWER(?)", name).
		Order("id ASC").
		First(&tag).Error; err != nil {
		return nil, classify.MapStoreError("TagRepo.GetByName", err)
	}
	return &tag, nil
}

func (r *tagRepo) Fingerprint(dbc dbctx.Context) (catalog.Fingerprint, error) {
	return fingerprintOf(dbc.Or(r.db).WithContext(dbc.Context()), &catalog.Tag{}, "updated_at")
}

// fingerprintOf selects the newest timestamp column directly so drivers that type
// aggregate results loosely (sqlite) still scan it as a time.
func fingerprintOf(tx *gorm.DB, model any, tsColumn string) (catalog.Fingerprint, error) {
	var fp catalog.Fingerprint
	if err := tx.Session(&gorm.Session{}).Model(model).Count(&fp.Count).Error; err != nil {
		return fp, classify.MapStoreError("fingerprint.count", err)
	}
	if fp.Count == 0 {
		return fp, nil
	}
	var latest []time.Time
	if err := tx.Session(&gorm.Session{}).Model(model).
		Order(tsColumn+" DESC").
		Limit(1).
		Pluck(tsColumn, &latest).Error; err != nil {
		return fp, classify.MapStoreError("fingerprint.latest", err)
	}
	if len(latest) > 0 {
		fp.UpdatedAt = latest[0].UTC()
	}
	return fp, nil
}
