package content

import (
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/topicpulse-backend/internal/domain/classify"
	"github.com/yungbote/topicpulse-backend/internal/domain/content"
	"github.com/yungbote/topicpulse-backend/internal/platform/dbctx"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
)

type ItemRepo interface {
	Get(dbc dbctx.Context, ref content.Ref) (content.Item, error)
	// Count reports items of kind with id in [startID, endID]; endID 0 means unbounded.
	Count(dbc dbctx.Context, kind content.Kind, startID, endID uint64) (int64, error)
	// NextIDs returns up to limit ids greater than afterID and at most endID (0 = unbounded), ascending.
	NextIDs(dbc dbctx.Context, kind content.Kind, afterID, endID uint64, limit int) ([]uint64, error)
	// IDsPublishedBetween pages ascending ids whose published_at falls in [from, to).
	IDsPublishedBetween(dbc dbctx.Context, kind content.Kind, from, to time.Time, afterID uint64, limit int) ([]uint64, error)
	UpdateEngagement(dbc dbctx.Context, ref content.Ref, metrics map[string]int64) error
	UpdateSentiment(dbc dbctx.Context, ref content.Ref, polarity string, score, confidence *float64) error
}

type itemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewItemRepo(db *gorm.DB, baseLog *logger.Logger) ItemRepo {
	return &itemRepo{db: db, log: baseLog.With("repo", "ItemRepo")}
}

func (r *itemRepo) Get(dbc dbctx.Context, ref content.Ref) (content.Item, error) {
	src, err := sourceFor(ref.Kind)
	if err != nil {
		return nil, classify.Wrap(classify.CodeValidation, "ItemRepo.Get", err)
	}
	item := src.newModel()
	q := dbc.Or(r.db).WithContext(dbc.Context()).Where("id = ?", ref.ID)
	if src.network != "" {
		q = q.Where("network = ?", src.network)
	}
	if err := q.First(item).Error; err != nil {
		return nil, classify.MapStoreError("ItemRepo.Get", err)
	}
	return item, nil
}

func (r *itemRepo) Count(dbc dbctx.Context, kind content.Kind, startID, endID uint64) (int64, error) {
	src, err := sourceFor(kind)
	if err != nil {
		return 0, classify.Wrap(classify.CodeValidation, "ItemRepo.Count", err)
	}
	q := src.from(dbc.Or(r.db).WithContext(dbc.Context()))
	if startID > 0 {
		q = q.Where("c.id >= ?", startID)
	}
	if endID > 0 {
		q = q.Where("c.id <= ?", endID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, classify.MapStoreError("ItemRepo.Count", err)
	}
	return n, nil
}

func (r *itemRepo) NextIDs(dbc dbctx.Context, kind content.Kind, afterID, endID uint64, limit int) ([]uint64, error) {
	src, err := sourceFor(kind)
	if err != nil {
		return nil, classify.Wrap(classify.CodeValidation, "ItemRepo.NextIDs", err)
	}
	if limit <= 0 {
		return []uint64{}, nil
	}
	q := src.from(dbc.Or(r.db).WithContext(dbc.Context())).Where("c.id > ?", afterID)
	if endID > 0 {
		q = q.Where("c.id <= ?", endID)
	}
	var ids []uint64
	if err := q.Order("c.id ASC").Limit(limit).Pluck("c.id", &ids).Error; err != nil {
		return nil, classify.MapStoreError("ItemRepo.NextIDs", err)
	}
	return ids, nil
}

func (r *itemRepo) IDsPublishedBetween(dbc dbctx.Context, kind content.Kind, from, to time.Time, afterID uint64, limit int) ([]uint64, error) {
	src, err := sourceFor(kind)
	if err != nil {
		return nil, classify.Wrap(classify.CodeValidation, "ItemRepo.IDsPublishedBetween", err)
	}
	if limit <= 0 {
		return []uint64{}, nil
	}
	q := src.from(dbc.Or(r.db).WithContext(dbc.Context())).Where("c.id > ?", afterID)
	if !from.IsZero() {
		q = q.Where("c.published_at >= ?", from.UTC())
	}
	if !to.IsZero() {
		q = q.Where("c.published_at < ?", to.UTC())
	}
	var ids []uint64
	if err := q.Order("c.id ASC").Limit(limit).Pluck("c.id", &ids).Error; err != nil {
		return nil, classify.MapStoreError("ItemRepo.IDsPublishedBetween", err)
	}
	return ids, nil
}

func (r *itemRepo) UpdateEngagement(dbc dbctx.Context, ref content.Ref, metrics map[string]int64) error {
	const op = "ItemRepo.UpdateEngagement"
	src, err := sourceFor(ref.Kind)
	if err != nil {
		return classify.Wrap(classify.CodeValidation, op, err)
	}
	allowed := map[string]bool{}
	for _, col := range content.MetricColumns(ref.Kind) {
		allowed[col] = true
	}
	updates := map[string]interface{}{"updated_at": time.Now().UTC()}
	for col, v := range metrics {
		if !allowed[col] {
			return classify.NewError(classify.CodeValidation, op, "unknown metric "+col, nil)
		}
		updates[col] = v
	}
	return r.updateRow(dbc, src, ref.ID, updates, op)
}

func (r *itemRepo) UpdateSentiment(dbc dbctx.Context, ref content.Ref, polarity string, score, confidence *float64) error {
	const op = "ItemRepo.UpdateSentiment"
	src, err := sourceFor(ref.Kind)
	if err != nil {
		return classify.Wrap(classify.CodeValidation, op, err)
	}
	return r.updateRow(dbc, src, ref.ID, map[string]interface{}{
		"polarity":             polarity,
		"sentiment_score":      score,
		"sentiment_confidence": confidence,
		"updated_at":           time.Now().UTC(),
	}, op)
}

func (r *itemRepo) updateRow(dbc dbctx.Context, src source, id uint64, updates map[string]interface{}, op string) error {
	q := dbc.Or(r.db).WithContext(dbc.Context()).Table(src.table).Where("id = ?", id)
	if src.network != "" {
		q = q.Where("network = ?", src.network)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return classify.MapStoreError(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return classify.NewError(classify.CodeNotFound, op, "content item not found", nil)
	}
	return nil
}
