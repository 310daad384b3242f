package association

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/topicpulse-backend/internal/domain/association"
	"github.com/yungbote/topicpulse-backend/internal/domain/classify"
	"github.com/yungbote/topicpulse-backend/internal/domain/content"
	"github.com/yungbote/topicpulse-backend/internal/platform/dbctx"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
)

type AssociationRepo interface {
	TopicIDs(dbc dbctx.Context, ref content.Ref, index content.Scope) ([]uint64, error)
	// TopicIDsMany preloads existing associations for a batch, keyed by content id.
	TopicIDsMany(dbc dbctx.Context, kind content.Kind, ids []uint64, index content.Scope) (map[uint64][]uint64, error)
	Insert(dbc dbctx.Context, ref content.Ref, index content.Scope, topicIDs []uint64) (int, error)
	Delete(dbc dbctx.Context, ref content.Ref, index content.Scope, topicIDs []uint64) (int, error)
	// ContentIDsForTopic pages ascending content ids of kind linked to topicID in either index.
	ContentIDsForTopic(dbc dbctx.Context, kind content.Kind, topicID uint64, afterID uint64, limit int) ([]uint64, error)
	CountForTopic(dbc dbctx.Context, topicID uint64, index content.Scope) (int64, error)
}

type associationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssociationRepo(db *gorm.DB, baseLog *logger.Logger) AssociationRepo {
	return &associationRepo{db: db, log: baseLog.With("repo", "AssociationRepo")}
}

func (r *associationRepo) TopicIDs(dbc dbctx.Context, ref content.Ref, index content.Scope) ([]uint64, error) {
	var ids []uint64
	if err := dbc.Or(r.db).WithContext(dbc.Context()).
		Model(&association.TopicAssociation{}).
		Where("association_index = ? AND kind = ? AND content_id = ?", index, ref.Kind, ref.ID).
		Order("topic_id ASC").
		Pluck("topic_id", &ids).Error; err != nil {
		return nil, classify.MapStoreError("AssociationRepo.TopicIDs", err)
	}
	return ids, nil
}

func (r *associationRepo) TopicIDsMany(dbc dbctx.Context, kind content.Kind, ids []uint64, index content.Scope) (map[uint64][]uint64, error) {
	out := make(map[uint64][]uint64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []association.TopicAssociation
	if err := dbc.Or(r.db).WithContext(dbc.Context()).
		Where("association_index = ? AND kind = ? AND content_id IN ?", index, kind, ids).
		Order("content_id ASC, topic_id ASC").
		Find(&rows).Error; err != nil {
		return nil, classify.MapStoreError("AssociationRepo.TopicIDsMany", err)
	}
	for _, id := range ids {
		out[id] = []uint64{}
	}
	for _, row := range rows {
		out[row.ContentID] = append(out[row.ContentID], row.TopicID)
	}
	return out, nil
}

func (r *associationRepo) Insert(dbc dbctx.Context, ref content.Ref, index content.Scope, topicIDs []uint64) (int, error) {
	if len(topicIDs) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	rows := make([]association.TopicAssociation, 0, len(topicIDs))
	for _, id := range topicIDs {
		rows = append(rows, association.TopicAssociation{
			Index:     index,
			Kind:      ref.Kind,
			ContentID: ref.ID,
			TopicID:   id,
			CreatedAt: now,
		})
	}
	res := dbc.Or(r.db).WithContext(dbc.Context()).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "association_index"}, {Name: "kind"}, {Name: "content_id"}, {Name: "topic_id"},
		},
		DoNothing: true,
	}).Create(&rows)
	if res.Error != nil {
		return 0, classify.MapStoreError("AssociationRepo.Insert", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (r *associationRepo) Delete(dbc dbctx.Context, ref content.Ref, index content.Scope, topicIDs []uint64) (int, error) {
	if len(topicIDs) == 0 {
		return 0, nil
	}
	res := dbc.Or(r.db).WithContext(dbc.Context()).
		Where("association_index = ? AND kind = ? AND content_id = ? AND topic_id IN ?", index, ref.Kind, ref.ID, topicIDs).
		Delete(&association.TopicAssociation{})
	if res.Error != nil {
		return 0, classify.MapStoreError("AssociationRepo.Delete", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (r *associationRepo) ContentIDsForTopic(dbc dbctx.Context, kind content.Kind, topicID uint64, afterID uint64, limit int) ([]uint64, error) {
	if limit <= 0 {
		return []uint64{}, nil
	}
	var ids []uint64
	if err := dbc.Or(r.db).WithContext(dbc.Context()).
		Model(&association.TopicAssociation{}).
		Distinct("content_id").
		Where("kind = ? AND topic_id = ? AND content_id > ?", kind, topicID, afterID).
		Order("content_id ASC").
		Limit(limit).
		Pluck("content_id", &ids).Error; err != nil {
		return nil, classify.MapStoreError("AssociationRepo.ContentIDsForTopic", err)
	}
	return ids, nil
}

func (r *associationRepo) CountForTopic(dbc dbctx.Context, topicID uint64, index content.Scope) (int64, error) {
	var n int64
	if err := dbc.Or(r.db).WithContext(dbc.Context()).
		Model(&association.TopicAssociation{}).
		Where("topic_id = ? AND association_index = ?", topicID, index).
		Count(&n).Error; err != nil {
		return 0, classify.MapStoreError("AssociationRepo.CountForTopic", err)
	}
	return n, nil
}
