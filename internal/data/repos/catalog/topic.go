package catalog

import (
	"gorm.io/gorm"

	"github.com/yungbote/topicpulse-backend/internal/domain/catalog"
	"github.com/yungbote/topicpulse-backend/internal/domain/classify"
	"github.com/yungbote/topicpulse-backend/internal/platform/dbctx"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
)

type TopicRepo interface {
	// ListEntries returns every topic, active or not, with its tag set resolved to names.
	ListEntries(dbc dbctx.Context) ([]catalog.TopicEntry, error)
	GetEntry(dbc dbctx.Context, id uint64) (*catalog.TopicEntry, error)
	Fingerprint(dbc dbctx.Context) (catalog.Fingerprint, error)
}

type topicRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTopicRepo(db *gorm.DB, baseLog *logger.Logger) TopicRepo {
	return &topicRepo{db: db, log: baseLog.With("repo", "TopicRepo")}
}

type topicTagRow struct {
	TopicID uint64
	TagID   uint64
	TagName string
}

func (r *topicRepo) ListEntries(dbc dbctx.Context) ([]catalog.TopicEntry, error) {
	tx := dbc.Or(r.db).WithContext(dbc.Context())
	var topics []catalog.Topic
	if err := tx.Order("id ASC").Find(&topics).Error; err != nil {
		return nil, classify.MapStoreError("TopicRepo.ListEntries", err)
	}
	return r.withTags(tx, topics)
}

func (r *topicRepo) GetEntry(dbc dbctx.Context, id uint64) (*catalog.TopicEntry, error) {
	tx := dbc.Or(r.db).WithContext(dbc.Context())
	var topic catalog.Topic
	if err := tx.Where("id = ?", id).First(&topic).Error; err != nil {
		return nil, classify.MapStoreError("TopicRepo.GetEntry", err)
	}
	entries, err := r.withTags(tx, []catalog.Topic{topic})
	if err != nil {
		return nil, err
	}
	return &entries[0], nil
}

func (r *topicRepo) withTags(tx *gorm.DB, topics []catalog.Topic) ([]catalog.TopicEntry, error) {
	out := make([]catalog.TopicEntry, 0, len(topics))
	if len(topics) == 0 {
		return out, nil
	}
	ids := make([]uint64, 0, len(topics))
	for _, t := range topics {
		ids = append(ids, t.ID)
	}
	var rows []topicTagRow
	if err := tx.Session(&gorm.Session{}).
		Table("topic_tag AS tt").
		Select("tt.topic_id AS topic_id, tt.tag_id AS tag_id, t.name AS tag_name").
		Joins("JOIN tag AS t ON t.id = tt.tag_id").
		Where("tt.topic_id IN ?", ids).
		Order("tt.topic_id ASC, t.id ASC").
		Scan(&rows).Error; err != nil {
		return nil, classify.MapStoreError("TopicRepo.withTags", err)
	}
	byTopic := make(map[uint64][]topicTagRow, len(topics))
	for _, row := range rows {
		byTopic[row.TopicID] = append(byTopic[row.TopicID], row)
	}
	for _, t := range topics {
		entry := catalog.TopicEntry{ID: t.ID, Name: t.Name, Active: t.Active}
		for _, row := range byTopic[t.ID] {
			entry.TagIDs = append(entry.TagIDs, row.TagID)
			entry.TagNames = append(entry.TagNames, row.TagName)
		}
		out = append(out, entry)
	}
	return out, nil
}

// Fingerprint folds topics and their tag links so editing either invalidates cached catalogs.
func (r *topicRepo) Fingerprint(dbc dbctx.Context) (catalog.Fingerprint, error) {
	tx := dbc.Or(r.db).WithContext(dbc.Context())
	topics, err := fingerprintOf(tx, &catalog.Topic{}, "updated_at")
	if err != nil {
		return topics, err
	}
	links, err := fingerprintOf(tx, &catalog.TopicTag{}, "created_at")
	if err != nil {
		return topics, err
	}
	out := catalog.Fingerprint{Count: topics.Count*1_000_003 + links.Count, UpdatedAt: topics.UpdatedAt}
	if links.UpdatedAt.After(out.UpdatedAt) {
		out.UpdatedAt = links.UpdatedAt
	}
	return out, nil
}
