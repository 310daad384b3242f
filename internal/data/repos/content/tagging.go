package content

import (
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/topicpulse-backend/internal/domain/classify"
	"github.com/yungbote/topicpulse-backend/internal/domain/content"
	"github.com/yungbote/topicpulse-backend/internal/platform/dbctx"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
)

// TaggingRepo owns content_tagging, each item's current tag list per scope.
type TaggingRepo interface {
	TagNames(dbc dbctx.Context, ref content.Ref, scope content.Scope) ([]string, error)
	TagNamesMany(dbc dbctx.Context, kind content.Kind, ids []uint64, scope content.Scope) (map[uint64][]string, error)
	// Replace reconciles the stored list with names: missing names are inserted, extra rows deleted.
	Replace(dbc dbctx.Context, ref content.Ref, scope content.Scope, names []string) (inserted int, deleted int, err error)
	Add(dbc dbctx.Context, ref content.Ref, scope content.Scope, name string) (bool, error)
	// RemoveName deletes name from every item's lists and returns the affected items.
	RemoveName(dbc dbctx.Context, name string) ([]content.Ref, error)
	// IDsWithAnyTag pages ascending ids of kind carrying any of names in the body scope,
	// restricted to items published at or after since when since is non-zero.
	IDsWithAnyTag(dbc dbctx.Context, kind content.Kind, names []string, since time.Time, afterID uint64, limit int) ([]uint64, error)
}

type taggingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTaggingRepo(db *gorm.DB, baseLog *logger.Logger) TaggingRepo {
	return &taggingRepo{db: db, log: baseLog.With("repo", "TaggingRepo")}
}

func (r *taggingRepo) TagNames(dbc dbctx.Context, ref content.Ref, scope content.Scope) ([]string, error) {
	var names []string
	if err := dbc.Or(r.db).WithContext(dbc.Context()).
		Model(&content.ContentTagging{}).
		Where("kind = ? AND content_id = ? AND scope = ?", ref.Kind, ref.ID, scope).
		Order("tag_name ASC").
		Pluck("tag_name", &names).Error; err != nil {
		return nil, classify.MapStoreError("TaggingRepo.TagNames", err)
	}
	return names, nil
}

func (r *taggingRepo) TagNamesMany(dbc dbctx.Context, kind content.Kind, ids []uint64, scope content.Scope) (map[uint64][]string, error) {
	out := make(map[uint64][]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []content.ContentTagging
	if err := dbc.Or(r.db).WithContext(dbc.Context()).
		Where("kind = ? AND scope = ? AND content_id IN ?", kind, scope, ids).
		Order("content_id ASC, tag_name ASC").
		Find(&rows).Error; err != nil {
		return nil, classify.MapStoreError("TaggingRepo.TagNamesMany", err)
	}
	for _, row := range rows {
		out[row.ContentID] = append(out[row.ContentID], row.TagName)
	}
	return out, nil
}

func (r *taggingRepo) Replace(dbc dbctx.Context, ref content.Ref, scope content.Scope, names []string) (int, int, error) {
	const op = "TaggingRepo.Replace"
	desired := make(map[string]bool, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			desired[n] = true
		}
	}
	inserted, deleted := 0, 0
	err := dbc.Or(r.db).WithContext(dbc.Context()).Transaction(func(tx *gorm.DB) error {
		var existing []string
		if err := tx.Model(&content.ContentTagging{}).
			Where("kind = ? AND content_id = ? AND scope = ?", ref.Kind, ref.ID, scope).
			Pluck("tag_name", &existing).Error; err != nil {
			return err
		}
		have := make(map[string]bool, len(existing))
		var stale []string
		for _, n := range existing {
			have[n] = true
			if !desired[n] {
				stale = append(stale, n)
			}
		}
		if len(stale) > 0 {
			res := tx.Where("kind = ? AND content_id = ? AND scope = ? AND tag_name IN ?", ref.Kind, ref.ID, scope, stale).
				Delete(&content.ContentTagging{})
			if res.Error != nil {
				return res.Error
			}
			deleted = int(res.RowsAffected)
		}
		missing := make([]string, 0, len(desired))
		for n := range desired {
			if !have[n] {
				missing = append(missing, n)
			}
		}
		if len(missing) == 0 {
			return nil
		}
		sort.Strings(missing)
		now := time.Now().UTC()
		rows := make([]content.ContentTagging, 0, len(missing))
		for _, n := range missing {
			rows = append(rows, content.ContentTagging{Kind: ref.Kind, ContentID: ref.ID, Scope: scope, TagName: n, CreatedAt: now})
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "kind"}, {Name: "content_id"}, {Name: "scope"}, {Name: "tag_name"}},
			DoNothing: true,
		}).Create(&rows)
		if res.Error != nil {
			return res.Error
		}
		inserted = int(res.RowsAffected)
		return nil
	})
	if err != nil {
		return 0, 0, classify.MapStoreError(op, err)
	}
	return inserted, deleted, nil
}

func (r *taggingRepo) Add(dbc dbctx.Context, ref content.Ref, scope content.Scope, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, classify.NewError(classify.CodeValidation, "TaggingRepo.Add", "blank tag name", nil)
	}
	row := content.ContentTagging{Kind: ref.Kind, ContentID: ref.ID, Scope: scope, TagName: name, CreatedAt: time.Now().UTC()}
	res := dbc.Or(r.db).WithContext(dbc.Context()).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kind"}, {Name: "content_id"}, {Name: "scope"}, {Name: "tag_name"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return false, classify.MapStoreError("TaggingRepo.Add", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *taggingRepo) RemoveName(dbc dbctx.Context, name string) ([]content.Ref, error) {
	const op = "TaggingRepo.RemoveName"
	var refs []content.Ref
	err := dbc.Or(r.db).WithContext(dbc.Context()).Transaction(func(tx *gorm.DB) error {
		var rows []content.ContentTagging
		if err := tx.Where("tag_name = ?", name).
			Order("kind ASC, content_id ASC").
			Find(&rows).Error; err != nil {
			return err
		}
		seen := map[content.Ref]bool{}
		for _, row := range rows {
			ref := content.Ref{Kind: row.Kind, ID: row.ContentID}
			if !seen[ref] {
				seen[ref] = true
				refs = append(refs, ref)
			}
		}
		return tx.Where("tag_name = ?", name).Delete(&content.ContentTagging{}).Error
	})
	if err != nil {
		return nil, classify.MapStoreError(op, err)
	}
	return refs, nil
}

func (r *taggingRepo) IDsWithAnyTag(dbc dbctx.Context, kind content.Kind, names []string, since time.Time, afterID uint64, limit int) ([]uint64, error) {
	if len(names) == 0 || limit <= 0 {
		return []uint64{}, nil
	}
	src, err := sourceFor(kind)
	if err != nil {
		return nil, classify.Wrap(classify.CodeValidation, "TaggingRepo.IDsWithAnyTag", err)
	}
	q := src.from(dbc.Or(r.db).WithContext(dbc.Context())).
		Where("c.id > ?", afterID).
		Where("c.id IN (?)", r.db.Session(&gorm.Session{NewDB: true}).
			Model(&content.ContentTagging{}).
			Select("content_id").
			Where("kind = ? AND scope = ? AND tag_name IN ?", kind, content.ScopeBody, names))
	if !since.IsZero() {
		q = q.Where("c.published_at >= ?", since.UTC())
	}
	var ids []uint64
	if err := q.Order("c.id ASC").Limit(limit).Pluck("c.id", &ids).Error; err != nil {
		return nil, classify.MapStoreError("TaggingRepo.IDsWithAnyTag", err)
	}
	return ids, nil
}
