package association

import (
	"context"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"gorm.io/gorm"

	assocrepo "github.com/yungbote/topicpulse-backend/internal/data/repos/association"
	"github.com/yungbote/topicpulse-backend/internal/domain/catalog"
	"github.com/yungbote/topicpulse-backend/internal/domain/classify"
	"github.com/yungbote/topicpulse-backend/internal/domain/content"
	"github.com/yungbote/topicpulse-backend/internal/observability"
	"github.com/yungbote/topicpulse-backend/internal/platform/dbctx"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
	"github.com/yungbote/topicpulse-backend/internal/tagging"
)

type SyncResult struct {
	LinkedTopicCount      int `json:"linked_topic_count"`
	LinkedTitleTopicCount int `json:"linked_title_topic_count"`
	Inserted              int `json:"inserted"`
	Deleted               int `json:"deleted"`
}

// Writes reports whether the sync touched the store at all.
func (r SyncResult) Writes() int { return r.Inserted + r.Deleted }

// Links is a preloaded snapshot of an item's current association rows.
type Links struct {
	Body  []uint64
	Title []uint64
}

// Synchronizer reconciles an item's topic_association rows with the topics its tags imply.
// Syncs of different items may run concurrently; two syncs of the same item are last-write-wins.
type Synchronizer interface {
	Sync(ctx context.Context, ref content.Ref, bodyTags, titleTags tagging.Set, topics []catalog.TopicEntry) (SyncResult, error)
	// SyncWith skips the read of current rows and diffs against links instead.
	SyncWith(ctx context.Context, ref content.Ref, bodyTags, titleTags tagging.Set, topics []catalog.TopicEntry, links Links) (SyncResult, error)
}

type synchronizer struct {
	db      *gorm.DB
	log     *logger.Logger
	assoc   assocrepo.AssociationRepo
	metrics *observability.Metrics
	tracer  trace.Tracer
}

func NewSynchronizer(db *gorm.DB, baseLog *logger.Logger, assoc assocrepo.AssociationRepo, metrics *observability.Metrics) Synchronizer {
	return &synchronizer{
		db:      db,
		log:     baseLog.With("service", "AssociationSynchronizer"),
		assoc:   assoc,
		metrics: metrics,
		tracer:  observability.Tracer("association"),
	}
}

func (s *synchronizer) Sync(ctx context.Context, ref content.Ref, bodyTags, titleTags tagging.Set, topics []catalog.TopicEntry) (SyncResult, error) {
	return s.sync(ctx, ref, bodyTags, titleTags, topics, nil)
}

func (s *synchronizer) SyncWith(ctx context.Context, ref content.Ref, bodyTags, titleTags tagging.Set, topics []catalog.TopicEntry, links Links) (SyncResult, error) {
	return s.sync(ctx, ref, bodyTags, titleTags, topics, &links)
}

func (s *synchronizer) sync(ctx context.Context, ref content.Ref, bodyTags, titleTags tagging.Set, topics []catalog.TopicEntry, links *Links) (SyncResult, error) {
	ctx, span := s.tracer.Start(ctx, "association.sync", trace.WithAttributes(
		attribute.String("content.kind", string(ref.Kind)),
		attribute.Int64("content.id", int64(ref.ID)),
	))
	defer span.End()

	desiredBody := DesiredTopics(bodyTags, topics)
	desiredTitle := DesiredTopics(titleTags, topics)
	res := SyncResult{LinkedTopicCount: len(desiredBody), LinkedTitleTopicCount: len(desiredTitle)}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		for _, idx := range content.Scopes() {
			desired := desiredBody
			if idx == content.ScopeTitle {
				desired = desiredTitle
			}
			var current []uint64
			if links != nil {
				current = links.Body
				if idx == content.ScopeTitle {
					current = links.Title
				}
			} else {
				var err error
				if current, err = s.assoc.TopicIDs(dbc, ref, idx); err != nil {
					return err
				}
			}
			add, drop := diff(current, desired)
			deleted, err := s.assoc.Delete(dbc, ref, idx, drop)
			if err != nil {
				return err
			}
			inserted, err := s.assoc.Insert(dbc, ref, idx, add)
			if err != nil {
				return err
			}
			res.Inserted += inserted
			res.Deleted += deleted
			s.metrics.AddAssociationWrites(string(idx), inserted, deleted)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return SyncResult{}, classify.MapStoreError("association.sync", err)
	}
	span.SetAttributes(
		attribute.Int("association.inserted", res.Inserted),
		attribute.Int("association.deleted", res.Deleted),
	)
	if res.Writes() > 0 {
		s.log.Debug("associations reconciled",
			"content", ref.String(),
			"body_topics", res.LinkedTopicCount,
			"title_topics", res.LinkedTitleTopicCount,
			"inserted", res.Inserted,
			"deleted", res.Deleted,
		)
	}
	return res, nil
}

// DesiredTopics returns, ascending, the ids of every topic whose tag set shares a name with
// matched. Names compare case-folded. Inactive topics are included.
func DesiredTopics(matched tagging.Set, topics []catalog.TopicEntry) []uint64 {
	if matched.Len() == 0 || len(topics) == 0 {
		return []uint64{}
	}
	fold := cases.Fold()
	want := make(map[string]struct{}, matched.Len())
	for name := range matched {
		want[fold.String(strings.TrimSpace(name))] = struct{}{}
	}
	out := make([]uint64, 0)
	for _, t := range topics {
		for _, name := range t.TagNames {
			if _, ok := want[fold.String(strings.TrimSpace(name))]; ok {
				out = append(out, t.ID)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func diff(current, desired []uint64) (add, drop []uint64) {
	have := make(map[uint64]bool, len(current))
	for _, id := range current {
		have[id] = true
	}
	want := make(map[uint64]bool, len(desired))
	for _, id := range desired {
		want[id] = true
		if !have[id] {
			add = append(add, id)
		}
	}
	for _, id := range current {
		if !want[id] {
			drop = append(drop, id)
		}
	}
	return add, drop
}
