package association

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	assocrepo "github.com/yungbote/topicpulse-backend/internal/data/repos/association"
	catalogrepo "github.com/yungbote/topicpulse-backend/internal/data/repos/catalog"
	contentrepo "github.com/yungbote/topicpulse-backend/internal/data/repos/content"
	"github.com/yungbote/topicpulse-backend/internal/domain/catalog"
	"github.com/yungbote/topicpulse-backend/internal/domain/content"
	"github.com/yungbote/topicpulse-backend/internal/platform/dbctx"
	"github.com/yungbote/topicpulse-backend/internal/platform/envutil"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
)

type RangeConfig struct {
	BatchSize   int
	Concurrency int
}

func RangeConfigFromEnv() RangeConfig {
	return RangeConfig{
		BatchSize:   envutil.Int("BACKFILL_BATCH_SIZE", 500),
		Concurrency: envutil.Int("SYNC_CONCURRENCY", 4),
	}
}

type TagRangeParams struct {
	TagID uint64
	Kind  content.Kind // empty means every kind
	From  time.Time
	To    time.Time
}

type RangeSummary struct {
	Scanned int         `json:"scanned"`
	Matched int         `json:"matched"`
	Synced  int         `json:"synced"`
	Errors  []ItemError `json:"errors"`
}

func (s *RangeSummary) add(o RangeSummary) {
	s.Scanned += o.Scanned
	s.Matched += o.Matched
	s.Synced += o.Synced
	s.Errors = append(s.Errors, o.Errors...)
}

// RangeService runs the catalog-change jobs: each walks a set of items and re-syncs them.
// Items are processed concurrently; one item's failure is recorded and never stops the walk.
type RangeService interface {
	TagRangeByNewTag(ctx context.Context, p TagRangeParams) (RangeSummary, error)
	UntagRemovedTag(ctx context.Context, tagName string) (RangeSummary, error)
	ResyncTopicFromTags(ctx context.Context, topicID uint64, lookbackDays int) (RangeSummary, error)
}

type rangeService struct {
	log     *logger.Logger
	cfg     RangeConfig
	tags    catalogrepo.TagRepo
	items   contentrepo.ItemRepo
	tagging contentrepo.TaggingRepo
	assoc   assocrepo.AssociationRepo
	topics  TopicSource
	catalog CatalogSource
	retag   Retagger
	now     func() time.Time
}

func NewRangeService(
	baseLog *logger.Logger,
	cfg RangeConfig,
	tags catalogrepo.TagRepo,
	items contentrepo.ItemRepo,
	tagging contentrepo.TaggingRepo,
	assoc assocrepo.AssociationRepo,
	topics TopicSource,
	cat CatalogSource,
	retag Retagger,
) RangeService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &rangeService{
		log:     baseLog.With("service", "AssociationRangeService"),
		cfg:     cfg,
		tags:    tags,
		items:   items,
		tagging: tagging,
		assoc:   assoc,
		topics:  topics,
		catalog: cat,
		retag:   retag,
		now:     time.Now,
	}
}

func kindsOrAll(k content.Kind) []content.Kind {
	if k == "" {
		return content.AllKinds()
	}
	return []content.Kind{k}
}

func (s *rangeService) TagRangeByNewTag(ctx context.Context, p TagRangeParams) (RangeSummary, error) {
	var sum RangeSummary
	tag, err := s.tags.GetByID(dbctx.Context{Ctx: ctx}, p.TagID)
	if err != nil {
		return sum, err
	}
	cat, err := s.catalog.Get(ctx)
	if err != nil {
		return sum, err
	}
	topics, err := s.retag.Topics(ctx)
	if err != nil {
		return sum, err
	}
	to := p.To
	if to.IsZero() {
		to = s.now()
	}
	log := s.log.With("job", "tag_range_by_new_tag", "tag", tag.Name)

	for _, kind := range kindsOrAll(p.Kind) {
		var after uint64
		for {
			if err := ctx.Err(); err != nil {
				return sum, err
			}
			ids, err := s.items.IDsPublishedBetween(dbctx.Context{Ctx: ctx}, kind, p.From, to, after, s.cfg.BatchSize)
			if err != nil {
				return sum, err
			}
			if len(ids) == 0 {
				break
			}
			after = ids[len(ids)-1]
			page := s.each(ctx, kind, ids, func(ctx context.Context, ref content.Ref, out *RangeSummary) error {
				item, err := s.items.Get(dbctx.Context{Ctx: ctx}, ref)
				if err != nil {
					return err
				}
				added := false
				if cat.Match(item.TextFields().Values(), &tag.ID).Has(tag.Name) {
					ok, err := s.retag.AddTag(ctx, ref, tag.Name, content.ScopeBody)
					if err != nil {
						return err
					}
					added = added || ok
				}
				if cat.Match(item.TitleFields().Values(), &tag.ID).Has(tag.Name) {
					ok, err := s.retag.AddTag(ctx, ref, tag.Name, content.ScopeTitle)
					if err != nil {
						return err
					}
					added = added || ok
				}
				if !added {
					return nil
				}
				out.Matched++
				if _, err := s.retag.SyncCurrent(ctx, ref, topics); err != nil {
					return err
				}
				out.Synced++
				return nil
			})
			sum.add(page)
		}
	}
	log.Info("tag range complete", "scanned", sum.Scanned, "matched", sum.Matched, "errors", len(sum.Errors))
	return sum, nil
}

func (s *rangeService) UntagRemovedTag(ctx context.Context, tagName string) (RangeSummary, error) {
	var sum RangeSummary
	refs, err := s.retag.RemoveTag(ctx, tagName)
	if err != nil {
		return sum, err
	}
	topics, err := s.retag.Topics(ctx)
	if err != nil {
		return sum, err
	}
	byKind := map[content.Kind][]uint64{}
	for _, ref := range refs {
		byKind[ref.Kind] = append(byKind[ref.Kind], ref.ID)
	}
	for _, kind := range content.AllKinds() {
		ids := byKind[kind]
		for start := 0; start < len(ids); start += s.cfg.BatchSize {
			if err := ctx.Err(); err != nil {
				return sum, err
			}
			end := min(start+s.cfg.BatchSize, len(ids))
			sum.add(s.resync(ctx, kind, ids[start:end], topics))
		}
	}
	sum.Matched = len(refs)
	s.log.Info("untag complete", "tag", tagName, "items", len(refs), "errors", len(sum.Errors))
	return sum, nil
}

// ResyncTopicFromTags re-syncs items published within the lookback whose body tags intersect the
// topic's tags, plus every item currently linked to the topic regardless of age.
func (s *rangeService) ResyncTopicFromTags(ctx context.Context, topicID uint64, lookbackDays int) (RangeSummary, error) {
	var sum RangeSummary
	entry, err := s.topics.GetEntry(dbctx.Context{Ctx: ctx}, topicID)
	if err != nil {
		return sum, err
	}
	topics, err := s.topics.ListEntries(dbctx.Context{Ctx: ctx})
	if err != nil {
		return sum, err
	}
	var since time.Time
	if lookbackDays > 0 {
		since = s.now().UTC().AddDate(0, 0, -lookbackDays)
	}
	for _, kind := range content.AllKinds() {
		seen := map[uint64]bool{}
		var after uint64
		for {
			if err := ctx.Err(); err != nil {
				return sum, err
			}
			ids, err := s.tagging.IDsWithAnyTag(dbctx.Context{Ctx: ctx}, kind, entry.TagNames, since, after, s.cfg.BatchSize)
			if err != nil {
				return sum, err
			}
			if len(ids) == 0 {
				break
			}
			after = ids[len(ids)-1]
			for _, id := range ids {
				seen[id] = true
			}
			sum.add(s.resync(ctx, kind, ids, topics))
		}
		after = 0
		for {
			if err := ctx.Err(); err != nil {
				return sum, err
			}
			ids, err := s.assoc.ContentIDsForTopic(dbctx.Context{Ctx: ctx}, kind, topicID, after, s.cfg.BatchSize)
			if err != nil {
				return sum, err
			}
			if len(ids) == 0 {
				break
			}
			after = ids[len(ids)-1]
			fresh := ids[:0:0]
			for _, id := range ids {
				if !seen[id] {
					fresh = append(fresh, id)
				}
			}
			sum.add(s.resync(ctx, kind, fresh, topics))
		}
	}
	s.log.Info("topic resync complete", "topic_id", topicID, "topic", entry.Name, "synced", sum.Synced, "errors", len(sum.Errors))
	return sum, nil
}

func (s *rangeService) resync(ctx context.Context, kind content.Kind, ids []uint64, topics []catalog.TopicEntry) RangeSummary {
	return s.each(ctx, kind, ids, func(ctx context.Context, ref content.Ref, out *RangeSummary) error {
		if _, err := s.retag.SyncCurrent(ctx, ref, topics); err != nil {
			return err
		}
		out.Synced++
		return nil
	})
}

// each fans fn out over ids with bounded concurrency and merges the per-item outcomes.
func (s *rangeService) each(ctx context.Context, kind content.Kind, ids []uint64, fn func(context.Context, content.Ref, *RangeSummary) error) RangeSummary {
	var (
		mu  sync.Mutex
		sum RangeSummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, id := range ids {
		ref := content.Ref{Kind: kind, ID: id}
		g.Go(func() error {
			var local RangeSummary
			trace, err := Isolate(func() error { return fn(gctx, ref, &local) })
			local.Scanned = 1
			if err != nil {
				s.log.Warn("item skipped", "content", ref.String(), "error", err)
				local.Errors = append(local.Errors, ItemError{Kind: kind, ID: id, Message: err.Error(), Trace: trace})
			}
			mu.Lock()
			sum.add(local)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return sum
}
