package association

import (
	"context"
	"strings"

	contentrepo "github.com/yungbote/topicpulse-backend/internal/data/repos/content"
	"github.com/yungbote/topicpulse-backend/internal/domain/catalog"
	"github.com/yungbote/topicpulse-backend/internal/domain/classify"
	"github.com/yungbote/topicpulse-backend/internal/domain/content"
	"github.com/yungbote/topicpulse-backend/internal/observability"
	"github.com/yungbote/topicpulse-backend/internal/platform/dbctx"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
	"github.com/yungbote/topicpulse-backend/internal/tagging"
)

// CatalogSource hands out the current compiled tag catalog.
type CatalogSource interface {
	Get(ctx context.Context) (*tagging.Catalog, error)
}

type TopicSource interface {
	ListEntries(dbc dbctx.Context) ([]catalog.TopicEntry, error)
	GetEntry(dbc dbctx.Context, id uint64) (*catalog.TopicEntry, error)
}

type RetagResult struct {
	BodyTags        []string   `json:"body_tags"`
	TitleTags       []string   `json:"title_tags"`
	TaggingInserted int        `json:"tagging_inserted"`
	TaggingDeleted  int        `json:"tagging_deleted"`
	Sync            SyncResult `json:"sync"`
}

// Retagger derives an item's tag lists from its text and propagates them to topic associations.
type Retagger interface {
	// Retag returns a no_match result, with the cleared state applied, when neither scope matches.
	Retag(ctx context.Context, ref content.Ref) classify.Result[RetagResult]
	RetagWith(ctx context.Context, ref content.Ref, cat *tagging.Catalog, topics []catalog.TopicEntry) classify.Result[RetagResult]
	// SyncCurrent re-syncs associations from the tag lists already stored for ref.
	SyncCurrent(ctx context.Context, ref content.Ref, topics []catalog.TopicEntry) (SyncResult, error)
	AddTag(ctx context.Context, ref content.Ref, tagName string, scope content.Scope) (bool, error)
	RemoveTag(ctx context.Context, tagName string) ([]content.Ref, error)
	Topics(ctx context.Context) ([]catalog.TopicEntry, error)
}

type retagger struct {
	log     *logger.Logger
	items   contentrepo.ItemRepo
	tags    contentrepo.TaggingRepo
	catalog CatalogSource
	topics  TopicSource
	sync    Synchronizer
	metrics *observability.Metrics
}

func NewRetagger(
	baseLog *logger.Logger,
	items contentrepo.ItemRepo,
	tags contentrepo.TaggingRepo,
	cat CatalogSource,
	topics TopicSource,
	sync Synchronizer,
	metrics *observability.Metrics,
) Retagger {
	return &retagger{
		log:     baseLog.With("service", "Retagger"),
		items:   items,
		tags:    tags,
		catalog: cat,
		topics:  topics,
		sync:    sync,
		metrics: metrics,
	}
}

func (r *retagger) Topics(ctx context.Context) ([]catalog.TopicEntry, error) {
	return r.topics.ListEntries(dbctx.Context{Ctx: ctx})
}

func (r *retagger) Retag(ctx context.Context, ref content.Ref) classify.Result[RetagResult] {
	cat, err := r.catalog.Get(ctx)
	if err != nil {
		return classify.Err[RetagResult](classify.CodeOf(err), err.Error())
	}
	topics, err := r.Topics(ctx)
	if err != nil {
		return classify.Err[RetagResult](classify.CodeOf(err), err.Error())
	}
	return r.RetagWith(ctx, ref, cat, topics)
}

func (r *retagger) RetagWith(ctx context.Context, ref content.Ref, cat *tagging.Catalog, topics []catalog.TopicEntry) classify.Result[RetagResult] {
	dbc := dbctx.Context{Ctx: ctx}
	item, err := r.items.Get(dbc, ref)
	if err != nil {
		return classify.Err[RetagResult](classify.CodeOf(err), err.Error())
	}

	body := cat.Match(item.TextFields().Values(), nil)
	title := cat.Match(item.TitleFields().Values(), nil)
	r.metrics.IncTagMatch(string(content.ScopeBody), body.Len() > 0)
	r.metrics.IncTagMatch(string(content.ScopeTitle), title.Len() > 0)

	out := RetagResult{BodyTags: body.Names(), TitleTags: title.Names()}
	for _, scope := range content.Scopes() {
		names := out.BodyTags
		if scope == content.ScopeTitle {
			names = out.TitleTags
		}
		ins, del, err := r.tags.Replace(dbc, ref, scope, names)
		if err != nil {
			return classify.Err[RetagResult](classify.CodeOf(err), err.Error())
		}
		out.TaggingInserted += ins
		out.TaggingDeleted += del
		r.metrics.AddTaggingWrites(string(scope), ins, del)
	}

	res, err := r.sync.Sync(ctx, ref, body, title, topics)
	if err != nil {
		return classify.Err[RetagResult](classify.CodeOf(err), err.Error())
	}
	out.Sync = res

	if body.Len() == 0 && title.Len() == 0 {
		return classify.ErrWith(out, classify.CodeNoMatch, "no tags found")
	}
	return classify.Ok(out)
}

func (r *retagger) SyncCurrent(ctx context.Context, ref content.Ref, topics []catalog.TopicEntry) (SyncResult, error) {
	dbc := dbctx.Context{Ctx: ctx}
	body, err := r.tags.TagNames(dbc, ref, content.ScopeBody)
	if err != nil {
		return SyncResult{}, err
	}
	title, err := r.tags.TagNames(dbc, ref, content.ScopeTitle)
	if err != nil {
		return SyncResult{}, err
	}
	return r.sync.Sync(ctx, ref, tagging.NewSet(body...), tagging.NewSet(title...), topics)
}

func (r *retagger) AddTag(ctx context.Context, ref content.Ref, tagName string, scope content.Scope) (bool, error) {
	added, err := r.tags.Add(dbctx.Context{Ctx: ctx}, ref, scope, tagName)
	if err != nil {
		return false, err
	}
	if added {
		r.metrics.AddTaggingWrites(string(scope), 1, 0)
	}
	return added, nil
}

func (r *retagger) RemoveTag(ctx context.Context, tagName string) ([]content.Ref, error) {
	tagName = strings.TrimSpace(tagName)
	if tagName == "" {
		return nil, classify.NewError(classify.CodeValidation, "Retagger.RemoveTag", "blank tag name", nil)
	}
	refs, err := r.tags.RemoveName(dbctx.Context{Ctx: ctx}, tagName)
	if err != nil {
		return nil, err
	}
	r.log.Info("tag removed from content", "tag", tagName, "items", len(refs))
	return refs, nil
}
