package association

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	assocrepo "github.com/yungbote/topicpulse-backend/internal/data/repos/association"
	catalogrepo "github.com/yungbote/topicpulse-backend/internal/data/repos/catalog"
	contentrepo "github.com/yungbote/topicpulse-backend/internal/data/repos/content"
	"github.com/yungbote/topicpulse-backend/internal/data/repos/testutil"
	"github.com/yungbote/topicpulse-backend/internal/domain/catalog"
	"github.com/yungbote/topicpulse-backend/internal/domain/classify"
	"github.com/yungbote/topicpulse-backend/internal/domain/content"
	"github.com/yungbote/topicpulse-backend/internal/platform/dbctx"
	"github.com/yungbote/topicpulse-backend/internal/tagging"
)

type fixture struct {
	ctx    context.Context
	db     *gorm.DB
	assoc  assocrepo.AssociationRepo
	topics catalogrepo.TopicRepo
	sync   Synchronizer
	retag  Retagger
	ranges RangeService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	assoc := assocrepo.NewAssociationRepo(db, log)
	tags := catalogrepo.NewTagRepo(db, log)
	topics := catalogrepo.NewTopicRepo(db, log)
	items := contentrepo.NewItemRepo(db, log)
	taggings := contentrepo.NewTaggingRepo(db, log)
	cache := tagging.NewCatalogCache(tags, log, nil)
	sync := NewSynchronizer(db, log, assoc, nil)
	retag := NewRetagger(log, items, taggings, cache, topics, sync, nil)
	ranges := NewRangeService(log, RangeConfig{BatchSize: 2, Concurrency: 2}, tags, items, taggings, assoc, topics, cache, retag)
	return &fixture{
		ctx:    context.Background(),
		db:     db,
		assoc:  assoc,
		topics: topics,
		sync:   sync,
		retag:  retag,
		ranges: ranges,
	}
}

func (f *fixture) entries(t *testing.T) []catalog.TopicEntry {
	t.Helper()
	out, err := f.topics.ListEntries(dbctx.Context{Ctx: f.ctx})
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	return out
}

func (f *fixture) linked(t *testing.T, ref content.Ref, idx content.Scope) []uint64 {
	t.Helper()
	ids, err := f.assoc.TopicIDs(dbctx.Context{Ctx: f.ctx}, ref, idx)
	if err != nil {
		t.Fatalf("TopicIDs: %v", err)
	}
	return ids
}

func publishedAt(ts time.Time) testutil.WebEntryOpt {
	return func(w *content.WebEntry) { w.Published = ts }
}

func TestDesiredTopics(t *testing.T) {
	topics := []catalog.TopicEntry{
		{ID: 3, TagNames: []string{"Paraguay"}},
		{ID: 1, TagNames: []string{"Futbol", "Paraguay"}},
		{ID: 2, TagNames: []string{"Clima"}, Active: false},
		{ID: 4},
	}
	got := DesiredTopics(tagging.NewSet("paraguay"), topics)
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("unexpected desired topics: %v", got)
	}
	if got := DesiredTopics(tagging.NewSet("Clima"), topics); len(got) != 1 || got[0] != 2 {
		t.Fatalf("inactive topics should still be linked: %v", got)
	}
	if got := DesiredTopics(tagging.NewSet(), topics); len(got) != 0 {
		t.Fatalf("empty match should link nothing: %v", got)
	}
}

func TestSyncReconcilesAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	py := testutil.SeedTag(t, f.ctx, f.db, "Paraguay", "")
	fut := testutil.SeedTag(t, f.ctx, f.db, "Futbol", "")
	country := testutil.SeedTopic(t, f.ctx, f.db, "Country", true, py)
	sports := testutil.SeedTopic(t, f.ctx, f.db, "Sports", true, fut)
	archived := testutil.SeedTopic(t, f.ctx, f.db, "Archived", false, py)
	topics := f.entries(t)
	ref := content.Ref{Kind: content.KindWebEntry, ID: 7}

	res, err := f.sync.Sync(f.ctx, ref, tagging.NewSet("Paraguay"), tagging.NewSet(), topics)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res.LinkedTopicCount != 2 || res.LinkedTitleTopicCount != 0 || res.Inserted != 2 || res.Deleted != 0 {
		t.Fatalf("unexpected first sync: %+v", res)
	}

	res, err = f.sync.Sync(f.ctx, ref, tagging.NewSet("Paraguay"), tagging.NewSet(), topics)
	if err != nil {
		t.Fatalf("Sync again: %v", err)
	}
	if res.Writes() != 0 || res.LinkedTopicCount != 2 {
		t.Fatalf("expected no writes on unchanged input: %+v", res)
	}

	res, err = f.sync.Sync(f.ctx, ref, tagging.NewSet("Futbol"), tagging.NewSet("Futbol"), topics)
	if err != nil {
		t.Fatalf("Sync changed: %v", err)
	}
	if res.Inserted != 2 || res.Deleted != 2 {
		t.Fatalf("expected set replacement, got %+v", res)
	}
	body := f.linked(t, ref, content.ScopeBody)
	if len(body) != 1 || body[0] != sports.ID {
		t.Fatalf("body should only link sports: %v", body)
	}
	title := f.linked(t, ref, content.ScopeTitle)
	if len(title) != 1 || title[0] != sports.ID {
		t.Fatalf("title should only link sports: %v", title)
	}
	for _, id := range []uint64{country.ID, archived.ID} {
		for _, have := range body {
			if have == id {
				t.Fatalf("topic %d should have been unlinked", id)
			}
		}
	}

	res, err = f.sync.SyncWith(f.ctx, ref, tagging.NewSet(), tagging.NewSet("Futbol"), topics, Links{Body: body, Title: title})
	if err != nil {
		t.Fatalf("SyncWith: %v", err)
	}
	if res.Deleted != 1 || res.Inserted != 0 {
		t.Fatalf("unexpected preloaded sync: %+v", res)
	}
	if got := f.linked(t, ref, content.ScopeBody); len(got) != 0 {
		t.Fatalf("body should be empty: %v", got)
	}
}

func TestRetagMatchesAndPropagates(t *testing.T) {
	f := newFixture(t)
	py := testutil.SeedTag(t, f.ctx, f.db, "Paraguay", "Paraguayan, Paraguaya")
	fut := testutil.SeedTag(t, f.ctx, f.db, "Futbol", "")
	testutil.SeedTopic(t, f.ctx, f.db, "Country", true, py)
	testutil.SeedTopic(t, f.ctx, f.db, "Sports", true, fut)
	e := testutil.SeedWebEntry(t, f.ctx, f.db, "Paraguayan football", "Futbol en Asuncion")

	res := f.retag.Retag(f.ctx, e.Ref())
	if !res.IsOk() {
		t.Fatalf("Retag: %s %s", res.Code(), res.Message())
	}
	v := res.Value()
	if strings.Join(v.BodyTags, ",") != "Futbol,Paraguay" || strings.Join(v.TitleTags, ",") != "Paraguay" {
		t.Fatalf("unexpected tags: body=%v title=%v", v.BodyTags, v.TitleTags)
	}
	if v.Sync.LinkedTopicCount != 2 || v.Sync.LinkedTitleTopicCount != 1 {
		t.Fatalf("unexpected sync: %+v", v.Sync)
	}

	again := f.retag.Retag(f.ctx, e.Ref()).Value()
	if again.TaggingInserted != 0 || again.TaggingDeleted != 0 || again.Sync.Writes() != 0 {
		t.Fatalf("second retag should write nothing: %+v", again)
	}
}

func TestRetagNoMatchClearsState(t *testing.T) {
	f := newFixture(t)
	py := testutil.SeedTag(t, f.ctx, f.db, "Paraguay", "")
	topic := testutil.SeedTopic(t, f.ctx, f.db, "Country", true, py)
	e := testutil.SeedWebEntry(t, f.ctx, f.db, "Weather", "Rain all week")
	testutil.SeedTagging(t, f.ctx, f.db, e.Ref(), content.ScopeBody, "Paraguay")
	if _, err := f.assoc.Insert(dbctx.Context{Ctx: f.ctx}, e.Ref(), content.ScopeBody, []uint64{topic.ID}); err != nil {
		t.Fatalf("seed association: %v", err)
	}

	res := f.retag.Retag(f.ctx, e.Ref())
	if res.IsOk() || res.Code() != classify.CodeNoMatch {
		t.Fatalf("expected no_match, got ok=%v code=%s", res.IsOk(), res.Code())
	}
	if res.Value().TaggingDeleted != 1 || res.Value().Sync.Deleted != 1 {
		t.Fatalf("stale state should be cleared: %+v", res.Value())
	}

	missing := f.retag.Retag(f.ctx, content.Ref{Kind: content.KindWebEntry, ID: 9999})
	if missing.Code() != classify.CodeNotFound {
		t.Fatalf("expected not_found, got %s", missing.Code())
	}
}

func TestTagRangeByNewTagAndUntag(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()
	recent := testutil.SeedWebEntry(t, f.ctx, f.db, "Sequia", "El Chaco seco", publishedAt(now.Add(-24*time.Hour)))
	testutil.SeedWebEntry(t, f.ctx, f.db, "Nada", "sin novedades", publishedAt(now.Add(-48*time.Hour)))
	old := testutil.SeedWebEntry(t, f.ctx, f.db, "Chaco", "Chaco antiguo", publishedAt(now.AddDate(0, 0, -30)))
	chaco := testutil.SeedTag(t, f.ctx, f.db, "Chaco", "")
	region := testutil.SeedTopic(t, f.ctx, f.db, "Region", true, chaco)

	sum, err := f.ranges.TagRangeByNewTag(f.ctx, TagRangeParams{
		TagID: chaco.ID,
		Kind:  content.KindWebEntry,
		From:  now.AddDate(0, 0, -7),
	})
	if err != nil {
		t.Fatalf("TagRangeByNewTag: %v", err)
	}
	if sum.Scanned != 2 || sum.Matched != 1 || sum.Synced != 1 || len(sum.Errors) != 0 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if got := f.linked(t, recent.Ref(), content.ScopeBody); len(got) != 1 || got[0] != region.ID {
		t.Fatalf("recent entry should link region: %v", got)
	}
	if got := f.linked(t, recent.Ref(), content.ScopeTitle); len(got) != 0 {
		t.Fatalf("title index should stay empty: %v", got)
	}
	if got := f.linked(t, old.Ref(), content.ScopeBody); len(got) != 0 {
		t.Fatalf("entry outside window should be untouched: %v", got)
	}

	sum, err = f.ranges.UntagRemovedTag(f.ctx, "Chaco")
	if err != nil {
		t.Fatalf("UntagRemovedTag: %v", err)
	}
	if sum.Matched != 1 || sum.Synced != 1 {
		t.Fatalf("unexpected untag summary: %+v", sum)
	}
	if got := f.linked(t, recent.Ref(), content.ScopeBody); len(got) != 0 {
		t.Fatalf("association should be removed: %v", got)
	}
}

func TestResyncTopicFromTags(t *testing.T) {
	f := newFixture(t)
	chaco := testutil.SeedTag(t, f.ctx, f.db, "Chaco", "")
	region := testutil.SeedTopic(t, f.ctx, f.db, "Region", true, chaco)
	tagged := testutil.SeedWebEntry(t, f.ctx, f.db, "a", "b")
	stale := testutil.SeedWebEntry(t, f.ctx, f.db, "c", "d")
	testutil.SeedTagging(t, f.ctx, f.db, tagged.Ref(), content.ScopeBody, "Chaco")
	if _, err := f.assoc.Insert(dbctx.Context{Ctx: f.ctx}, stale.Ref(), content.ScopeBody, []uint64{region.ID}); err != nil {
		t.Fatalf("seed association: %v", err)
	}

	sum, err := f.ranges.ResyncTopicFromTags(f.ctx, region.ID, 7)
	if err != nil {
		t.Fatalf("ResyncTopicFromTags: %v", err)
	}
	if sum.Synced != 2 || len(sum.Errors) != 0 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if got := f.linked(t, tagged.Ref(), content.ScopeBody); len(got) != 1 || got[0] != region.ID {
		t.Fatalf("tagged entry should link region: %v", got)
	}
	if got := f.linked(t, stale.Ref(), content.ScopeBody); len(got) != 0 {
		t.Fatalf("stale association should be removed: %v", got)
	}

	if _, err := f.ranges.ResyncTopicFromTags(f.ctx, 424242, 7); !classify.IsCode(err, classify.CodeNotFound) {
		t.Fatalf("expected not_found for unknown topic, got %v", err)
	}
}

func TestIsolateRecoversPanics(t *testing.T) {
	trace, err := Isolate(func() error { panic("boom") })
	if err == nil || !strings.Contains(err.Error(), "boom") || trace == "" {
		t.Fatalf("expected recovered panic, got err=%v trace=%q", err, trace)
	}
	sentinel := errors.New("plain")
	trace, err = Isolate(func() error { return sentinel })
	if !errors.Is(err, sentinel) || trace != "" {
		t.Fatalf("expected passthrough error, got %v %q", err, trace)
	}
}
