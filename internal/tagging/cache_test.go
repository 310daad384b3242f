package tagging

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/topicpulse-backend/internal/domain/catalog"
	"github.com/yungbote/topicpulse-backend/internal/platform/dbctx"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
)

type fakeTagSource struct {
	tags  []*catalog.Tag
	fp    catalog.Fingerprint
	lists int
}

func (f *fakeTagSource) ListAll(dbctx.Context) ([]*catalog.Tag, error) {
	f.lists++
	return f.tags, nil
}

func (f *fakeTagSource) Fingerprint(dbctx.Context) (catalog.Fingerprint, error) {
	return f.fp, nil
}

func TestCatalogCacheRebuildsOnFingerprintChange(t *testing.T) {
	src := &fakeTagSource{
		tags: []*catalog.Tag{{ID: 1, Name: "sol"}},
		fp:   catalog.Fingerprint{Count: 1, UpdatedAt: time.Unix(100, 0)},
	}
	cache := NewCatalogCache(src, logger.NewNop(), nil)
	ctx := context.Background()

	first, err := cache.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, _ := cache.Get(ctx)
	if first != second || src.lists != 1 {
		t.Fatalf("expected cached catalog, lists=%d", src.lists)
	}

	src.tags = append(src.tags, &catalog.Tag{ID: 2, Name: "lluvia"})
	src.fp = catalog.Fingerprint{Count: 2, UpdatedAt: time.Unix(200, 0)}
	third, _ := cache.Get(ctx)
	if third == first || third.Len() != 2 || src.lists != 2 {
		t.Fatalf("expected rebuild after fingerprint change, lists=%d", src.lists)
	}
	if !third.Match([]string{"hay lluvia"}, nil).Has("lluvia") {
		t.Fatalf("rebuilt catalog should know the new tag")
	}

	cache.Invalidate()
	if _, err := cache.Get(ctx); err != nil || src.lists != 3 {
		t.Fatalf("expected rebuild after Invalidate, lists=%d err=%v", src.lists, err)
	}
}
