package tagging

import (
	"context"
	"sync"

	"github.com/yungbote/topicpulse-backend/internal/domain/catalog"
	"github.com/yungbote/topicpulse-backend/internal/observability"
	"github.com/yungbote/topicpulse-backend/internal/platform/dbctx"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
)

// TagSource is the read side of the tag catalog.
type TagSource interface {
	ListAll(dbc dbctx.Context) ([]*catalog.Tag, error)
	Fingerprint(dbc dbctx.Context) (catalog.Fingerprint, error)
}

// CatalogCache keeps one compiled Catalog and recompiles it when the catalog fingerprint moves.
type CatalogCache struct {
	src     TagSource
	log     *logger.Logger
	metrics *observability.Metrics

	mu  sync.RWMutex
	fp  catalog.Fingerprint
	cat *Catalog
}

func NewCatalogCache(src TagSource, baseLog *logger.Logger, metrics *observability.Metrics) *CatalogCache {
	return &CatalogCache{
		src:     src,
		log:     baseLog.With("component", "TagCatalogCache"),
		metrics: metrics,
	}
}

// Get returns the compiled catalog reflecting the current tag table.
func (c *CatalogCache) Get(ctx context.Context) (*Catalog, error) {
	dbc := dbctx.Context{Ctx: ctx}
	fp, err := c.src.Fingerprint(dbc)
	if err != nil {
		return nil, err
	}
	c.mu.RLock()
	cat, cur := c.cat, c.fp
	c.mu.RUnlock()
	if cat != nil && cur.Equal(fp) {
		return cat, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cat != nil && c.fp.Equal(fp) {
		return c.cat, nil
	}
	tags, err := c.src.ListAll(dbc)
	if err != nil {
		return nil, err
	}
	c.cat = Compile(tags)
	c.fp = fp
	c.metrics.ObserveCatalogRebuild(c.cat.Len())
	c.log.Debug("tag catalog compiled", "tags", c.cat.Len(), "fingerprint_count", fp.Count)
	return c.cat, nil
}

// Invalidate forces the next Get to recompile.
func (c *CatalogCache) Invalidate() {
	c.mu.Lock()
	c.cat = nil
	c.mu.Unlock()
}
