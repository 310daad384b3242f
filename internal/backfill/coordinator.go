package backfill

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/topicpulse-backend/internal/association"
	assocrepo "github.com/yungbote/topicpulse-backend/internal/data/repos/association"
	contentrepo "github.com/yungbote/topicpulse-backend/internal/data/repos/content"
	"github.com/yungbote/topicpulse-backend/internal/domain/catalog"
	"github.com/yungbote/topicpulse-backend/internal/domain/classify"
	"github.com/yungbote/topicpulse-backend/internal/domain/content"
	"github.com/yungbote/topicpulse-backend/internal/observability"
	"github.com/yungbote/topicpulse-backend/internal/platform/dbctx"
	"github.com/yungbote/topicpulse-backend/internal/platform/envutil"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
	"github.com/yungbote/topicpulse-backend/internal/tagging"
)

type Config struct {
	BatchSize     int
	Sleep         time.Duration
	ProgressEvery int
}

func ConfigFromEnv() Config {
	return Config{
		BatchSize:     envutil.Int("BACKFILL_BATCH_SIZE", 500),
		Sleep:         envutil.Millis("BACKFILL_SLEEP_MS", 100),
		ProgressEvery: envutil.Int("BACKFILL_PROGRESS_EVERY", 100),
	}
}

type Params struct {
	BatchSize int
	StartID   uint64
	EndID     uint64 // 0 means unbounded
	Kind      content.Kind
	// Retag re-derives tag lists from text before syncing instead of trusting stored ones.
	Retag  bool
	Resume *Checkpoint
}

// Checkpoint is the position after the last fully processed batch.
type Checkpoint struct {
	Kind      content.Kind `json:"kind"`
	LastID    uint64       `json:"last_id"`
	Processed int          `json:"processed"`
	Skipped   int          `json:"skipped"`
	Total     int64        `json:"total"`
	// Errors carries the item failures recorded so far so a resumed run reports them too.
	Errors []association.ItemError `json:"errors,omitempty"`
}

type Summary struct {
	Processed       int                     `json:"processed"`
	Skipped         int                     `json:"skipped"`
	Errors          []association.ItemError `json:"errors"`
	DurationSeconds float64                 `json:"duration_seconds"`
	Kind            content.Kind            `json:"kind,omitempty"`
	LastID          uint64                  `json:"last_id"`
	Total           int64                   `json:"total"`
}

// BatchFunc observes each completed batch. A non-nil error stops the run before the next batch.
type BatchFunc func(ctx context.Context, cp Checkpoint) error

// Coordinator walks content in ascending id order and re-syncs every item's topic associations.
// A failing item is recorded and skipped; the run itself never retries.
type Coordinator struct {
	log      *logger.Logger
	cfg      Config
	items    contentrepo.ItemRepo
	taggings contentrepo.TaggingRepo
	assoc    assocrepo.AssociationRepo
	topics   association.TopicSource
	catalog  association.CatalogSource
	sync     association.Synchronizer
	retag    association.Retagger
	metrics  *observability.Metrics
	tracer   trace.Tracer

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewCoordinator(
	baseLog *logger.Logger,
	cfg Config,
	items contentrepo.ItemRepo,
	taggings contentrepo.TaggingRepo,
	assoc assocrepo.AssociationRepo,
	topics association.TopicSource,
	cat association.CatalogSource,
	sync association.Synchronizer,
	retag association.Retagger,
	metrics *observability.Metrics,
) *Coordinator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = 100
	}
	return &Coordinator{
		log:      baseLog.With("component", "BackfillCoordinator"),
		cfg:      cfg,
		items:    items,
		taggings: taggings,
		assoc:    assoc,
		topics:   topics,
		catalog:  cat,
		sync:     sync,
		retag:    retag,
		metrics:  metrics,
		tracer:   observability.Tracer("backfill"),
		sleep:    sleepCtx,
		now:      time.Now,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type progress struct {
	start     time.Time
	total     int64
	lastTick  int
	processed int
	skipped   int
	// resumed is the work done by earlier runs; it does not count toward this run's rate.
	resumed int
}

// Run always returns the summary gathered so far, alongside any error that ended the run early.
func (c *Coordinator) Run(ctx context.Context, p Params, onBatch BatchFunc) (sum Summary, err error) {
	batch := p.BatchSize
	if batch <= 0 {
		batch = c.cfg.BatchSize
	}
	scope := content.AllKinds()
	if p.Kind != "" {
		scope = []content.Kind{p.Kind}
	}
	kinds := scope
	if p.Resume != nil {
		kinds = resumeKinds(scope, p.Resume.Kind)
	}

	pr := &progress{start: c.now()}
	sum.Errors = []association.ItemError{}
	if p.Resume != nil {
		pr.processed, pr.skipped = p.Resume.Processed, p.Resume.Skipped
		pr.lastTick, pr.resumed = pr.processed, pr.processed+pr.skipped
		sum.Errors = append(sum.Errors, p.Resume.Errors...)
	}
	defer func() {
		sum.Processed, sum.Skipped = pr.processed, pr.skipped
		sum.DurationSeconds = c.now().Sub(pr.start).Seconds()
	}()

	if p.Resume != nil && p.Resume.Total > 0 {
		pr.total = p.Resume.Total
	} else {
		for _, kind := range scope {
			n, err := c.items.Count(dbctx.Context{Ctx: ctx}, kind, p.StartID, p.EndID)
			if err != nil {
				return sum, err
			}
			pr.total += n
		}
	}
	sum.Total = pr.total

	c.metrics.BackfillStarted()
	defer c.metrics.BackfillFinished()
	c.log.Info("backfill started", "kinds", len(kinds), "total", pr.total, "batch_size", batch, "retag", p.Retag)

	first := true
	for _, kind := range kinds {
		after := uint64(0)
		if p.StartID > 0 {
			after = p.StartID - 1
		}
		if p.Resume != nil && p.Resume.Kind == kind && p.Resume.LastID > after {
			after = p.Resume.LastID
		}
		for {
			ids, err := c.items.NextIDs(dbctx.Context{Ctx: ctx}, kind, after, p.EndID, batch)
			if err != nil {
				return sum, err
			}
			if len(ids) == 0 {
				break
			}
			if !first {
				if err := c.sleep(ctx, c.cfg.Sleep); err != nil {
					return sum, err
				}
			}
			first = false
			errs, err := c.runBatch(ctx, kind, ids, p.Retag, pr)
			sum.Errors = append(sum.Errors, errs...)
			if err != nil {
				return sum, err
			}
			after = ids[len(ids)-1]
			sum.Kind, sum.LastID = kind, after

			if onBatch != nil {
				cp := Checkpoint{
					Kind:      kind,
					LastID:    after,
					Processed: pr.processed,
					Skipped:   pr.skipped,
					Total:     pr.total,
					Errors:    sum.Errors,
				}
				if err := onBatch(ctx, cp); err != nil {
					return sum, err
				}
			}
		}
	}

	c.log.Info("backfill finished",
		"processed", pr.processed,
		"skipped", pr.skipped,
		"errors", len(sum.Errors),
		"duration_seconds", c.now().Sub(pr.start).Seconds(),
	)
	return sum, nil
}

func resumeKinds(kinds []content.Kind, from content.Kind) []content.Kind {
	for i, k := range kinds {
		if k == from {
			return kinds[i:]
		}
	}
	return kinds
}

// runBatch reloads the catalogs and the batch's stored tag lists, then syncs item by item.
func (c *Coordinator) runBatch(ctx context.Context, kind content.Kind, ids []uint64, retag bool, pr *progress) ([]association.ItemError, error) {
	started := c.now()
	ctx, span := c.tracer.Start(ctx, "backfill.batch", trace.WithAttributes(
		attribute.String("content.kind", string(kind)),
		attribute.Int("batch.size", len(ids)),
		attribute.Int64("batch.first_id", int64(ids[0])),
	))
	defer span.End()

	dbc := dbctx.Context{Ctx: ctx}
	topics, err := c.topics.ListEntries(dbc)
	if err != nil {
		return nil, err
	}
	var (
		cat        *tagging.Catalog
		bodyTags   map[uint64][]string
		titleTags  map[uint64][]string
		bodyLinks  map[uint64][]uint64
		titleLinks map[uint64][]uint64
	)
	if retag {
		if cat, err = c.catalog.Get(ctx); err != nil {
			return nil, err
		}
	} else {
		if bodyTags, err = c.taggings.TagNamesMany(dbc, kind, ids, content.ScopeBody); err != nil {
			return nil, err
		}
		if titleTags, err = c.taggings.TagNamesMany(dbc, kind, ids, content.ScopeTitle); err != nil {
			return nil, err
		}
		if bodyLinks, err = c.assoc.TopicIDsMany(dbc, kind, ids, content.ScopeBody); err != nil {
			return nil, err
		}
		if titleLinks, err = c.assoc.TopicIDsMany(dbc, kind, ids, content.ScopeTitle); err != nil {
			return nil, err
		}
	}

	var errs []association.ItemError
	processed, skipped := 0, 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return errs, err
		}
		ref := content.Ref{Kind: kind, ID: id}
		stack, err := association.Isolate(func() error {
			if retag {
				return c.retagOne(ctx, ref, cat, topics)
			}
			_, err := c.sync.SyncWith(ctx, ref,
				tagging.NewSet(bodyTags[id]...),
				tagging.NewSet(titleTags[id]...),
				topics,
				association.Links{Body: bodyLinks[id], Title: titleLinks[id]},
			)
			return err
		})
		if err != nil {
			skipped++
			pr.skipped++
			errs = append(errs, association.ItemError{Kind: kind, ID: id, Message: err.Error(), Trace: stack})
			c.log.Warn("backfill item skipped", "content", ref.String(), "error", err)
			continue
		}
		processed++
		pr.processed++
		if pr.processed-pr.lastTick >= c.cfg.ProgressEvery {
			pr.lastTick = pr.processed
			c.logProgress(pr, id)
		}
	}

	c.metrics.AddBackfillItems(string(kind), processed, skipped)
	c.metrics.ObserveBackfillBatch(string(kind), ids[len(ids)-1], c.now().Sub(started))
	span.SetAttributes(attribute.Int("batch.skipped", skipped))
	return errs, nil
}

func (c *Coordinator) retagOne(ctx context.Context, ref content.Ref, cat *tagging.Catalog, topics []catalog.TopicEntry) error {
	res := c.retag.RetagWith(ctx, ref, cat, topics)
	if res.IsOk() || res.Code() == classify.CodeNoMatch {
		return nil
	}
	return res.Err()
}

func (c *Coordinator) logProgress(pr *progress, lastID uint64) {
	elapsed := c.now().Sub(pr.start).Seconds()
	done := pr.processed + pr.skipped
	rate := 0.0
	if elapsed > 0 {
		rate = float64(done-pr.resumed) / elapsed
	}
	eta := 0.0
	if remaining := pr.total - int64(done); remaining > 0 && rate > 0 {
		eta = float64(remaining) / rate
	}
	c.log.Info("backfill progress",
		"processed", pr.processed,
		"skipped", pr.skipped,
		"total", pr.total,
		"rate_per_sec", rate,
		"eta_seconds", eta,
		"last_id", lastID,
	)
}
