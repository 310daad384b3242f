package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/topicpulse-backend/internal/analytics/cache"
	"github.com/yungbote/topicpulse-backend/internal/config"
	contentrepo "github.com/yungbote/topicpulse-backend/internal/data/repos/content"
	domanalytics "github.com/yungbote/topicpulse-backend/internal/domain/analytics"
	"github.com/yungbote/topicpulse-backend/internal/domain/content"
	"github.com/yungbote/topicpulse-backend/internal/observability"
	"github.com/yungbote/topicpulse-backend/internal/platform/dbctx"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
	"github.com/yungbote/topicpulse-backend/internal/sentiment"
	"github.com/yungbote/topicpulse-backend/internal/textstats"
)

type Options struct {
	TopItems            int
	MaxTopItems         int
	TagRollupLimit      int
	SampleSize          int
	PercentagePrecision int
	VelocityBandPercent float64
	SeriesFillMaxDays   int
	CacheTTL            time.Duration
	Weights             map[content.Kind]content.WeightFormula
}

func OptionsFromConfig(cfg *config.Analytics, ttl time.Duration) Options {
	return Options{
		TopItems:            cfg.Aggregation.TopItems,
		MaxTopItems:         cfg.Aggregation.MaxTopItems,
		TagRollupLimit:      cfg.Aggregation.TagRollupLimit,
		SampleSize:          cfg.Text.SampleSize,
		PercentagePrecision: cfg.Aggregation.PercentagePrecision,
		VelocityBandPercent: cfg.Aggregation.VelocityBandPercent,
		SeriesFillMaxDays:   cfg.Aggregation.SeriesFillMaxDays,
		CacheTTL:            ttl,
		Weights:             cfg.WeightFormulas(),
	}
}

func (o Options) withDefaults() Options {
	if o.TopItems <= 0 {
		o.TopItems = 20
	}
	if o.MaxTopItems <= 0 {
		o.MaxTopItems = 100
	}
	o.MaxTopItems = max(o.MaxTopItems, o.TopItems)
	if o.TagRollupLimit <= 0 {
		o.TagRollupLimit = 30
	}
	if o.SampleSize <= 0 {
		o.SampleSize = 200
	}
	if o.VelocityBandPercent <= 0 {
		o.VelocityBandPercent = 5
	}
	if o.SeriesFillMaxDays <= 0 {
		o.SeriesFillMaxDays = 366
	}
	if o.Weights == nil {
		o.Weights = content.DefaultWeights()
	}
	return o
}

// Aggregator builds dashboard payloads and caches them per scope, params and calendar day.
// A cache hit is returned as stored; a miss is computed synchronously.
type Aggregator struct {
	log      *logger.Logger
	repo     contentrepo.AnalyticsRepo
	analyzer *textstats.Analyzer
	cache    cache.Cache
	opts     Options
	metrics  *observability.Metrics
	tracer   trace.Tracer
	now      func() time.Time
}

func NewAggregator(
	baseLog *logger.Logger,
	repo contentrepo.AnalyticsRepo,
	analyzer *textstats.Analyzer,
	c cache.Cache,
	opts Options,
	metrics *observability.Metrics,
) *Aggregator {
	if c == nil {
		c = cache.Noop{}
	}
	return &Aggregator{
		log:      baseLog.With("service", "DashboardAggregator"),
		repo:     repo,
		analyzer: analyzer,
		cache:    c,
		opts:     opts.withDefaults(),
		metrics:  metrics,
		tracer:   observability.Tracer("analytics"),
		now:      time.Now,
	}
}

func (a *Aggregator) Aggregate(ctx context.Context, scopeType domanalytics.ScopeType, scopeID string, p Params) (*Payload, error) {
	now := a.now().UTC()
	p, err := p.normalize(now, a.opts.TopItems, a.opts.MaxTopItems)
	if err != nil {
		return nil, err
	}
	f, err := filterFor(scopeType, scopeID, p)
	if err != nil {
		return nil, err
	}
	ctx, span := a.tracer.Start(ctx, "analytics.aggregate", trace.WithAttributes(
		attribute.String("scope.type", string(scopeType)),
		attribute.String("scope.id", scopeID),
		attribute.String("content.kind", string(p.Kind)),
	))
	defer span.End()

	hash := p.Hash()
	day := now.Format(dayLayout)
	key := CacheKey(scopeType, scopeID, hash, day)

	data, hit, err := a.cache.Get(ctx, key)
	switch {
	case err != nil:
		a.log.Warn("aggregation cache read failed", "key", key, "backend", a.cache.Name(), "error", err)
		a.metrics.IncCacheLookup(a.cache.Name(), "error")
	case hit:
		var cached Payload
		if err := json.Unmarshal(data, &cached); err == nil {
			a.metrics.IncCacheLookup(a.cache.Name(), "hit")
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return &cached, nil
		}
		a.log.Warn("aggregation cache entry unreadable", "key", key)
		a.metrics.IncCacheLookup(a.cache.Name(), "corrupt")
	default:
		a.metrics.IncCacheLookup(a.cache.Name(), "miss")
	}

	started := time.Now()
	out := a.compute(ctx, scopeType, scopeID, p, f, now)
	a.metrics.ObserveAggregation(string(scopeType), time.Since(started))

	if len(out.Degraded) > 0 {
		a.log.Warn("aggregation degraded; not cached", "key", key, "metrics", out.Degraded)
		return out, nil
	}
	encoded, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode aggregation payload: %w", err)
	}
	if _, err := a.cache.Put(ctx, cache.Entry{
		Key:       key,
		ScopeType: string(scopeType),
		ScopeID:   scopeID,
		ParamHash: hash,
		Day:       day,
		Payload:   encoded,
		TTL:       cacheTTL(now, a.opts.CacheTTL),
	}); err != nil {
		a.log.Warn("aggregation cache write failed", "key", key, "backend", a.cache.Name(), "error", err)
	}
	return out, nil
}

// compute runs every metric concurrently. Each one is contained: its failure only swaps in
// its default value and records the metric name in Degraded.
func (a *Aggregator) compute(ctx context.Context, scopeType domanalytics.ScopeType, scopeID string, p Params, f domanalytics.Filter, now time.Time) *Payload {
	w := a.opts.Weights[p.Kind]
	dbc := dbctx.Context{Ctx: ctx}
	out := &Payload{
		Scope:       ScopeView{Type: scopeType, ID: scopeID},
		Params:      p.view(),
		GeneratedAt: now,
	}
	var mu sync.Mutex
	degrade := func(metric string) {
		mu.Lock()
		out.Degraded = append(out.Degraded, metric)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	g.Go(func() error {
		out.Totals = tryDefault(gctx, a, "totals", degrade, domanalytics.Totals{}, func(context.Context) (domanalytics.Totals, error) {
			return a.repo.Totals(dbc, f, w)
		})
		return nil
	})
	g.Go(func() error {
		out.TopItems = tryDefault(gctx, a, "top_items", degrade, []domanalytics.TopItem{}, func(context.Context) ([]domanalytics.TopItem, error) {
			return a.repo.TopItems(dbc, f, w, p.Top)
		})
		return nil
	})
	g.Go(func() error {
		out.TimeSeries = tryDefault(gctx, a, "time_series", degrade, map[string]SeriesPoint{}, func(context.Context) (map[string]SeriesPoint, error) {
			points, err := a.repo.DailySeries(dbc, f, w)
			if err != nil {
				return nil, err
			}
			return fillSeries(points, p.From, p.To, a.opts.SeriesFillMaxDays), nil
		})
		return nil
	})
	g.Go(func() error {
		out.TagRollup = tryDefault(gctx, a, "tag_rollup", degrade, []domanalytics.TagInteractions{}, func(context.Context) ([]domanalytics.TagInteractions, error) {
			return a.repo.TagRollup(dbc, f, w, a.opts.TagRollupLimit)
		})
		return nil
	})
	g.Go(func() error {
		out.Trending = tryDefault(gctx, a, "trending", degrade, emptyTrending(), func(context.Context) (textstats.Result, error) {
			docs, err := a.repo.SampleTexts(dbc, f, w, a.opts.SampleSize)
			if err != nil {
				return textstats.Result{}, err
			}
			return a.analyzer.Analyze(docs), nil
		})
		return nil
	})
	g.Go(func() error {
		out.Sentiment = tryDefault(gctx, a, "sentiment", degrade, emptySentiment(), func(context.Context) (sentiment.Distribution, error) {
			raw, err := a.repo.PolarityCounts(dbc, f)
			if err != nil {
				return sentiment.Distribution{}, err
			}
			return sentiment.Distribute(raw, a.opts.PercentagePrecision), nil
		})
		return nil
	})
	g.Go(func() error {
		out.Velocity = tryDefault(gctx, a, "velocity", degrade, stableVelocity(), func(context.Context) (Velocity, error) {
			return a.velocity(dbc, f, w)
		})
		return nil
	})
	_ = g.Wait()

	sort.Strings(out.Degraded)
	return out
}

// tryDefault returns fn's value, or def when fn errors or panics.
func tryDefault[T any](ctx context.Context, a *Aggregator, metric string, degrade func(string), def T, fn func(context.Context) (T, error)) (out T) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("aggregation metric panicked", "metric", metric, "panic", r)
			a.metrics.IncAggregationFallback(metric)
			degrade(metric)
			out = def
		}
	}()
	v, err := fn(ctx)
	if err != nil {
		a.log.Warn("aggregation metric failed; using default", "metric", metric, "error", err)
		a.metrics.IncAggregationFallback(metric)
		degrade(metric)
		return def
	}
	return v
}

// fillSeries keys points by day and, for windows up to maxDays long, adds zero entries for
// days without content.
func fillSeries(points []domanalytics.DayPoint, from, to time.Time, maxDays int) map[string]SeriesPoint {
	out := make(map[string]SeriesPoint, len(points))
	if days := int(to.Sub(from).Hours() / 24); days > 0 && days <= maxDays {
		for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
			out[d.Format(dayLayout)] = SeriesPoint{}
		}
	}
	for _, pt := range points {
		out[pt.Day] = SeriesPoint{Count: pt.Count, Interactions: pt.Interactions}
	}
	return out
}

// velocity compares interactions in the second half of the window with the first half.
func (a *Aggregator) velocity(dbc dbctx.Context, f domanalytics.Filter, w content.WeightFormula) (Velocity, error) {
	mid := f.From.Add(f.To.Sub(f.From) / 2)
	first, second := f, f
	first.To = mid
	second.From = mid
	before, err := a.repo.Totals(dbc, first, w)
	if err != nil {
		return Velocity{}, err
	}
	after, err := a.repo.Totals(dbc, second, w)
	if err != nil {
		return Velocity{}, err
	}
	return classifyVelocity(before.Interactions, after.Interactions, a.opts.VelocityBandPercent, a.opts.PercentagePrecision), nil
}

func classifyVelocity(before, after, band float64, precision int) Velocity {
	if before == 0 && after == 0 {
		return stableVelocity()
	}
	pct := 100.0
	if before != 0 {
		pct = (after - before) / before * 100
	}
	scale := math.Pow(10, float64(max(precision, 0)))
	v := Velocity{VelocityPercent: math.Round(pct*scale) / scale, Direction: DirectionStable}
	switch {
	case pct > band:
		v.Direction = DirectionUp
	case pct < -band:
		v.Direction = DirectionDown
	}
	return v
}
