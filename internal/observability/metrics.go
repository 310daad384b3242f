package observability

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	domjobs "github.com/yungbote/topicpulse-backend/internal/domain/jobs"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
)

// Metrics is nil-safe: every method on a nil *Metrics is a no-op.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	tagMatches      *prometheus.CounterVec
	catalogRebuilds prometheus.Counter
	catalogSize     prometheus.Gauge

	associationWrites *prometheus.CounterVec
	taggingWrites     *prometheus.CounterVec

	backfillItems   *prometheus.CounterVec
	backfillBatch   prometheus.Histogram
	backfillLastID  *prometheus.GaugeVec
	backfillRunning prometheus.Gauge
	itemErrors      *prometheus.CounterVec

	cacheLookups        *prometheus.CounterVec
	aggregationLatency  *prometheus.HistogramVec
	aggregationFallback *prometheus.CounterVec

	jobRuns     *prometheus.CounterVec
	jobLatency  *prometheus.HistogramVec
	jobQueue    *prometheus.GaugeVec
	providerReq *prometheus.CounterVec

	dbStats   *prometheus.GaugeVec
	redisUp   prometheus.Gauge
	redisPing prometheus.Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	v := strings.TrimSpace(os.Getenv("METRICS_ENABLED"))
	if v == "" {
		return false
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

func Current() *Metrics {
	return instance
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics()
		if log != nil {
			log.Info("prometheus metrics initialized")
		}
	})
	return instance
}

// NewMetrics builds a Metrics bound to its own registry. Tests use it directly.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := factory{reg: reg}
	return &Metrics{
		registry: reg,

		apiRequests: f.counterVec("tp_api_requests_total", "Total API requests by method/route/status.", "method", "route", "status"),
		apiLatency: f.histogramVec("tp_api_request_duration_seconds", "API request latency in seconds.",
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}, "method", "route", "status"),
		apiInflight: f.gauge("tp_api_inflight_requests", "In-flight API requests."),

		tagMatches:      f.counterVec("tp_tag_match_total", "Tag match outcomes per content scope.", "scope", "outcome"),
		catalogRebuilds: f.counter("tp_tag_catalog_rebuilds_total", "Compiled tag catalog rebuilds."),
		catalogSize:     f.gauge("tp_tag_catalog_size", "Tags in the compiled catalog."),

		associationWrites: f.counterVec("tp_association_writes_total", "Association rows inserted or deleted by index.", "index", "op"),
		taggingWrites:     f.counterVec("tp_tagging_writes_total", "Content tag list rows inserted or deleted by scope.", "scope", "op"),

		backfillItems: f.counterVec("tp_backfill_items_total", "Backfill items by kind and outcome.", "kind", "outcome"),
		backfillBatch: f.histogram("tp_backfill_batch_duration_seconds", "Backfill batch latency in seconds.",
			[]float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}),
		backfillLastID:  f.gaugeVec("tp_backfill_last_id", "Last content id processed by backfill.", "kind"),
		backfillRunning: f.gauge("tp_backfill_running", "Backfill runs in progress."),
		itemErrors:      f.counterVec("tp_bulk_item_errors_total", "Bulk job item failures by stage and issue.", "stage", "issue"),

		cacheLookups: f.counterVec("tp_aggregation_cache_total", "Aggregation cache lookups by backend/result.", "backend", "result"),
		aggregationLatency: f.histogramVec("tp_aggregation_duration_seconds", "Aggregation compute latency on cache miss.",
			[]float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}, "scope_type"),
		aggregationFallback: f.counterVec("tp_aggregation_fallback_total", "Aggregation sub-metrics replaced by their default.", "metric"),

		jobRuns: f.counterVec("tp_job_runs_total", "Job executions by type/status.", "job_type", "status"),
		jobLatency: f.histogramVec("tp_job_duration_seconds", "Job execution latency.",
			[]float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600}, "job_type"),
		jobQueue:    f.gaugeVec("tp_job_runs", "Job runs by status.", "status"),
		providerReq: f.counterVec("tp_provider_requests_total", "External provider calls by provider/status.", "provider", "status"),

		dbStats:   f.gaugeVec("tp_db_pool", "database/sql pool stats.", "stat"),
		redisUp:   f.gauge("tp_redis_up", "Redis reachability (1 = up)."),
		redisPing: f.gauge("tp_redis_ping_seconds", "Redis ping latency in seconds."),
	}
}

type factory struct {
	reg *prometheus.Registry
}

func (f factory) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
	f.reg.MustRegister(c)
	return c
}

func (f factory) counter(name, help string) prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	f.reg.MustRegister(c)
	return c
}

func (f factory) gauge(name, help string) prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	f.reg.MustRegister(g)
	return g
}

func (f factory) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labels)
	f.reg.MustRegister(g)
	return g
}

func (f factory) histogram(name, help string, buckets []float64) prometheus.Histogram {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets})
	f.reg.MustRegister(h)
	return h
}

func (f factory) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets}, labels)
	f.reg.MustRegister(h)
	return h
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route, status).Observe(dur.Seconds())
}

func (m *Metrics) APIInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) APIInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) IncTagMatch(scope string, matched bool) {
	if m == nil {
		return
	}
	outcome := "no_match"
	if matched {
		outcome = "matched"
	}
	m.tagMatches.WithLabelValues(scope, outcome).Inc()
}

func (m *Metrics) ObserveCatalogRebuild(size int) {
	if m == nil {
		return
	}
	m.catalogRebuilds.Inc()
	m.catalogSize.Set(float64(size))
}

func (m *Metrics) AddAssociationWrites(index string, inserted, deleted int) {
	if m == nil {
		return
	}
	if inserted > 0 {
		m.associationWrites.WithLabelValues(index, "inserted").Add(float64(inserted))
	}
	if deleted > 0 {
		m.associationWrites.WithLabelValues(index, "deleted").Add(float64(deleted))
	}
}

func (m *Metrics) AddTaggingWrites(scope string, inserted, deleted int) {
	if m == nil {
		return
	}
	if inserted > 0 {
		m.taggingWrites.WithLabelValues(scope, "inserted").Add(float64(inserted))
	}
	if deleted > 0 {
		m.taggingWrites.WithLabelValues(scope, "deleted").Add(float64(deleted))
	}
}

func (m *Metrics) AddBackfillItems(kind string, processed, skipped int) {
	if m == nil {
		return
	}
	if processed > 0 {
		m.backfillItems.WithLabelValues(kind, "processed").Add(float64(processed))
	}
	if skipped > 0 {
		m.backfillItems.WithLabelValues(kind, "skipped").Add(float64(skipped))
	}
}

func (m *Metrics) ObserveBackfillBatch(kind string, lastID uint64, dur time.Duration) {
	if m == nil {
		return
	}
	m.backfillBatch.Observe(dur.Seconds())
	m.backfillLastID.WithLabelValues(kind).Set(float64(lastID))
}

func (m *Metrics) BackfillStarted() {
	if m == nil {
		return
	}
	m.backfillRunning.Inc()
}

func (m *Metrics) BackfillFinished() {
	if m == nil {
		return
	}
	m.backfillRunning.Dec()
}

func (m *Metrics) IncItemError(stage, issue string) {
	if m == nil {
		return
	}
	m.itemErrors.WithLabelValues(stage, issue).Inc()
}

// IncCacheLookup records result as one of hit, miss, or error.
func (m *Metrics) IncCacheLookup(backend, result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(backend, result).Inc()
}

func (m *Metrics) ObserveAggregation(scopeType string, dur time.Duration) {
	if m == nil {
		return
	}
	m.aggregationLatency.WithLabelValues(scopeType).Observe(dur.Seconds())
}

func (m *Metrics) IncAggregationFallback(metric string) {
	if m == nil {
		return
	}
	m.aggregationFallback.WithLabelValues(metric).Inc()
}

func (m *Metrics) ObserveJob(jobType, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(jobType, status).Inc()
	m.jobLatency.WithLabelValues(jobType).Observe(dur.Seconds())
}

func (m *Metrics) IncProviderRequest(provider string, status int) {
	if m == nil {
		return
	}
	m.providerReq.WithLabelValues(provider, strconv.Itoa(status)).Inc()
}

func scrapeInterval() time.Duration {
	v := strings.TrimSpace(os.Getenv("METRICS_SCRAPE_INTERVAL_SECONDS"))
	if v == "" {
		return 15 * time.Second
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return 15 * time.Second
}

func (m *Metrics) StartDBCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: db stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.dbStats.WithLabelValues("open_connections").Set(float64(stats.OpenConnections))
				m.dbStats.WithLabelValues("in_use").Set(float64(stats.InUse))
				m.dbStats.WithLabelValues("idle").Set(float64(stats.Idle))
				m.dbStats.WithLabelValues("wait_count").Set(float64(stats.WaitCount))
				m.dbStats.WithLabelValues("wait_duration_seconds").Set(stats.WaitDuration.Seconds())
				m.dbStats.WithLabelValues("max_open_connections").Set(float64(stats.MaxOpenConnections))
			}
		}
	}()
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}

func (m *Metrics) StartJobQueueCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	statuses := []string{domjobs.StatusQueued, domjobs.StatusRunning, domjobs.StatusSucceeded, domjobs.StatusFailed, domjobs.StatusCanceled}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				var rows []struct {
					Status string
					Count  int64
				}
				if err := db.WithContext(ctx).
					Model(&domjobs.JobRun{}).
					Select("status, COUNT(*) AS count").
					Group("status").
					Scan(&rows).Error; err != nil {
					if log != nil {
						log.Warn("metrics: job queue stats failed", "error", err)
					}
					continue
				}
				counts := map[string]int64{}
				for _, r := range rows {
					counts[r.Status] = r.Count
				}
				for _, s := range statuses {
					m.jobQueue.WithLabelValues(s).Set(float64(counts[s]))
				}
			}
		}
	}()
}
