package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/topicpulse-backend/internal/analytics"
	"github.com/yungbote/topicpulse-backend/internal/analytics/cache"
	"github.com/yungbote/topicpulse-backend/internal/association"
	"github.com/yungbote/topicpulse-backend/internal/backfill"
	"github.com/yungbote/topicpulse-backend/internal/config"
	"github.com/yungbote/topicpulse-backend/internal/jobs/handlers"
	jobruntime "github.com/yungbote/topicpulse-backend/internal/jobs/runtime"
	"github.com/yungbote/topicpulse-backend/internal/observability"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
	"github.com/yungbote/topicpulse-backend/internal/services"
	"github.com/yungbote/topicpulse-backend/internal/tagging"
	"github.com/yungbote/topicpulse-backend/internal/temporalx"
	"github.com/yungbote/topicpulse-backend/internal/temporalx/temporalworker"
	"github.com/yungbote/topicpulse-backend/internal/textstats"
)

type Services struct {
	// Classification
	Catalog  *tagging.CatalogCache
	Sync     association.Synchronizer
	Retagger association.Retagger
	Ranges   association.RangeService
	Backfill *backfill.Coordinator

	// Analytics
	Cache      cache.Cache
	Aggregator *analytics.Aggregator

	// Jobs
	JobRegistry    *jobruntime.Registry
	JobService     services.JobService
	TemporalWorker *temporalworker.Runner
}

func wireServices(
	db *gorm.DB,
	log *logger.Logger,
	cfg Config,
	acfg *config.Analytics,
	tcfg temporalx.Config,
	repos Repos,
	clients Clients,
	metrics *observability.Metrics,
) (Services, error) {
	log.Info("Wiring services...")

	catalogCache := tagging.NewCatalogCache(repos.Tag, log, metrics)
	sync := association.NewSynchronizer(db, log, repos.Association, metrics)
	retagger := association.NewRetagger(log, repos.Item, repos.Tagging, catalogCache, repos.Topic, sync, metrics)
	ranges := association.NewRangeService(
		log,
		association.RangeConfigFromEnv(),
		repos.Tag,
		repos.Item,
		repos.Tagging,
		repos.Association,
		repos.Topic,
		catalogCache,
		retagger,
	)
	coordinator := backfill.NewCoordinator(
		log,
		backfill.ConfigFromEnv(),
		repos.Item,
		repos.Tagging,
		repos.Association,
		repos.Topic,
		catalogCache,
		sync,
		retagger,
		metrics,
	)

	aggCache := cache.FromEnv(log, db, clients.Redis)
	analyzer := textstats.NewAnalyzer(acfg.StopWordSet(), acfg.TextOptions())
	aggregator := analytics.NewAggregator(
		log,
		repos.Analytics,
		analyzer,
		aggCache,
		analytics.OptionsFromConfig(acfg, cache.TTLFromEnv()),
		metrics,
	)

	// Job registry
	jobRegistry := jobruntime.NewRegistry()
	jobHandlers := []jobruntime.Handler{
		handlers.NewSyncContent(log, retagger),
		handlers.NewBackfillAll(log, coordinator),
		handlers.NewTagRangeByNewTag(log, ranges),
		handlers.NewUntagRemovedTag(log, ranges),
		handlers.NewResyncTopicFromTags(log, ranges),
	}
	if clients.Signals != nil {
		jobHandlers = append(jobHandlers,
			handlers.NewRefreshEngagement(log, repos.Item, clients.Signals),
			handlers.NewApplySentiment(log, repos.Item, clients.Signals),
		)
	}
	if err := handlers.RegisterAll(jobRegistry, jobHandlers...); err != nil {
		return Services{}, err
	}

	jobService := services.NewJobService(db, log, repos.JobRun, jobRegistry, clients.Temporal, tcfg.TaskQueue)

	var temporalRunner *temporalworker.Runner
	if cfg.RunWorker {
		w, err := temporalworker.NewRunner(log, tcfg, clients.Temporal, db, repos.JobRun, jobRegistry, metrics)
		if err != nil {
			return Services{}, fmt.Errorf("init temporal worker: %w", err)
		}
		temporalRunner = w
	}

	return Services{
		Catalog:        catalogCache,
		Sync:           sync,
		Retagger:       retagger,
		Ranges:         ranges,
		Backfill:       coordinator,
		Cache:          aggCache,
		Aggregator:     aggregator,
		JobRegistry:    jobRegistry,
		JobService:     jobService,
		TemporalWorker: temporalRunner,
	}, nil
}
