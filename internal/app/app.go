package app

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/topicpulse-backend/internal/analytics/cache"
	"github.com/yungbote/topicpulse-backend/internal/config"
	"github.com/yungbote/topicpulse-backend/internal/data/db"
	"github.com/yungbote/topicpulse-backend/internal/http"
	"github.com/yungbote/topicpulse-backend/internal/observability"
	"github.com/yungbote/topicpulse-backend/internal/platform/envutil"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
	"github.com/yungbote/topicpulse-backend/internal/temporalx"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    Repos
	Clients  Clients
	Services Services
	Metrics  *observability.Metrics
	Server   *http.Server

	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	cfg := LoadConfig()
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	shutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})
	metrics := observability.Init(log)

	acfg, err := config.LoadAnalytics()
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load analytics config: %w", err)
	}

	theDB, err := db.Open(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init db: %w", err)
	}

	tcfg := temporalx.LoadConfig()
	clients, err := wireClients(log, tcfg, metrics)
	if err != nil {
		log.Sync()
		return nil, err
	}

	reposet := wireRepos(theDB, log)
	serviceset, err := wireServices(theDB, log, cfg, acfg, tcfg, reposet, clients, metrics)
	if err != nil {
		clients.Close()
		log.Sync()
		return nil, err
	}

	a := &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Repos:        reposet,
		Clients:      clients,
		Services:     serviceset,
		Metrics:      metrics,
		otelShutdown: shutdown,
	}
	if cfg.RunServer {
		handlerset := wireHandlers(log, theDB, serviceset)
		a.Server = &http.Server{Engine: wireRouter(log, cfg, handlerset, metrics)}
	}
	return a, nil
}

// Start launches the background loops and, when enabled, the Temporal worker.
func (a *App) Start() error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.Metrics.StartDBCollector(ctx, a.Log, a.DB)
	a.Metrics.StartRedisCollector(ctx, a.Log, a.Clients.Redis)
	a.Metrics.StartJobQueueCollector(ctx, a.Log, a.DB)

	if store, ok := a.Services.Cache.(*cache.StoreCache); ok && a.Cfg.RunWorker {
		go a.purgeCacheLoop(ctx, store, envutil.Seconds("AGGREGATION_CACHE_PURGE_SECONDS", 3600))
	}

	if a.Services.TemporalWorker != nil {
		if err := a.Services.TemporalWorker.Start(ctx); err != nil {
			return fmt.Errorf("start temporal worker: %w", err)
		}
	}
	return nil
}

func (a *App) purgeCacheLoop(ctx context.Context, store *cache.StoreCache, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PurgeExpired(ctx)
			if err != nil {
				a.Log.Warn("aggregation cache purge failed", "error", err)
				continue
			}
			if n > 0 {
				a.Log.Debug("aggregation cache purged", "rows", n)
			}
		}
	}
}

func (a *App) Run() error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized for serving (RUN_SERVER=false)")
	}
	addr := ":" + a.Cfg.Port
	a.Log.Info("server listening", "addr", addr)
	return a.Server.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if a.Server != nil {
		_ = a.Server.Shutdown(ctx)
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Services.TemporalWorker != nil {
		a.Services.TemporalWorker.Stop()
	}
	a.Clients.Close()
	if a.otelShutdown != nil {
		_ = a.otelShutdown(ctx)
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
