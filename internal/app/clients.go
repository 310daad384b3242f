package app

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/topicpulse-backend/internal/clients/redis"
	"github.com/yungbote/topicpulse-backend/internal/clients/signals"
	"github.com/yungbote/topicpulse-backend/internal/observability"
	"github.com/yungbote/topicpulse-backend/internal/platform/envutil"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
	"github.com/yungbote/topicpulse-backend/internal/temporalx"
)

// Clients holds the optional external connections. A nil field means the integration is off.
type Clients struct {
	Redis    goredis.UniversalClient
	Temporal temporalsdkclient.Client
	Signals  *signals.Client
}

func wireClients(log *logger.Logger, tcfg temporalx.Config, metrics *observability.Metrics) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	// Redis
	if envutil.String("REDIS_ADDR", "") != "" {
		rdb, err := redis.NewClient(log)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		out.Redis = rdb
	}

	// Temporal
	tc, err := temporalx.NewClient(log, tcfg)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init temporal: %w", err)
	}
	out.Temporal = tc

	// Signals
	scfg := signals.ConfigFromEnv()
	if scfg.BaseURL != "" {
		sc, err := signals.NewClient(log, scfg, metrics)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init signals client: %w", err)
		}
		out.Signals = sc
	} else {
		log.Warn("SIGNALS_BASE_URL not set; engagement and sentiment jobs disabled")
	}
	return out, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
