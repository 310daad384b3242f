package cache

import (
	"context"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/topicpulse-backend/internal/platform/envutil"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
)

// Entry is one computed payload plus the scope coordinates it was keyed by.
type Entry struct {
	Key       string
	ScopeType string
	ScopeID   string
	ParamHash string
	Day       string
	Payload   []byte
	TTL       time.Duration
}

// Cache stores aggregation payloads. Put never overwrites a live entry, so concurrent
// computations of the same key settle on whichever write lands first.
type Cache interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, e Entry) (bool, error)
}

const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendNone     = "none"
)

// FromEnv picks the backend named by AGGREGATION_CACHE. Redis falls back to the SQL store
// when no client is available.
func FromEnv(log *logger.Logger, db *gorm.DB, rdb goredis.UniversalClient) Cache {
	switch strings.ToLower(envutil.String("AGGREGATION_CACHE", BackendPostgres)) {
	case BackendRedis:
		if rdb != nil {
			return NewRedisCache(rdb, envutil.String("AGGREGATION_CACHE_PREFIX", "topicpulse"))
		}
		log.Warn("AGGREGATION_CACHE=redis without a redis client; using sql store")
		return NewStoreCache(db, log)
	case BackendNone, "off", "disabled":
		return Noop{}
	default:
		return NewStoreCache(db, log)
	}
}

// TTLFromEnv reads AGGREGATION_CACHE_TTL_SECONDS, default six hours.
func TTLFromEnv() time.Duration {
	return envutil.Seconds("AGGREGATION_CACHE_TTL_SECONDS", 6*60*60)
}

type Noop struct{}

func (Noop) Name() string { return BackendNone }

func (Noop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (Noop) Put(context.Context, Entry) (bool, error) { return false, nil }
