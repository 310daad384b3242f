package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/topicpulse-backend/internal/platform/envutil"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
)

// NewClient dials REDIS_ADDR (comma separated for a cluster) and pings it once.
func NewClient(log *logger.Logger) (goredis.UniversalClient, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := envutil.String("REDIS_ADDR", "")
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	addrs := strings.Split(addr, ",")
	for i := range addrs {
		addrs[i] = strings.TrimSpace(addrs[i])
	}

	rdb := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:        addrs,
		Password:     envutil.String("REDIS_PASSWORD", ""),
		DB:           envutil.Int("REDIS_DB", 0),
		DialTimeout:  5 * time.Second,
		ReadTimeout:  envutil.Millis("REDIS_READ_TIMEOUT_MS", 2000),
		WriteTimeout: envutil.Millis("REDIS_WRITE_TIMEOUT_MS", 2000),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.With("client", "Redis").Info("redis connected", "addrs", addrs)
	return rdb, nil
}
