package app

import (
	"github.com/yungbote/topicpulse-backend/internal/platform/envutil"
)

type Config struct {
	LogMode     string
	Port        string
	RunServer   bool
	RunWorker   bool
	ServiceName string
	Environment string
	Version     string
}

func LoadConfig() Config {
	return Config{
		LogMode:     envutil.String("LOG_MODE", "development"),
		Port:        envutil.String("PORT", "8080"),
		RunServer:   envutil.Bool("RUN_SERVER", true),
		RunWorker:   envutil.Bool("RUN_WORKER", false),
		ServiceName: envutil.String("OTEL_SERVICE_NAME", "topicpulse"),
		Environment: envutil.String("APP_ENV", "development"),
		Version:     envutil.String("APP_VERSION", "dev"),
	}
}
