package temporalx

import (
	"time"

	"github.com/yungbote/topicpulse-backend/internal/platform/envutil"
)

type Config struct {
	Address   string
	Namespace string
	TaskQueue string

	ClientCertPath string
	ClientKeyPath  string
	ClientCAPath   string

	DialTimeout    time.Duration
	DialMaxWait    time.Duration
	DialBackoff    time.Duration
	DialBackoffMax time.Duration

	AutoRegisterNamespace bool
	NamespaceRetention    time.Duration
}

// LoadConfig reads TEMPORAL_*. An empty Address disables Temporal entirely.
func LoadConfig() Config {
	retentionDays := min(max(envutil.Int("TEMPORAL_NAMESPACE_RETENTION_DAYS", 7), 1), 365)
	return Config{
		Address:   envutil.String("TEMPORAL_ADDRESS", ""),
		Namespace: envutil.String("TEMPORAL_NAMESPACE", "topicpulse"),
		TaskQueue: envutil.String("TEMPORAL_TASK_QUEUE", "topicpulse-jobs"),

		ClientCertPath: envutil.String("TEMPORAL_CLIENT_CERT_PATH", ""),
		ClientKeyPath:  envutil.String("TEMPORAL_CLIENT_KEY_PATH", ""),
		ClientCAPath:   envutil.String("TEMPORAL_CLIENT_CA_PATH", ""),

		DialTimeout:    envutil.Seconds("TEMPORAL_DIAL_TIMEOUT_SECONDS", 5),
		DialMaxWait:    envutil.Seconds("TEMPORAL_DIAL_MAX_WAIT_SECONDS", 60),
		DialBackoff:    envutil.Millis("TEMPORAL_DIAL_BACKOFF_MS", 250),
		DialBackoffMax: envutil.Millis("TEMPORAL_DIAL_BACKOFF_MAX_MS", 5000),

		AutoRegisterNamespace: envutil.Bool("TEMPORAL_AUTO_REGISTER_NAMESPACE", false),
		NamespaceRetention:    time.Duration(retentionDays) * 24 * time.Hour,
	}
}

func (c Config) Enabled() bool { return c.Address != "" }

func (c Config) usesTLS() bool {
	return c.ClientCertPath != "" || c.ClientKeyPath != "" || c.ClientCAPath != ""
}
