package temporalx

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("TEMPORAL_ADDRESS", "")
	t.Setenv("TEMPORAL_NAMESPACE_RETENTION_DAYS", "900")
	cfg := LoadConfig()
	if cfg.Enabled() {
		t.Fatalf("expected disabled without address")
	}
	if cfg.Namespace != "topicpulse" || cfg.TaskQueue != "topicpulse-jobs" {
		t.Fatalf("defaults: %+v", cfg)
	}
	if cfg.NamespaceRetention != 365*24*time.Hour {
		t.Fatalf("retention not clamped: %v", cfg.NamespaceRetention)
	}
}

func TestNewClientDisabled(t *testing.T) {
	c, err := NewClient(logger.NewNop(), Config{})
	if c != nil || err != nil {
		t.Fatalf("expected nil client and nil error, got %v %v", c, err)
	}
}

func TestBackoff(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 250 * time.Millisecond},
		{2, 500 * time.Millisecond},
		{3, time.Second},
		{10, 2 * time.Second},
	}
	for _, tc := range cases {
		if got := Backoff(250*time.Millisecond, 2*time.Second, tc.attempt); got != tc.want {
			t.Fatalf("attempt %d: got %v want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestIsRetryableRPC(t *testing.T) {
	if !isRetryableRPC(status.Error(codes.Unavailable, "down")) {
		t.Fatalf("unavailable should retry")
	}
	if isRetryableRPC(status.Error(codes.PermissionDenied, "no")) {
		t.Fatalf("permission denied should not retry")
	}
	if !isRetryableRPC(context.DeadlineExceeded) || isRetryableRPC(errors.New("x")) {
		t.Fatalf("plain error classification wrong")
	}
}

func TestLoadTLSConfigRequiresPair(t *testing.T) {
	if _, err := loadTLSConfig(Config{ClientCAPath: "/tmp/ca.pem"}); err == nil {
		t.Fatalf("expected error without cert/key")
	}
}
