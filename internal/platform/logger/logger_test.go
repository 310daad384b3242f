package logger

import "testing"

func TestSanitizeKVs_RedactsSecretsAndHashesAccounts(t *testing.T) {
	out := sanitizeKVs([]interface{}{
		"api_key", "abc",
		"account_id", "12345",
		"tag", "paraguay",
	})
	if len(out) != 6 {
		t.Fatalf("expected 6 kv entries, got %d", len(out))
	}
	if out[1] != "[REDACTED]" {
		t.Fatalf("expected api_key redacted, got %v", out[1])
	}
	hashed, ok := out[3].(string)
	if !ok || len(hashed) != len("hash:")+12 {
		t.Fatalf("expected hashed account id, got %v", out[3])
	}
	if out[5] != "paraguay" {
		t.Fatalf("expected plain value untouched, got %v", out[5])
	}
}

func TestSanitizeKVs_OddLengthKeepsTrailingKey(t *testing.T) {
	out := sanitizeKVs([]interface{}{"tag", "x", "dangling"})
	if len(out) != 3 || out[2] != "dangling" {
		t.Fatalf("unexpected output: %v", out)
	}
}

func TestNewNop(t *testing.T) {
	l := NewNop()
	l.With("component", "test").Info("hello", "k", "v")
	l.Sync()
}
