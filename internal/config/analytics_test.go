package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/yungbote/topicpulse-backend/internal/domain/content"
)

func TestLoadEmbeddedDefault(t *testing.T) {
	t.Setenv(analyticsConfigEnv, "")
	cfg, err := LoadAnalytics()
	if err != nil {
		t.Fatalf("LoadAnalytics: %v", err)
	}
	opts := cfg.TextOptions()
	if opts.MinTokenLength != 3 || opts.UnigramThreshold != 5 || opts.BigramThreshold != 2 || opts.TopWords != 50 || opts.TopBigrams != 30 {
		t.Fatalf("unexpected text options: %+v", opts)
	}
	stop := cfg.StopWordSet()
	for _, w := range []string{"para", "the", "también"} {
		if !stop.Contains(w) {
			t.Fatalf("expected %q to be a stop word", w)
		}
	}
	if cfg.Aggregation.TopItems != 20 || cfg.Aggregation.MaxTopItems != 100 || cfg.Aggregation.PercentagePrecision != 1 {
		t.Fatalf("unexpected aggregation config: %+v", cfg.Aggregation)
	}
	w := cfg.WeightFormulas()
	if len(w) != len(content.AllKinds()) {
		t.Fatalf("expected a formula per kind, got %d", len(w))
	}
}

func TestLoadOverridePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "analytics.yaml")
	body := []byte(`
text: {min_token_length: 4, unigram_threshold: 1, bigram_threshold: 1, top_words: 5, top_bigrams: 5, sample_size: 10}
aggregation: {top_items: 3, percentage_precision: 2}
weights:
  twitter_post: {retweets: 3}
stop_words:
  es: [hola]
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv(analyticsConfigEnv, path)
	cfg, err := LoadAnalytics()
	if err != nil {
		t.Fatalf("LoadAnalytics: %v", err)
	}
	if cfg.Text.MinTokenLength != 4 || !cfg.StopWordSet().Contains("hola") {
		t.Fatalf("override not applied: %+v", cfg.Text)
	}
	w := cfg.WeightFormulas()
	if w[content.KindTwitterPost]["retweets"] != 3 {
		t.Fatalf("expected twitter override, got %+v", w[content.KindTwitterPost])
	}
	if len(w[content.KindWebEntry]) == 0 {
		t.Fatalf("expected default web weights to remain")
	}
}

func TestParseRejectsBadWeights(t *testing.T) {
	_, err := ParseAnalytics([]byte(`
text: {min_token_length: 3}
weights:
  web_entry: {likes: 1}
  rss: {x: 1}
`))
	if err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestParseRejectsMaxTopBelowDefault(t *testing.T) {
	_, err := ParseAnalytics([]byte(`
text: {min_token_length: 3}
aggregation: {top_items: 20, max_top_items: 10}
`))
	if err == nil {
		t.Fatalf("expected max_top_items below top_items to be rejected")
	}
	cfg, err := ParseAnalytics([]byte(`
text: {min_token_length: 3}
aggregation: {top_items: 20, max_top_items: 30}
`))
	if err != nil || cfg.Aggregation.MaxTopItems != 30 {
		t.Fatalf("valid bound rejected: %v", err)
	}
}
