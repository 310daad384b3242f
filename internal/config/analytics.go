package config

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/topicpulse-backend/internal/domain/content"
	"github.com/yungbote/topicpulse-backend/internal/textstats"
)

const analyticsConfigEnv = "ANALYTICS_CONFIG_YAML"

//go:embed analytics.yaml
var analyticsFS embed.FS

type TextConfig struct {
	MinTokenLength   int `yaml:"min_token_length"`
	UnigramThreshold int `yaml:"unigram_threshold"`
	BigramThreshold  int `yaml:"bigram_threshold"`
	TopWords         int `yaml:"top_words"`
	TopBigrams       int `yaml:"top_bigrams"`
	SampleSize       int `yaml:"sample_size"`
}

type AggregationConfig struct {
	TopItems            int     `yaml:"top_items"`
	MaxTopItems         int     `yaml:"max_top_items"`
	TagRollupLimit      int     `yaml:"tag_rollup_limit"`
	PercentagePrecision int     `yaml:"percentage_precision"`
	VelocityBandPercent float64 `yaml:"velocity_band_percent"`
	SeriesFillMaxDays   int     `yaml:"series_fill_max_days"`
}

// Analytics is loaded once at startup and treated as read-only afterwards.
type Analytics struct {
	Version     int                           `yaml:"version"`
	Text        TextConfig                    `yaml:"text"`
	Aggregation AggregationConfig             `yaml:"aggregation"`
	Weights     map[string]map[string]float64 `yaml:"weights"`
	StopWords   map[string][]string           `yaml:"stop_words"`
}

// LoadAnalytics reads ANALYTICS_CONFIG_YAML when set, else the embedded default.
func LoadAnalytics() (*Analytics, error) {
	data, err := readAnalyticsYAML()
	if err != nil {
		return nil, err
	}
	return ParseAnalytics(data)
}

func ParseAnalytics(data []byte) (*Analytics, error) {
	var cfg Analytics
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("analytics config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readAnalyticsYAML() ([]byte, error) {
	if path := strings.TrimSpace(os.Getenv(analyticsConfigEnv)); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", analyticsConfigEnv, err)
		}
		return data, nil
	}
	return analyticsFS.ReadFile("analytics.yaml")
}

func (a *Analytics) validate() error {
	var errs []error
	if a.Text.MinTokenLength <= 0 {
		errs = append(errs, errors.New("text.min_token_length must be positive"))
	}
	if a.Text.TopWords < 0 || a.Text.TopBigrams < 0 || a.Text.SampleSize < 0 {
		errs = append(errs, errors.New("text limits must not be negative"))
	}
	if a.Aggregation.TopItems < 0 || a.Aggregation.MaxTopItems < 0 || a.Aggregation.TagRollupLimit < 0 {
		errs = append(errs, errors.New("aggregation limits must not be negative"))
	}
	if a.Aggregation.MaxTopItems > 0 && a.Aggregation.MaxTopItems < a.Aggregation.TopItems {
		errs = append(errs, errors.New("aggregation.max_top_items must not be below top_items"))
	}
	if a.Aggregation.PercentagePrecision < 0 {
		errs = append(errs, errors.New("aggregation.percentage_precision must not be negative"))
	}
	kinds := make([]string, 0, len(a.Weights))
	for k := range a.Weights {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, raw := range kinds {
		kind, ok := content.ParseKind(raw)
		if !ok {
			errs = append(errs, fmt.Errorf("weights: unknown content kind %q", raw))
			continue
		}
		if err := content.WeightFormula(a.Weights[raw]).Validate(kind); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StopWordSet merges every configured language into one immutable set.
func (a *Analytics) StopWordSet() textstats.StopWords {
	var all []string
	for _, words := range a.StopWords {
		all = append(all, words...)
	}
	return textstats.NewStopWords(all...)
}

func (a *Analytics) TextOptions() textstats.Options {
	return textstats.Options{
		MinTokenLength:   a.Text.MinTokenLength,
		UnigramThreshold: a.Text.UnigramThreshold,
		BigramThreshold:  a.Text.BigramThreshold,
		TopWords:         a.Text.TopWords,
		TopBigrams:       a.Text.TopBigrams,
	}
}

// WeightFormulas returns configured formulas, falling back to defaults for kinds left out.
func (a *Analytics) WeightFormulas() map[content.Kind]content.WeightFormula {
	out := content.DefaultWeights()
	for raw, w := range a.Weights {
		if kind, ok := content.ParseKind(raw); ok && len(w) > 0 {
			out[kind] = content.WeightFormula(w)
		}
	}
	return out
}
