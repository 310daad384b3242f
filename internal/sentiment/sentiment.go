package sentiment

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Polarity is one of the three canonical buckets every source is reduced to.
type Polarity string

const (
	Positive Polarity = "positive"
	Neutral  Polarity = "neutral"
	Negative Polarity = "negative"
)

func Polarities() []Polarity { return []Polarity{Positive, Neutral, Negative} }

// Code is the stored integer form: 0 neutral, 1 positive, 2 negative.
func (p Polarity) Code() int {
	switch p {
	case Positive:
		return 1
	case Negative:
		return 2
	default:
		return 0
	}
}

// Normalize maps integer codes, their string forms, and bucket names to a Polarity.
// Anything unrecognized is Neutral.
func Normalize(raw any) Polarity {
	switch v := raw.(type) {
	case Polarity:
		return fromName(string(v))
	case Label:
		return v.Canonical()
	case string:
		return fromName(v)
	case int:
		return fromCode(int64(v))
	case int32:
		return fromCode(int64(v))
	case int64:
		return fromCode(v)
	case uint8:
		return fromCode(int64(v))
	case float64:
		if v == math.Trunc(v) {
			return fromCode(int64(v))
		}
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return fromCode(n)
		}
	}
	return Neutral
}

func fromName(s string) Polarity {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "positive":
		return Positive
	case "negative":
		return Negative
	case "neutral":
		return Neutral
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return fromCode(n)
	}
	return Neutral
}

func fromCode(n int64) Polarity {
	switch n {
	case 1:
		return Positive
	case 2:
		return Negative
	default:
		return Neutral
	}
}

// Label is the five-way classification of a continuous score.
type Label string

const (
	VeryPositive Label = "very_positive"
	LabelPos     Label = "positive"
	LabelNeutral Label = "neutral"
	LabelNeg     Label = "negative"
	VeryNegative Label = "very_negative"
)

// ClassifyScore buckets a reaction-weighted score with fixed thresholds.
func ClassifyScore(score float64) Label {
	switch {
	case score >= 1.5:
		return VeryPositive
	case score >= 0.5:
		return LabelPos
	case score <= -1.5:
		return VeryNegative
	case score <= -0.5:
		return LabelNeg
	default:
		return LabelNeutral
	}
}

// Canonical collapses the five-way label to the stored three buckets.
func (l Label) Canonical() Polarity {
	switch l {
	case VeryPositive, LabelPos:
		return Positive
	case VeryNegative, LabelNeg:
		return Negative
	default:
		return Neutral
	}
}

type ConfidenceLevel string

const (
	ConfidenceHigh     ConfidenceLevel = "high"
	ConfidenceModerate ConfidenceLevel = "moderate"
	ConfidenceLow      ConfidenceLevel = "low"
	ConfidenceVeryLow  ConfidenceLevel = "very_low"
)

func ClassifyConfidence(c float64) ConfidenceLevel {
	switch {
	case c >= 0.7:
		return ConfidenceHigh
	case c >= 0.5:
		return ConfidenceModerate
	case c >= 0.3:
		return ConfidenceLow
	default:
		return ConfidenceVeryLow
	}
}

// BucketPercentages returns count/total*100 per bucket rounded to precision digits.
// A zero total yields 0 for every bucket.
func BucketPercentages(counts map[Polarity]int64, total int64, precision int) map[Polarity]float64 {
	out := make(map[Polarity]float64, 3)
	for _, p := range Polarities() {
		if total <= 0 {
			out[p] = 0
			continue
		}
		out[p] = round(float64(counts[p])/float64(total)*100, precision)
	}
	return out
}

func round(v float64, precision int) float64 {
	if precision < 0 {
		precision = 0
	}
	scale := math.Pow(10, float64(precision))
	return math.Round(v*scale) / scale
}

type Distribution struct {
	Counts      map[Polarity]int64   `json:"counts"`
	Percentages map[Polarity]float64 `json:"percentages"`
	Total       int64                `json:"total"`
}

// Distribute normalizes raw stored labels (codes or names) and computes the bucket split.
func Distribute(raw map[string]int64, precision int) Distribution {
	counts := map[Polarity]int64{Positive: 0, Neutral: 0, Negative: 0}
	var total int64
	for label, n := range raw {
		counts[Normalize(label)] += n
		total += n
	}
	return Distribution{
		Counts:      counts,
		Percentages: BucketPercentages(counts, total, precision),
		Total:       total,
	}
}
