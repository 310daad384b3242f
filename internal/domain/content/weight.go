package content

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var metricColumns = map[Kind][]string{
	KindWebEntry:      {"reaction_count", "comment_count", "share_count"},
	KindFacebookPost:  {"reactions", "comments", "shares", "likes", "retweets", "views"},
	KindTwitterPost:   {"reactions", "comments", "shares", "likes", "retweets", "views"},
	KindInstagramPost: {"reactions", "comments", "shares", "likes", "retweets", "views"},
}

// MetricColumns lists the engagement columns a weight formula may reference for kind.
func MetricColumns(k Kind) []string {
	return append([]string(nil), metricColumns[k]...)
}

// WeightFormula is a linear combination of engagement columns: column -> coefficient.
type WeightFormula map[string]float64

func (w WeightFormula) Validate(k Kind) error {
	if len(w) == 0 {
		return fmt.Errorf("weight formula for %s is empty", k)
	}
	allowed := metricColumns[k]
	for col := range w {
		ok := false
		for _, a := range allowed {
			if a == col {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("weight formula for %s references unknown metric %q", k, col)
		}
	}
	return nil
}

// SQL renders the formula as an expression over alias. Call Validate first; column names are not quoted.
func (w WeightFormula) SQL(alias string) string {
	cols := w.columns()
	if len(cols) == 0 {
		return "0"
	}
	prefix := ""
	if alias != "" {
		prefix = alias + "."
	}
	parts := make([]string, 0, len(cols))
	for _, col := range cols {
		coef := strconv.FormatFloat(w[col], 'f', -1, 64)
		parts = append(parts, fmt.Sprintf("%s * COALESCE(%s%s, 0)", coef, prefix, col))
	}
	return "(" + strings.Join(parts, " + ") + ")"
}

// Apply evaluates the formula against in-memory metrics. Missing metrics count as zero.
func (w WeightFormula) Apply(metrics map[string]float64) float64 {
	total := 0.0
	for _, col := range w.columns() {
		total += w[col] * metrics[col]
	}
	return total
}

func (w WeightFormula) columns() []string {
	cols := make([]string, 0, len(w))
	for col := range w {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

// DefaultWeights sums the counters each source exposes.
func DefaultWeights() map[Kind]WeightFormula {
	return map[Kind]WeightFormula{
		KindWebEntry:      {"reaction_count": 1, "comment_count": 1, "share_count": 1},
		KindFacebookPost:  {"reactions": 1, "comments": 1, "shares": 1},
		KindTwitterPost:   {"likes": 1, "retweets": 1, "comments": 1},
		KindInstagramPost: {"likes": 1, "comments": 1},
	}
}
