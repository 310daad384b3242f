package textstats

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

type Result struct {
	Words   []TermCount `json:"words"`
	Bigrams []TermCount `json:"bigrams"`
}

type Options struct {
	MinTokenLength   int
	UnigramThreshold int
	BigramThreshold  int
	TopWords         int
	TopBigrams       int
}

func DefaultOptions() Options {
	return Options{
		MinTokenLength:   3,
		UnigramThreshold: 5,
		BigramThreshold:  2,
		TopWords:         50,
		TopBigrams:       30,
	}
}

type Analyzer struct {
	stop StopWords
	opts Options
}

func NewAnalyzer(stop StopWords, opts Options) *Analyzer {
	return &Analyzer{stop: stop, opts: opts}
}

// Analyze counts unigrams across all documents and bigrams within each document.
// Terms are kept only when their count is strictly above the threshold. Ties on count
// are ordered by term so results are stable between runs.
func (a *Analyzer) Analyze(documents []string) Result {
	lower := cases.Lower(language.Und)
	words := map[string]int{}
	bigrams := map[string]int{}
	for _, doc := range documents {
		tokens := a.tokenize(doc, lower)
		for i, tok := range tokens {
			words[tok]++
			if i > 0 {
				bigrams[tokens[i-1]+" "+tok]++
			}
		}
	}
	return Result{
		Words:   rank(words, a.opts.UnigramThreshold, a.opts.TopWords),
		Bigrams: rank(bigrams, a.opts.BigramThreshold, a.opts.TopBigrams),
	}
}

// Tokens returns the lower-cased surviving tokens of doc in order.
func (a *Analyzer) Tokens(doc string) []string {
	return a.tokenize(doc, cases.Lower(language.Und))
}

// tokenize takes the caser from the caller since a Caser is not safe for concurrent use.
func (a *Analyzer) tokenize(doc string, lower cases.Caser) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, norm.NFC.String(doc))

	fields := strings.Fields(cleaned)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) < a.opts.MinTokenLength {
			continue
		}
		tok := lower.String(f)
		if a.stop.Contains(tok) {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func rank(counts map[string]int, threshold, limit int) []TermCount {
	out := make([]TermCount, 0, len(counts))
	for term, n := range counts {
		if n > threshold {
			out = append(out, TermCount{Term: term, Count: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Term < out[j].Term
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Analyze is the one-shot form with default thresholds.
func Analyze(documents []string, stop StopWords) Result {
	return NewAnalyzer(stop, DefaultOptions()).Analyze(documents)
}
