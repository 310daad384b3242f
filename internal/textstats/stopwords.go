package textstats

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// StopWords is an immutable lower-cased word set, built once and shared.
type StopWords struct {
	words map[string]struct{}
}

func NewStopWords(words ...string) StopWords {
	lower := cases.Lower(language.Und)
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		m[lower.String(w)] = struct{}{}
	}
	return StopWords{words: m}
}

// Contains expects an already lower-cased token.
func (s StopWords) Contains(lowerToken string) bool {
	_, ok := s.words[lowerToken]
	return ok
}

func (s StopWords) Len() int { return len(s.words) }
