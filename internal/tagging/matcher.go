package tagging

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/yungbote/topicpulse-backend/internal/domain/catalog"
)

// Word boundaries are Unicode-aware: a tag matches only where it is not
// flanked by a letter, digit, or underscore, so accented neighbours count as word characters.
const (
	boundaryStart = `(?:^|[^\p{L}\p{N}_])`
	boundaryEnd   = `(?:$|[^\p{L}\p{N}_])`
)

type compiledTag struct {
	id   uint64
	name string
	re   *regexp.Regexp
}

// Catalog is an immutable, precompiled matcher over a tag list. Safe for concurrent use.
type Catalog struct {
	tags []compiledTag
	byID map[uint64]int
}

// Compile builds one case-insensitive whole-word pattern per tag covering its name and every
// trimmed variation. Tags with a blank name are dropped.
func Compile(tags []*catalog.Tag) *Catalog {
	c := &Catalog{byID: make(map[uint64]int, len(tags))}
	for _, t := range tags {
		if t == nil {
			continue
		}
		name := strings.TrimSpace(t.Name)
		if name == "" {
			continue
		}
		re := compilePattern(append([]string{name}, t.VariationList()...))
		if re == nil {
			continue
		}
		c.byID[t.ID] = len(c.tags)
		c.tags = append(c.tags, compiledTag{id: t.ID, name: t.Name, re: re})
	}
	return c
}

func compilePattern(spellings []string) *regexp.Regexp {
	alts := make([]string, 0, len(spellings))
	seen := make(map[string]bool, len(spellings))
	for _, s := range spellings {
		s = norm.NFC.String(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		alts = append(alts, regexp.QuoteMeta(s))
	}
	if len(alts) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)` + boundaryStart + `(?:` + strings.Join(alts, "|") + `)` + boundaryEnd)
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.tags)
}

// Match returns the names of every tag occurring in fields joined by single spaces.
// With restrictTo set, only that tag is tested; an unknown id yields an empty set.
func (c *Catalog) Match(fields []string, restrictTo *uint64) Set {
	out := Set{}
	if c == nil || len(c.tags) == 0 {
		return out
	}
	text := norm.NFC.String(strings.Join(fields, " "))
	if strings.TrimSpace(text) == "" {
		return out
	}
	if restrictTo != nil {
		idx, ok := c.byID[*restrictTo]
		if ok && c.tags[idx].re.MatchString(text) {
			out.Add(c.tags[idx].name)
		}
		return out
	}
	for _, t := range c.tags {
		if t.re.MatchString(text) {
			out.Add(t.name)
		}
	}
	return out
}

// Match is the one-shot form for callers without a compiled catalog.
func Match(fields []string, tags []*catalog.Tag, restrictTo *uint64) Set {
	return Compile(tags).Match(fields, restrictTo)
}
