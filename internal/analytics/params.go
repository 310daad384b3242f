package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	domanalytics "github.com/yungbote/topicpulse-backend/internal/domain/analytics"
	"github.com/yungbote/topicpulse-backend/internal/domain/classify"
	"github.com/yungbote/topicpulse-backend/internal/domain/content"
)

const (
	dayLayout     = "2006-01-02"
	defaultWindow = 30
)

type Params struct {
	Kind content.Kind
	From time.Time
	To   time.Time
	Top  int
}

type ParamsView struct {
	Kind content.Kind `json:"kind"`
	From string       `json:"from"`
	To   string       `json:"to"`
	Top  int          `json:"top"`
}

// normalize fills defaults at day granularity so equal requests within a day hash equally.
// The window is [From, To) with both ends on UTC midnight. Top is clamped to maxTop.
func (p Params) normalize(now time.Time, defaultTop, maxTop int) (Params, error) {
	if p.Kind == "" {
		p.Kind = content.KindWebEntry
	}
	if _, ok := content.ParseKind(string(p.Kind)); !ok {
		return p, classify.NewError(classify.CodeValidation, "analytics.params", "unknown content kind "+string(p.Kind), nil)
	}
	if p.To.IsZero() {
		p.To = startOfDay(now).AddDate(0, 0, 1)
	} else {
		p.To = startOfDay(p.To)
	}
	if p.From.IsZero() {
		p.From = p.To.AddDate(0, 0, -defaultWindow)
	} else {
		p.From = startOfDay(p.From)
	}
	if !p.From.Before(p.To) {
		return p, classify.NewError(classify.CodeValidation, "analytics.params", "from must be before to", nil)
	}
	if p.Top <= 0 {
		p.Top = defaultTop
	}
	if maxTop > 0 && p.Top > maxTop {
		p.Top = maxTop
	}
	return p, nil
}

func (p Params) view() ParamsView {
	return ParamsView{Kind: p.Kind, From: p.From.Format(dayLayout), To: p.To.Format(dayLayout), Top: p.Top}
}

// Hash identifies normalized params inside a cache key.
func (p Params) Hash() string {
	v := p.view()
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d", v.Kind, v.From, v.To, v.Top)))
	return hex.EncodeToString(sum[:8])
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CacheKey is "analytics:{type}:{id}:{paramHash}:{day}".
func CacheKey(scopeType domanalytics.ScopeType, scopeID, paramHash, day string) string {
	return strings.Join([]string{"analytics", string(scopeType), scopeID, paramHash, day}, ":")
}

// cacheTTL never lets an entry outlive the calendar day it was computed on.
func cacheTTL(now time.Time, configured time.Duration) time.Duration {
	untilMidnight := startOfDay(now).AddDate(0, 0, 1).Sub(now.UTC())
	if configured <= 0 || untilMidnight < configured {
		return untilMidnight
	}
	return configured
}

// filterFor maps a scope onto the store filter.
func filterFor(scopeType domanalytics.ScopeType, scopeID string, p Params) (domanalytics.Filter, error) {
	f := domanalytics.Filter{Kind: p.Kind, From: p.From, To: p.To}
	scopeID = strings.TrimSpace(scopeID)
	if scopeID == "" {
		return f, classify.NewError(classify.CodeValidation, "analytics.scope", "scope id is required", nil)
	}
	switch scopeType {
	case domanalytics.ScopeTopic:
		id, err := strconv.ParseUint(scopeID, 10, 64)
		if err != nil || id == 0 {
			return f, classify.NewError(classify.CodeValidation, "analytics.scope", "topic id must be a positive integer", err)
		}
		f.TopicID = id
	case domanalytics.ScopeTag:
		f.TagName = scopeID
	case domanalytics.ScopeSite:
		if p.Kind == content.KindWebEntry {
			if _, err := strconv.ParseUint(scopeID, 10, 64); err != nil {
				return f, classify.NewError(classify.CodeValidation, "analytics.scope", "site id must be numeric for web entries", err)
			}
		}
		f.SiteID = scopeID
	default:
		return f, classify.NewError(classify.CodeValidation, "analytics.scope", "unknown scope type "+string(scopeType), nil)
	}
	return f, nil
}
