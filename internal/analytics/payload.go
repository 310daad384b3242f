package analytics

import (
	"time"

	domanalytics "github.com/yungbote/topicpulse-backend/internal/domain/analytics"
	"github.com/yungbote/topicpulse-backend/internal/sentiment"
	"github.com/yungbote/topicpulse-backend/internal/textstats"
)

type ScopeView struct {
	Type domanalytics.ScopeType `json:"type"`
	ID   string                 `json:"id"`
}

type SeriesPoint struct {
	Count        int64   `json:"count"`
	Interactions float64 `json:"interactions"`
}

const (
	DirectionUp     = "up"
	DirectionDown   = "down"
	DirectionStable = "stable"
)

type Velocity struct {
	VelocityPercent float64 `json:"velocity_percent"`
	Direction       string  `json:"direction"`
}

// Payload is the dashboard document for one scope. Degraded lists metrics that fell back
// to their empty value because their computation failed; such payloads are never cached.
type Payload struct {
	Scope       ScopeView                      `json:"scope"`
	Params      ParamsView                     `json:"params"`
	GeneratedAt time.Time                      `json:"generated_at"`
	Totals      domanalytics.Totals            `json:"totals"`
	TopItems    []domanalytics.TopItem         `json:"top_items"`
	TimeSeries  map[string]SeriesPoint         `json:"time_series"`
	TagRollup   []domanalytics.TagInteractions `json:"tag_rollup"`
	Trending    textstats.Result               `json:"trending"`
	Sentiment   sentiment.Distribution         `json:"sentiment"`
	Velocity    Velocity                       `json:"velocity"`
	Degraded    []string                       `json:"degraded,omitempty"`
}

func emptyTrending() textstats.Result {
	return textstats.Result{Words: []textstats.TermCount{}, Bigrams: []textstats.TermCount{}}
}

func emptySentiment() sentiment.Distribution {
	return sentiment.Distribute(nil, 0)
}

func stableVelocity() Velocity {
	return Velocity{VelocityPercent: 0, Direction: DirectionStable}
}
