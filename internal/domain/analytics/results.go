package analytics

import (
	"time"

	"github.com/yungbote/topicpulse-backend/internal/domain/content"
)

type Totals struct {
	Items               int64   `json:"items"`
	Interactions        float64 `json:"interactions"`
	AverageInteractions float64 `json:"average_interactions"`
}

type TopItem struct {
	Kind         content.Kind `json:"kind"`
	ID           uint64       `json:"id"`
	Title        string       `json:"title"`
	PublishedAt  time.Time    `json:"published_at"`
	Interactions float64      `json:"interactions"`
}

type DayPoint struct {
	Day          string  `json:"-"`
	Count        int64   `json:"count"`
	Interactions float64 `json:"interactions"`
}

// TagInteractions is the rollup row for one tag. It never mutates the Tag entity.
type TagInteractions struct {
	Name         string  `json:"name"`
	Interactions float64 `json:"interactions"`
	Count        int64   `json:"count"`
}

// Filter narrows analytics queries to a kind, a scope, and a publication window [From, To).
type Filter struct {
	Kind    content.Kind
	TopicID uint64
	TagName string
	SiteID  string
	From    time.Time
	To      time.Time
}
