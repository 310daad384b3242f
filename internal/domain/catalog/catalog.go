package catalog

import (
	"strings"
	"time"
)

type Tag struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name       string    `gorm:"column:name;not null;index" json:"name"`
	Variations string    `gorm:"column:variations;type:text" json:"variations"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null;index" json:"updated_at"`
}

func (Tag) TableName() string { return "tag" }

// VariationList splits the comma-separated variations, trimming entries and dropping blanks.
func (t Tag) VariationList() []string {
	return SplitVariations(t.Variations)
}

func SplitVariations(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type Topic struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	Active    bool      `gorm:"column:active;not null;default:true;index" json:"active"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;index" json:"updated_at"`
}

func (Topic) TableName() string { return "topic" }

type TopicTag struct {
	TopicID   uint64    `gorm:"column:topic_id;primaryKey" json:"topic_id"`
	TagID     uint64    `gorm:"column:tag_id;primaryKey;index" json:"tag_id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (TopicTag) TableName() string { return "topic_tag" }

// TopicEntry is a topic with its tag set resolved to names, as the synchronizer consumes it.
type TopicEntry struct {
	ID       uint64   `json:"id"`
	Name     string   `json:"name"`
	Active   bool     `json:"active"`
	TagIDs   []uint64 `json:"tag_ids"`
	TagNames []string `json:"tag_names"`
}

// Fingerprint changes whenever a catalog table gains, loses, or edits a row.
type Fingerprint struct {
	Count     int64
	UpdatedAt time.Time
}

func (f Fingerprint) Equal(o Fingerprint) bool {
	return f.Count == o.Count && f.UpdatedAt.Equal(o.UpdatedAt)
}
