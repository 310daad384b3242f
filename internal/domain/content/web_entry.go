package content

import "time"

type WebEntry struct {
	ID                  uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SiteID              uint64    `gorm:"column:site_id;not null;index" json:"site_id"`
	URL                 string    `gorm:"column:url" json:"url"`
	Title               string    `gorm:"column:title" json:"title"`
	Content             string    `gorm:"column:content;type:text" json:"content"`
	Description         string    `gorm:"column:description;type:text" json:"description"`
	Published           time.Time `gorm:"column:published_at;not null;index" json:"published_at"`
	ReactionCount       int64     `gorm:"column:reaction_count;not null;default:0" json:"reaction_count"`
	CommentCount        int64     `gorm:"column:comment_count;not null;default:0" json:"comment_count"`
	ShareCount          int64     `gorm:"column:share_count;not null;default:0" json:"share_count"`
	Polarity            string    `gorm:"column:polarity;not null;default:'neutral';index" json:"polarity"`
	SentimentScore      *float64  `gorm:"column:sentiment_score" json:"sentiment_score,omitempty"`
	SentimentConfidence *float64  `gorm:"column:sentiment_confidence" json:"sentiment_confidence,omitempty"`
	CreatedAt           time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt           time.Time `gorm:"not null" json:"updated_at"`
}

func (WebEntry) TableName() string { return "web_entry" }

func (w *WebEntry) Ref() Ref { return Ref{Kind: KindWebEntry, ID: w.ID} }

func (w *WebEntry) PublishedAt() time.Time { return w.Published }

func (w *WebEntry) TextFields() Fields {
	return Fields{
		{Name: "title", Value: w.Title},
		{Name: "content", Value: w.Content},
		{Name: "description", Value: w.Description},
	}
}

func (w *WebEntry) TitleFields() Fields {
	return Fields{{Name: "title", Value: w.Title}}
}

func (w *WebEntry) EngagementMetrics() map[string]float64 {
	return map[string]float64{
		"reaction_count": float64(w.ReactionCount),
		"comment_count":  float64(w.CommentCount),
		"share_count":    float64(w.ShareCount),
	}
}

func (w *WebEntry) CurrentPolarity() string { return w.Polarity }
