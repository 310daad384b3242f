package content

import "time"

// SocialPost stores posts from every social network; Network picks the Kind.
type SocialPost struct {
	ID                    uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Network               string    `gorm:"column:network;not null;index" json:"network"`
	AccountID             string    `gorm:"column:account_id;not null;index" json:"account_id"`
	ExternalID            string    `gorm:"column:external_id;index" json:"external_id,omitempty"`
	Message               string    `gorm:"column:message;type:text" json:"message"`
	Caption               string    `gorm:"column:caption;type:text" json:"caption"`
	AttachmentTitle       string    `gorm:"column:attachment_title" json:"attachment_title"`
	AttachmentDescription string    `gorm:"column:attachment_description;type:text" json:"attachment_description"`
	Published             time.Time `gorm:"column:published_at;not null;index" json:"published_at"`
	Reactions             int64     `gorm:"column:reactions;not null;default:0" json:"reactions"`
	Comments              int64     `gorm:"column:comments;not null;default:0" json:"comments"`
	Shares                int64     `gorm:"column:shares;not null;default:0" json:"shares"`
	Likes                 int64     `gorm:"column:likes;not null;default:0" json:"likes"`
	Retweets              int64     `gorm:"column:retweets;not null;default:0" json:"retweets"`
	Views                 int64     `gorm:"column:views;not null;default:0" json:"views"`
	Polarity              string    `gorm:"column:polarity;not null;default:'neutral';index" json:"polarity"`
	SentimentScore        *float64  `gorm:"column:sentiment_score" json:"sentiment_score,omitempty"`
	SentimentConfidence   *float64  `gorm:"column:sentiment_confidence" json:"sentiment_confidence,omitempty"`
	CreatedAt             time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt             time.Time `gorm:"not null" json:"updated_at"`
}

func (SocialPost) TableName() string { return "social_post" }

func (p *SocialPost) Ref() Ref { return Ref{Kind: KindForNetwork(p.Network), ID: p.ID} }

func (p *SocialPost) PublishedAt() time.Time { return p.Published }

func (p *SocialPost) TextFields() Fields {
	return Fields{
		{Name: "message", Value: p.Message},
		{Name: "caption", Value: p.Caption},
		{Name: "attachment_title", Value: p.AttachmentTitle},
		{Name: "attachment_description", Value: p.AttachmentDescription},
	}
}

func (p *SocialPost) TitleFields() Fields {
	return Fields{{Name: "attachment_title", Value: p.AttachmentTitle}}
}

func (p *SocialPost) EngagementMetrics() map[string]float64 {
	return map[string]float64{
		"reactions": float64(p.Reactions),
		"comments":  float64(p.Comments),
		"shares":    float64(p.Shares),
		"likes":     float64(p.Likes),
		"retweets":  float64(p.Retweets),
		"views":     float64(p.Views),
	}
}

func (p *SocialPost) CurrentPolarity() string { return p.Polarity }
