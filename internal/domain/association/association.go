package association

import (
	"time"

	"github.com/yungbote/topicpulse-backend/internal/domain/content"
)

// TopicAssociation is one row of the derived content→topic index.
// Rows are written only by the association synchronizer.
type TopicAssociation struct {
	ID        uint64        `gorm:"primaryKey;autoIncrement" json:"id"`
	Index     content.Scope `gorm:"column:association_index;type:varchar(16);not null;uniqueIndex:ux_topic_association,priority:1" json:"index"`
	Kind      content.Kind  `gorm:"column:kind;type:varchar(32);not null;uniqueIndex:ux_topic_association,priority:2" json:"kind"`
	ContentID uint64        `gorm:"column:content_id;not null;uniqueIndex:ux_topic_association,priority:3" json:"content_id"`
	TopicID   uint64        `gorm:"column:topic_id;not null;uniqueIndex:ux_topic_association,priority:4;index" json:"topic_id"`
	CreatedAt time.Time     `gorm:"not null" json:"created_at"`
}

func (TopicAssociation) TableName() string { return "topic_association" }

func (a TopicAssociation) Ref() content.Ref {
	return content.Ref{Kind: a.Kind, ID: a.ContentID}
}
