package domain

import (
	"github.com/yungbote/topicpulse-backend/internal/domain/analytics"
	"github.com/yungbote/topicpulse-backend/internal/domain/association"
	"github.com/yungbote/topicpulse-backend/internal/domain/catalog"
	"github.com/yungbote/topicpulse-backend/internal/domain/content"
	"github.com/yungbote/topicpulse-backend/internal/domain/jobs"
)

type (
	WebEntry              = content.WebEntry
	SocialPost            = content.SocialPost
	ContentTagging        = content.ContentTagging
	ContentItem           = content.Item
	ContentRef            = content.Ref
	ContentKind           = content.Kind
	Tag                   = catalog.Tag
	Topic                 = catalog.Topic
	TopicTag              = catalog.TopicTag
	TopicEntry            = catalog.TopicEntry
	TopicAssociation      = association.TopicAssociation
	AggregationCacheEntry = analytics.AggregationCacheEntry
	JobRun                = jobs.JobRun
)

// Models lists every table the service owns, in migration order.
func Models() []any {
	return []any{
		&content.WebEntry{},
		&content.SocialPost{},
		&content.ContentTagging{},
		&catalog.Tag{},
		&catalog.Topic{},
		&catalog.TopicTag{},
		&association.TopicAssociation{},
		&analytics.AggregationCacheEntry{},
		&jobs.JobRun{},
	}
}
