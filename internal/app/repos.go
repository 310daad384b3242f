package app

import (
	"gorm.io/gorm"

	assocrepo "github.com/yungbote/topicpulse-backend/internal/data/repos/association"
	catalogrepo "github.com/yungbote/topicpulse-backend/internal/data/repos/catalog"
	contentrepo "github.com/yungbote/topicpulse-backend/internal/data/repos/content"
	jobsrepo "github.com/yungbote/topicpulse-backend/internal/data/repos/jobs"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
)

type Repos struct {
	Tag         catalogrepo.TagRepo
	Topic       catalogrepo.TopicRepo
	Item        contentrepo.ItemRepo
	Tagging     contentrepo.TaggingRepo
	Analytics   contentrepo.AnalyticsRepo
	Association assocrepo.AssociationRepo
	JobRun      jobsrepo.JobRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Tag:         catalogrepo.NewTagRepo(db, log),
		Topic:       catalogrepo.NewTopicRepo(db, log),
		Item:        contentrepo.NewItemRepo(db, log),
		Tagging:     contentrepo.NewTaggingRepo(db, log),
		Analytics:   contentrepo.NewAnalyticsRepo(db, log),
		Association: assocrepo.NewAssociationRepo(db, log),
		JobRun:      jobsrepo.NewJobRunRepo(db, log),
	}
}
