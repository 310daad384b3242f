package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/topicpulse-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(types.Models()...)
}

// EnsureIndexes adds composite indexes the aggregation and range queries rely on.
// Statements are portable across postgres and sqlite.
func EnsureIndexes(db *gorm.DB) error {
	stmts := []struct {
		name string
		sql  string
	}{
		{"idx_web_entry_site_published", `CREATE INDEX IF NOT EXISTS idx_web_entry_site_published ON web_entry(site_id, published_at);`},
		{"idx_social_post_network_published", `CREATE INDEX IF NOT EXISTS idx_social_post_network_published ON social_post(network, published_at);`},
		{"idx_social_post_account_published", `CREATE INDEX IF NOT EXISTS idx_social_post_account_published ON social_post(account_id, published_at);`},
		{"idx_content_tagging_scope_tag", `CREATE INDEX IF NOT EXISTS idx_content_tagging_scope_tag ON content_tagging(scope, tag_name, kind, content_id);`},
		{"idx_topic_association_lookup", `CREATE INDEX IF NOT EXISTS idx_topic_association_lookup ON topic_association(topic_id, association_index, kind, content_id);`},
	}
	for _, s := range stmts {
		if err := db.Exec(s.sql).Error; err != nil {
			return fmt.Errorf("create %s: %w", s.name, err)
		}
	}
	return nil
}
