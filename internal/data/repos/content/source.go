package content

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/topicpulse-backend/internal/domain/content"
)

// source describes where a content kind lives and how its columns map to the shared contract.
type source struct {
	kind       content.Kind
	table      string
	network    string
	siteColumn string
	titleExpr  string
	textExpr   string
}

func sourceFor(kind content.Kind) (source, error) {
	switch kind {
	case content.KindWebEntry:
		return source{
			kind:       kind,
			table:      "web_entry",
			siteColumn: "site_id",
			titleExpr:  "c.title",
			textExpr:   "COALESCE(c.title, '') || ' ' || COALESCE(c.content, '') || ' ' || COALESCE(c.description, '')",
		}, nil
	case content.KindFacebookPost, content.KindTwitterPost, content.KindInstagramPost:
		return source{
			kind:       kind,
			table:      "social_post",
			network:    kind.Network(),
			siteColumn: "account_id",
			titleExpr:  "CASE WHEN c.attachment_title <> '' THEN c.attachment_title ELSE c.message END",
			textExpr:   "COALESCE(c.message, '') || ' ' || COALESCE(c.caption, '') || ' ' || COALESCE(c.attachment_title, '') || ' ' || COALESCE(c.attachment_description, '')",
		}, nil
	default:
		return source{}, fmt.Errorf("unknown content kind %q", kind)
	}
}

// from scopes tx to the source table aliased as c.
func (s source) from(tx *gorm.DB) *gorm.DB {
	q := tx.Table(s.table + " AS c")
	if s.network != "" {
		q = q.Where("c.network = ?", s.network)
	}
	return q
}

func (s source) newModel() content.Item {
	if s.network != "" {
		return &content.SocialPost{}
	}
	return &content.WebEntry{}
}
