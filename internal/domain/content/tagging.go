package content

import "time"

// ContentTagging is one entry of an item's current tag list for a scope.
type ContentTagging struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Kind      Kind      `gorm:"column:kind;type:varchar(32);not null;uniqueIndex:ux_content_tagging,priority:1" json:"kind"`
	ContentID uint64    `gorm:"column:content_id;not null;uniqueIndex:ux_content_tagging,priority:2" json:"content_id"`
	Scope     Scope     `gorm:"column:scope;type:varchar(16);not null;uniqueIndex:ux_content_tagging,priority:3" json:"scope"`
	TagName   string    `gorm:"column:tag_name;not null;uniqueIndex:ux_content_tagging,priority:4;index" json:"tag_name"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (ContentTagging) TableName() string { return "content_tagging" }
