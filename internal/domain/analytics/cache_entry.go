package analytics

import (
	"time"

	"gorm.io/datatypes"
)

type ScopeType string

const (
	ScopeTopic ScopeType = "topic"
	ScopeTag   ScopeType = "tag"
	ScopeSite  ScopeType = "site"
)

func ParseScopeType(s string) (ScopeType, bool) {
	switch ScopeType(s) {
	case ScopeTopic, ScopeTag, ScopeSite:
		return ScopeType(s), true
	default:
		return "", false
	}
}

type AggregationCacheEntry struct {
	Key         string         `gorm:"column:cache_key;primaryKey" json:"key"`
	ScopeType   ScopeType      `gorm:"column:scope_type;type:varchar(16);not null;index:idx_agg_cache_scope,priority:1" json:"scope_type"`
	ScopeID     string         `gorm:"column:scope_id;not null;index:idx_agg_cache_scope,priority:2" json:"scope_id"`
	ParamHash   string         `gorm:"column:param_hash;not null" json:"param_hash"`
	CalendarDay string         `gorm:"column:calendar_day;not null;index" json:"calendar_day"`
	Payload     datatypes.JSON `gorm:"column:payload" json:"payload"`
	ExpiresAt   time.Time      `gorm:"column:expires_at;not null;index" json:"expires_at"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
}

func (AggregationCacheEntry) TableName() string { return "aggregation_cache_entry" }
