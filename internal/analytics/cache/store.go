package cache

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/topicpulse-backend/internal/domain/analytics"
	"github.com/yungbote/topicpulse-backend/internal/domain/classify"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
)

// StoreCache keeps payloads in aggregation_cache_entry on the primary database.
type StoreCache struct {
	db  *gorm.DB
	log *logger.Logger
	now func() time.Time
}

func NewStoreCache(db *gorm.DB, baseLog *logger.Logger) *StoreCache {
	return &StoreCache{db: db, log: baseLog.With("component", "AggregationStoreCache"), now: time.Now}
}

func (c *StoreCache) Name() string { return BackendPostgres }

func (c *StoreCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var row analytics.AggregationCacheEntry
	err := c.db.WithContext(ctx).
		Where("cache_key = ? AND expires_at > ?", key, c.now().UTC()).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, classify.MapStoreError("StoreCache.Get", err)
	}
	return []byte(row.Payload), true, nil
}

// Put replaces an expired row for the key but leaves a live one untouched.
func (c *StoreCache) Put(ctx context.Context, e Entry) (bool, error) {
	if e.TTL <= 0 {
		return false, nil
	}
	now := c.now().UTC()
	wrote := false
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("cache_key = ? AND expires_at <= ?", e.Key, now).
			Delete(&analytics.AggregationCacheEntry{}).Error; err != nil {
			return err
		}
		row := analytics.AggregationCacheEntry{
			Key:         e.Key,
			ScopeType:   analytics.ScopeType(e.ScopeType),
			ScopeID:     e.ScopeID,
			ParamHash:   e.ParamHash,
			CalendarDay: e.Day,
			Payload:     datatypes.JSON(e.Payload),
			ExpiresAt:   now.Add(e.TTL),
			CreatedAt:   now,
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cache_key"}},
			DoNothing: true,
		}).Create(&row)
		if res.Error != nil {
			return res.Error
		}
		wrote = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, classify.MapStoreError("StoreCache.Put", err)
	}
	return wrote, nil
}

// PurgeExpired deletes rows whose TTL has passed and reports how many were removed.
func (c *StoreCache) PurgeExpired(ctx context.Context) (int64, error) {
	res := c.db.WithContext(ctx).
		Where("expires_at <= ?", c.now().UTC()).
		Delete(&analytics.AggregationCacheEntry{})
	if res.Error != nil {
		return 0, classify.MapStoreError("StoreCache.PurgeExpired", res.Error)
	}
	if res.RowsAffected > 0 {
		c.log.Debug("expired aggregation entries purged", "rows", res.RowsAffected)
	}
	return res.RowsAffected, nil
}
