package db

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/topicpulse-backend/internal/platform/envutil"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open connects to the store selected by DB_DRIVER and brings the schema up to date.
func Open(logg *logger.Logger) (*gorm.DB, error) {
	driver := strings.ToLower(envutil.String("DB_DRIVER", DriverPostgres))
	var gdb *gorm.DB
	switch driver {
	case DriverPostgres:
		svc, err := NewPostgresService(logg)
		if err != nil {
			return nil, err
		}
		gdb = svc.DB()
	case DriverSQLite:
		svc, err := NewSQLiteService(logg)
		if err != nil {
			return nil, err
		}
		gdb = svc.DB()
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", driver)
	}
	if envutil.Bool("DB_AUTO_MIGRATE", true) {
		if err := AutoMigrateAll(gdb); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
		if err := EnsureIndexes(gdb); err != nil {
			return nil, err
		}
	}
	return gdb, nil
}

// Dialect reports the dialector name ("postgres" or "sqlite").
func Dialect(gdb *gorm.DB) string {
	if gdb == nil || gdb.Dialector == nil {
		return ""
	}
	return gdb.Dialector.Name()
}
