// Package testutil provides an in-memory database for package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/anonto42/trendpulse/backend/internal/models"
	"github.com/anonto42/trendpulse/backend/pkg/config"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a migrated in-memory SQLite database private to t. It is
// limited to one connection, so code under test must use the transaction
// handle it is given rather than the outer one.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", name)

	gormCfg := config.GormConfig()
	gormCfg.Logger = logger.Default.LogMode(logger.Silent)
	db, err := gorm.Open(sqlite.Open(dsn), gormCfg)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, config.Migrate(db))
	return db
}

// SeedTrend inserts a trend with the given creation time and tags.
func SeedTrend(t *testing.T, db *gorm.DB, platform, externalID string, createdAt time.Time, tags ...string) *models.Trend {
	t.Helper()

	trend := &models.Trend{
		Platform:   platform,
		ExternalID: externalID,
		Title:      "trend " + externalID,
		CreatedAt:  createdAt.UTC(),
		UpdatedAt:  createdAt.UTC(),
	}
	for _, tag := range tags {
		trend.Tags = append(trend.Tags, models.Tag{Name: tag})
	}
	require.NoError(t, db.Create(trend).Error)
	return trend
}
