package repositories

import (
	"testing"
	"time"

	"github.com/anonto42/trendpulse/backend/internal/models"
	"github.com/anonto42/trendpulse/backend/internal/testutil"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	return testutil.NewDB(t)
}

func seedTrend(t *testing.T, db *gorm.DB, platform, externalID string, createdAt time.Time, tags ...string) *models.Trend {
	t.Helper()
	return testutil.SeedTrend(t, db, platform, externalID, createdAt, tags...)
}
