package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anonto42/trendpulse/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrTrendNotFound is returned when no trend matches the lookup.
var ErrTrendNotFound = errors.New("trend not found")

// deleteChunkSize bounds the number of ids bound into a single IN clause.
const deleteChunkSize = 500

// TrendRepository defines the storage contract used by the ingestion, retention and API layers
type TrendRepository interface {
	// Transaction runs fn inside a transaction. Nested calls use savepoints.
	Transaction(ctx context.Context, fn func(repo TrendRepository) error) error

	FindTrend(ctx context.Context, platform, externalID string) (*models.Trend, error)
	InsertTrend(ctx context.Context, trend *models.Trend) error
	UpdateTrendMetrics(ctx context.Context, id uint, views, likes, comments int64) error
	InsertTag(ctx context.Context, trendID uint, name string) error

	DeleteTrends(ctx context.Context, ids []uint) error
	DeleteTagsForTrends(ctx context.Context, ids []uint) error
	DeleteAggregatedContentForTrends(ctx context.Context, ids []uint) error
	CountTrends(ctx context.Context, platform string) (int64, error)
	ListTrendIDsByRecency(ctx context.Context, platform string, limit int) ([]uint, error)
	ListTrendIDsExcept(ctx context.Context, platform string, keep []uint) ([]uint, error)
	ListTrendIDsOlderThan(ctx context.Context, cutoff time.Time) (map[string][]uint, error)
	DistinctPlatforms(ctx context.Context) ([]string, error)
	LatestTrend(ctx context.Context) (*models.Trend, error)

	ListTrends(ctx context.Context, query models.TrendQuery) ([]models.Trend, int64, error)
	GetTrendByID(ctx context.Context, id uint) (*models.Trend, error)
	CountByCategory(ctx context.Context) ([]models.NameCount, error)
	CountByPlatform(ctx context.Context) ([]models.NameCount, error)
	Stats(ctx context.Context) (*models.DatabaseStats, error)
	Ping(ctx context.Context) error
}

// PostgresTrendRepository implements TrendRepository for PostgreSQL
type PostgresTrendRepository struct {
	db *gorm.DB
}

// NewPostgresTrendRepository creates a new PostgresTrendRepository
func NewPostgresTrendRepository(db *gorm.DB) *PostgresTrendRepository {
	return &PostgresTrendRepository{db: db}
}

func (r *PostgresTrendRepository) Transaction(ctx context.Context, fn func(repo TrendRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&PostgresTrendRepository{db: tx})
	})
}

// FindTrend looks a trend up by its dedup key. It returns ErrTrendNotFound when absent.
func (r *PostgresTrendRepository) FindTrend(ctx context.Context, platform, externalID string) (*models.Trend, error) {
	var trend models.Trend
	err := r.db.WithContext(ctx).
		Where("platform = ? AND external_id = ?", platform, externalID).
		First(&trend).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTrendNotFound
		}
		return nil, err
	}
	return &trend, nil
}

// InsertTrend inserts the trend row followed by its tags and aggregated content.
// Callers wanting atomicity run it inside Transaction.
func (r *PostgresTrendRepository) InsertTrend(ctx context.Context, trend *models.Trend) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(trend).Error; err != nil {
		return fmt.Errorf("insert trend %s/%s: %w", trend.Platform, trend.ExternalID, err)
	}

	for i := range trend.Tags {
		trend.Tags[i].TrendID = trend.ID
		if err := r.InsertTag(ctx, trend.ID, trend.Tags[i].Name); err != nil {
			return err
		}
	}
	for i := range trend.Aggregated {
		trend.Aggregated[i].TrendID = trend.ID
		if err := db.Create(&trend.Aggregated[i]).Error; err != nil {
			return fmt.Errorf("insert aggregated content: %w", err)
		}
	}
	return nil
}

// UpdateTrendMetrics refreshes the engagement counters and updated_at of an existing trend.
func (r *PostgresTrendRepository) UpdateTrendMetrics(ctx context.Context, id uint, views, likes, comments int64) error {
	res := r.db.WithContext(ctx).Model(&models.Trend{}).Where("id = ?", id).Updates(map[string]interface{}{
		"views":      views,
		"likes":      likes,
		"comments":   comments,
		"updated_at": r.db.NowFunc(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTrendNotFound
	}
	return nil
}

// InsertTag attaches one tag to an existing trend.
func (r *PostgresTrendRepository) InsertTag(ctx context.Context, trendID uint, name string) error {
	if err := r.db.WithContext(ctx).Create(&models.Tag{TrendID: trendID, Name: name}).Error; err != nil {
		return fmt.Errorf("insert tag %q: %w", name, err)
	}
	return nil
}

// DeleteTrends removes trend rows. Child rows must already be gone.
func (r *PostgresTrendRepository) DeleteTrends(ctx context.Context, ids []uint) error {
	return r.deleteInChunks(ctx, ids, "id IN ?", &models.Trend{})
}

func (r *PostgresTrendRepository) DeleteTagsForTrends(ctx context.Context, ids []uint) error {
	return r.deleteInChunks(ctx, ids, "trend_id IN ?", &models.Tag{})
}

func (r *PostgresTrendRepository) DeleteAggregatedContentForTrends(ctx context.Context, ids []uint) error {
	return r.deleteInChunks(ctx, ids, "trend_id IN ?", &models.AggregatedContent{})
}

func (r *PostgresTrendRepository) deleteInChunks(ctx context.Context, ids []uint, cond string, model interface{}) error {
	for start := 0; start < len(ids); start += deleteChunkSize {
		end := start + deleteChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		if err := r.db.WithContext(ctx).Where(cond, ids[start:end]).Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}

// CountTrends counts the trends of one platform, or every trend when platform is empty.
func (r *PostgresTrendRepository) CountTrends(ctx context.Context, platform string) (int64, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&models.Trend{})
	if platform != "" {
		q = q.Where("platform = ?", platform)
	}
	if err := q.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListTrendIDsByRecency returns the ids of the newest trends of a platform by created_at.
func (r *PostgresTrendRepository) ListTrendIDsByRecency(ctx context.Context, platform string, limit int) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Trend{}).
		Where("platform = ?", platform).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

// ListTrendIDsExcept returns the ids of a platform's trends that are not in keep.
func (r *PostgresTrendRepository) ListTrendIDsExcept(ctx context.Context, platform string, keep []uint) ([]uint, error) {
	var ids []uint
	q := r.db.WithContext(ctx).Model(&models.Trend{}).Where("platform = ?", platform)
	if len(keep) > 0 {
		q = q.Where("id NOT IN ?", keep)
	}
	err := q.Pluck("id", &ids).Error
	return ids, err
}

// ListTrendIDsOlderThan groups the ids of trends created before cutoff by platform.
func (r *PostgresTrendRepository) ListTrendIDsOlderThan(ctx context.Context, cutoff time.Time) (map[string][]uint, error) {
	var rows []struct {
		ID       uint
		Platform string
	}
	err := r.db.WithContext(ctx).Model(&models.Trend{}).
		Select("id", "platform").
		Where("created_at < ?", cutoff).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	byPlatform := make(map[string][]uint)
	for _, row := range rows {
		byPlatform[row.Platform] = append(byPlatform[row.Platform], row.ID)
	}
	return byPlatform, nil
}

func (r *PostgresTrendRepository) DistinctPlatforms(ctx context.Context) ([]string, error) {
	var platforms []string
	err := r.db.WithContext(ctx).Model(&models.Trend{}).
		Distinct("platform").
		Order("platform").
		Pluck("platform", &platforms).Error
	return platforms, err
}

// LatestTrend returns the most recently ingested trend, or ErrTrendNotFound on an empty table.
func (r *PostgresTrendRepository) LatestTrend(ctx context.Context) (*models.Trend, error) {
	var trend models.Trend
	err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").First(&trend).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTrendNotFound
		}
		return nil, err
	}
	return &trend, nil
}

// ListTrends returns a page of trends, newest first, plus the total matching the filters.
func (r *PostgresTrendRepository) ListTrends(ctx context.Context, query models.TrendQuery) ([]models.Trend, int64, error) {
	var trends []models.Trend
	var total int64

	filtered := r.db.WithContext(ctx).Model(&models.Trend{})
	if query.Platform != "" {
		filtered = filtered.Where("platform = ?", query.Platform)
	}
	if query.Category != "" {
		filtered = filtered.Where("category = ?", query.Category)
	}

	if err := filtered.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := filtered.Session(&gorm.Session{}).
		Preload("Tags").
		Order("created_at DESC").Order("id DESC").
		Offset(query.Skip).Limit(query.Limit).
		Find(&trends).Error
	if err != nil {
		return nil, 0, err
	}
	return trends, total, nil
}

func (r *PostgresTrendRepository) GetTrendByID(ctx context.Context, id uint) (*models.Trend, error) {
	var trend models.Trend
	if err := r.db.WithContext(ctx).Preload("Tags").First(&trend, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTrendNotFound
		}
		return nil, err
	}
	return &trend, nil
}

// CountByCategory groups trends by category. Unclassified trends are reported as "".
func (r *PostgresTrendRepository) CountByCategory(ctx context.Context) ([]models.NameCount, error) {
	return r.groupCount(ctx, "COALESCE(category, '')")
}

func (r *PostgresTrendRepository) CountByPlatform(ctx context.Context) ([]models.NameCount, error) {
	return r.groupCount(ctx, "platform")
}

func (r *PostgresTrendRepository) groupCount(ctx context.Context, column string) ([]models.NameCount, error) {
	var counts []models.NameCount
	err := r.db.WithContext(ctx).Model(&models.Trend{}).
		Select(column + " AS name, COUNT(id) AS count").
		Group(column).
		Order("count DESC").
		Scan(&counts).Error
	return counts, err
}

// Stats returns row counts for every table and the created_at range of trends.
func (r *PostgresTrendRepository) Stats(ctx context.Context) (*models.DatabaseStats, error) {
	db := r.db.WithContext(ctx)
	stats := &models.DatabaseStats{ByPlatform: make(map[string]int64)}

	if err := db.Model(&models.Trend{}).Count(&stats.Trends).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Tag{}).Count(&stats.Tags).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.AggregatedContent{}).Count(&stats.Aggregated).Error; err != nil {
		return nil, err
	}

	platforms, err := r.CountByPlatform(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range platforms {
		stats.ByPlatform[p.Name] = p.Count
	}

	if stats.Trends > 0 {
		var oldest, newest models.Trend
		if err := db.Order("created_at ASC").First(&oldest).Error; err != nil {
			return nil, err
		}
		if err := db.Order("created_at DESC").First(&newest).Error; err != nil {
			return nil, err
		}
		stats.OldestTrend = &oldest.CreatedAt
		stats.NewestTrend = &newest.CreatedAt
	}
	return stats, nil
}

func (r *PostgresTrendRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
