package models

import (
	"time"

	"gorm.io/datatypes"
)

// Platform names used as the first half of the trend dedup key.
const (
	PlatformYouTube = "youtube"
	PlatformReddit  = "reddit"
	PlatformTwitter = "twitter"
)

// Column limits enforced before insert.
const (
	MaxTitleLength      = 500
	MaxAuthorLength     = 255
	MaxURLLength        = 1000
	MaxExternalIDLength = 255
	MaxTagLength        = 100
)

// Trend is one normalized unit of trending content stored in PostgreSQL.
// (Platform, ExternalID) is unique.
type Trend struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Platform    string         `json:"platform" gorm:"size:50;not null;index;uniqueIndex:idx_trends_platform_external_id"`
	ExternalID  string         `json:"external_id" gorm:"size:255;not null;uniqueIndex:idx_trends_platform_external_id"`
	Title       string         `json:"title" gorm:"size:500;not null"`
	Description string         `json:"description" gorm:"type:text"`
	Category    *string        `json:"category" gorm:"size:50;index"`
	Author      string         `json:"author" gorm:"size:255"`
	URL         string         `json:"url" gorm:"size:1000"`
	Thumbnail   string         `json:"thumbnail" gorm:"size:1000"`
	Content     datatypes.JSON `json:"-"`
	Views       int64          `json:"views" gorm:"not null;default:0"`
	Likes       int64          `json:"likes" gorm:"not null;default:0"`
	Comments    int64          `json:"comments" gorm:"not null;default:0"`
	Volume      int64          `json:"volume" gorm:"not null;default:0"`
	PublishedAt *time.Time     `json:"published_at"`
	CreatedAt   time.Time      `json:"created_at" gorm:"index"`
	UpdatedAt   time.Time      `json:"updated_at"`

	Tags       []Tag               `json:"tags,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Aggregated []AggregatedContent `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// Tag is a label attached to a single trend (hashtag, flair or subreddit name).
type Tag struct {
	ID      uint   `json:"id" gorm:"primaryKey"`
	TrendID uint   `json:"trend_id" gorm:"not null;index"`
	Name    string `json:"name" gorm:"size:100;not null;index"`
}

// AggregatedContent keeps the raw sub-item behind a trend for drill-down.
type AggregatedContent struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	TrendID   uint           `json:"trend_id" gorm:"not null;index"`
	Platform  string         `json:"platform" gorm:"size:50;not null"`
	Title     string         `json:"title" gorm:"size:500"`
	Content   datatypes.JSON `json:"content"`
	Author    string         `json:"author" gorm:"size:255"`
	Likes     int64          `json:"likes" gorm:"not null;default:0"`
	Comments  int64          `json:"comments" gorm:"not null;default:0"`
	Views     int64          `json:"views" gorm:"not null;default:0"`
	CreatedAt time.Time      `json:"created_at"`
}

// TableName keeps the table name from the first schema version.
func (AggregatedContent) TableName() string {
	return "aggregated_content"
}

// TagNames returns the names of the trend's loaded tags.
func (t *Trend) TagNames() []string {
	names := make([]string, 0, len(t.Tags))
	for _, tag := range t.Tags {
		names = append(names, tag.Name)
	}
	return names
}

// TrendQuery defines the filters accepted by the trend listing endpoint
type TrendQuery struct {
	Platform string `query:"platform" validate:"omitempty,oneof=youtube reddit twitter"`
	Category string `query:"category" validate:"omitempty,max=50"`
	Limit    int    `query:"limit" validate:"min=1,max=1000"`
	Skip     int    `query:"skip" validate:"min=0"`
}

// CleanupRequest defines the thresholds accepted by the cleanup endpoint
type CleanupRequest struct {
	MaxAgeDays            int `json:"max_age_days" query:"max_age_days" validate:"min=1,max=3650"`
	MaxRecordsPerPlatform int `json:"max_records_per_platform" query:"max_records_per_platform" validate:"min=1"`
}

// NameCount is one row of a grouped count (categories, platforms).
type NameCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// DatabaseStats summarizes table sizes for the stats endpoint.
type DatabaseStats struct {
	Trends      int64            `json:"trends"`
	Tags        int64            `json:"tags"`
	Aggregated  int64            `json:"aggregated_content"`
	ByPlatform  map[string]int64 `json:"by_platform"`
	OldestTrend *time.Time       `json:"oldest_trend,omitempty"`
	NewestTrend *time.Time       `json:"newest_trend,omitempty"`
}
