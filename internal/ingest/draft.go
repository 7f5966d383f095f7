package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/anonto42/trendpulse/backend/internal/models"
	"github.com/anonto42/trendpulse/backend/internal/repositories"
)

// Draft is a platform item mapped onto the canonical trend fields, ready to upsert.
type Draft struct {
	Trend      models.Trend
	Tags       []string
	Aggregated *models.AggregatedContent
}

// record builds the row to insert, truncating text columns to their limits.
func (d *Draft) record() *models.Trend {
	t := d.Trend
	t.ExternalID = truncate(t.ExternalID, models.MaxExternalIDLength)
	t.Title = truncate(t.Title, models.MaxTitleLength)
	t.Author = truncate(t.Author, models.MaxAuthorLength)
	t.URL = truncate(t.URL, models.MaxURLLength)
	t.Thumbnail = truncate(t.Thumbnail, models.MaxURLLength)

	t.Tags = nil
	seen := make(map[string]struct{}, len(d.Tags))
	for _, name := range d.Tags {
		name = truncate(name, models.MaxTagLength)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		t.Tags = append(t.Tags, models.Tag{Name: name})
	}

	t.Aggregated = nil
	if d.Aggregated != nil {
		agg := *d.Aggregated
		agg.Title = truncate(agg.Title, models.MaxTitleLength)
		agg.Author = truncate(agg.Author, models.MaxAuthorLength)
		t.Aggregated = []models.AggregatedContent{agg}
	}
	return &t
}

// upsert inserts the draft as a new trend, or refreshes the metrics of the
// trend already stored under the same (platform, external_id).
func upsert(ctx context.Context, repo repositories.TrendRepository, d *Draft) (bool, error) {
	externalID := truncate(d.Trend.ExternalID, models.MaxExternalIDLength)
	existing, err := repo.FindTrend(ctx, d.Trend.Platform, externalID)
	switch {
	case err == nil:
		if err := repo.UpdateTrendMetrics(ctx, existing.ID, d.Trend.Views, d.Trend.Likes, d.Trend.Comments); err != nil {
			return false, fmt.Errorf("update trend %d: %w", existing.ID, err)
		}
		return false, nil
	case errors.Is(err, repositories.ErrTrendNotFound):
		if err := repo.InsertTrend(ctx, d.record()); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, fmt.Errorf("find trend: %w", err)
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func nonNegative(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}

func strPtr(s string) *string {
	return &s
}
