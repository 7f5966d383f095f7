// Package retention bounds the trends table by age and by a per-platform row cap.
package retention

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/anonto42/trendpulse/backend/internal/repositories"
)

// PlatformReport counts the rows removed and kept for one platform.
type PlatformReport struct {
	Removed int64 `json:"removed"`
	Kept    int64 `json:"kept"`
}

// Report is the outcome of a cleanup run.
type Report struct {
	Removed    int64                     `json:"removed"`
	Kept       int64                     `json:"kept"`
	ByPlatform map[string]PlatformReport `json:"by_platform"`
	Error      string                    `json:"error,omitempty"`
}

// MarshalJSON adds "status" so reports read like other task results.
func (r Report) MarshalJSON() ([]byte, error) {
	type plain Report
	status := "success"
	if r.Error != "" {
		status = "error"
	}
	return json.Marshal(struct {
		Status string `json:"status"`
		plain
	}{status, plain(r)})
}

type Cleaner struct {
	repo repositories.TrendRepository
	now  func() time.Time
}

func NewCleaner(repo repositories.TrendRepository) *Cleaner {
	return &Cleaner{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// Cleanup deletes trends older than maxAgeDays, then trims every platform to
// its maxRecords most recent trends. Each step commits on its own, so a
// failure in the second step leaves the first in place.
func (c *Cleaner) Cleanup(ctx context.Context, maxAgeDays, maxRecords int) Report {
	report := Report{ByPlatform: make(map[string]PlatformReport)}
	if maxAgeDays < 1 || maxRecords < 1 {
		report.Error = fmt.Sprintf("invalid thresholds: max_age_days=%d max_records_per_platform=%d", maxAgeDays, maxRecords)
		return report
	}

	cutoff := c.now().AddDate(0, 0, -maxAgeDays)
	if err := c.step(&report, func(step *Report) error { return c.removeOlderThan(ctx, cutoff, step) }); err != nil {
		slog.Error("[Retention] Age cleanup failed", slog.String("error", err.Error()))
		report.Error = err.Error()
		return report
	}

	if err := c.step(&report, func(step *Report) error { return c.enforceCap(ctx, maxRecords, step) }); err != nil {
		slog.Error("[Retention] Record cap cleanup failed", slog.String("error", err.Error()))
		report.Error = err.Error()
		return report
	}

	slog.Info("[Retention] Cleanup completed",
		slog.Int64("removed", report.Removed),
		slog.Int64("kept", report.Kept),
		slog.Int("max_age_days", maxAgeDays),
		slog.Int("max_records_per_platform", maxRecords))
	return report
}

// step runs fn against a scratch report and folds it into report only when fn
// commits, so a rolled back step contributes no counts.
func (c *Cleaner) step(report *Report, fn func(step *Report) error) error {
	scratch := Report{ByPlatform: make(map[string]PlatformReport)}
	if err := fn(&scratch); err != nil {
		return err
	}
	report.Removed += scratch.Removed
	report.Kept += scratch.Kept
	for platform, s := range scratch.ByPlatform {
		p := report.ByPlatform[platform]
		p.Removed += s.Removed
		p.Kept += s.Kept
		report.ByPlatform[platform] = p
	}
	return nil
}

func (c *Cleaner) removeOlderThan(ctx context.Context, cutoff time.Time, report *Report) error {
	return c.repo.Transaction(ctx, func(tx repositories.TrendRepository) error {
		byPlatform, err := tx.ListTrendIDsOlderThan(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("list expired trends: %w", err)
		}

		var ids []uint
		for platform, platformIDs := range byPlatform {
			ids = append(ids, platformIDs...)
			p := report.ByPlatform[platform]
			p.Removed += int64(len(platformIDs))
			report.ByPlatform[platform] = p
		}
		if err := deleteWithChildren(ctx, tx, ids); err != nil {
			return err
		}
		report.Removed += int64(len(ids))
		return nil
	})
}

func (c *Cleaner) enforceCap(ctx context.Context, maxRecords int, report *Report) error {
	return c.repo.Transaction(ctx, func(tx repositories.TrendRepository) error {
		platforms, err := tx.DistinctPlatforms(ctx)
		if err != nil {
			return fmt.Errorf("list platforms: %w", err)
		}
		sort.Strings(platforms)

		for _, platform := range platforms {
			count, err := tx.CountTrends(ctx, platform)
			if err != nil {
				return fmt.Errorf("count %s trends: %w", platform, err)
			}

			p := report.ByPlatform[platform]
			if count > int64(maxRecords) {
				keep, err := tx.ListTrendIDsByRecency(ctx, platform, maxRecords)
				if err != nil {
					return fmt.Errorf("list recent %s trends: %w", platform, err)
				}
				excess, err := tx.ListTrendIDsExcept(ctx, platform, keep)
				if err != nil {
					return fmt.Errorf("list excess %s trends: %w", platform, err)
				}
				if err := deleteWithChildren(ctx, tx, excess); err != nil {
					return err
				}
				p.Removed += int64(len(excess))
				report.Removed += int64(len(excess))
				count -= int64(len(excess))
			}
			p.Kept = count
			report.ByPlatform[platform] = p
			report.Kept += count
		}
		return nil
	})
}

// deleteWithChildren removes tags and aggregated content before their trends.
func deleteWithChildren(ctx context.Context, tx repositories.TrendRepository, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.DeleteTagsForTrends(ctx, ids); err != nil {
		return fmt.Errorf("delete tags: %w", err)
	}
	if err := tx.DeleteAggregatedContentForTrends(ctx, ids); err != nil {
		return fmt.Errorf("delete aggregated content: %w", err)
	}
	if err := tx.DeleteTrends(ctx, ids); err != nil {
		return fmt.Errorf("delete trends: %w", err)
	}
	return nil
}
