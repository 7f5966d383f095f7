package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anonto42/trendpulse/backend/internal/models"
	"github.com/anonto42/trendpulse/backend/internal/repositories"
)

const twitterDisabledMessage = "Twitter temporarily disabled"

// PlatformStatus reports whether a platform fetch was dispatched.
type PlatformStatus struct {
	Executed bool   `json:"executed"`
	Message  string `json:"message"`
	TaskID   string `json:"task_id,omitempty"`
}

// FetchAllReport is keyed by platform name.
type FetchAllReport struct {
	Status  string                    `json:"status"`
	Updates map[string]PlatformStatus `json:"updates"`
}

// WatchdogReport is the outcome of a staleness check.
type WatchdogReport struct {
	Triggered     bool       `json:"triggered"`
	Reason        string     `json:"reason"`
	LatestTrendAt *time.Time `json:"latest_trend_at,omitempty"`
	TaskID        string     `json:"task_id,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// Orchestrator dispatches platform fetches and re-triggers them when data goes stale.
type Orchestrator struct {
	broker     Broker
	repo       repositories.TrendRepository
	staleAfter time.Duration
	now        func() time.Time
}

func NewOrchestrator(broker Broker, repo repositories.TrendRepository, staleAfter time.Duration) *Orchestrator {
	return &Orchestrator{
		broker:     broker,
		repo:       repo,
		staleAfter: staleAfter,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// FetchAll enqueues one fetch per enabled platform and returns without waiting
// for them. A platform that cannot be enqueued gets an error entry; the
// others are still dispatched.
func (o *Orchestrator) FetchAll(ctx context.Context) FetchAllReport {
	report := FetchAllReport{Status: "ok", Updates: make(map[string]PlatformStatus, 3)}

	dispatch := []struct {
		platform, task, label string
	}{
		{models.PlatformYouTube, FetchYouTubeTrends, "YouTube"},
		{models.PlatformReddit, FetchRedditTrends, "Reddit"},
	}
	for _, d := range dispatch {
		task, err := Submit(ctx, o.broker, d.task, nil)
		if err != nil {
			slog.Error("[Orchestrator] Failed to dispatch fetch",
				slog.String("platform", d.platform),
				slog.String("error", err.Error()))
			report.Updates[d.platform] = PlatformStatus{
				Executed: false,
				Message:  fmt.Sprintf("failed to schedule %s update: %v", d.label, err),
			}
			continue
		}
		report.Updates[d.platform] = PlatformStatus{
			Executed: true,
			Message:  d.label + " update scheduled",
			TaskID:   task.ID,
		}
	}
	report.Updates[models.PlatformTwitter] = PlatformStatus{Executed: false, Message: twitterDisabledMessage}

	slog.Info("[Orchestrator] Fetch all dispatched",
		slog.Bool("youtube", report.Updates[models.PlatformYouTube].Executed),
		slog.Bool("reddit", report.Updates[models.PlatformReddit].Executed))
	return report
}

// CheckMissed enqueues fetch_all_trends when no trend exists or the newest
// one is older than the stale threshold.
func (o *Orchestrator) CheckMissed(ctx context.Context) WatchdogReport {
	var report WatchdogReport

	latest, err := o.repo.LatestTrend(ctx)
	switch {
	case errors.Is(err, repositories.ErrTrendNotFound):
		report.Reason = "no trends stored"
	case err != nil:
		report.Error = err.Error()
		slog.Error("[Watchdog] Failed to read latest trend", slog.String("error", err.Error()))
		return report
	default:
		created := latest.CreatedAt.UTC()
		report.LatestTrendAt = &created
		age := o.now().Sub(created)
		if age <= o.staleAfter {
			report.Reason = fmt.Sprintf("latest trend is %s old", age.Truncate(time.Second))
			return report
		}
		report.Reason = fmt.Sprintf("latest trend is %s old, threshold %s", age.Truncate(time.Second), o.staleAfter)
	}

	task, err := Submit(ctx, o.broker, FetchAllTrends, nil)
	if err != nil {
		report.Error = err.Error()
		slog.Error("[Watchdog] Failed to trigger refresh", slog.String("error", err.Error()))
		return report
	}
	report.Triggered = true
	report.TaskID = task.ID
	slog.Warn("[Watchdog] Refresh triggered", slog.String("reason", report.Reason), slog.String("task_id", task.ID))
	return report
}
