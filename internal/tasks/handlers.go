package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anonto42/trendpulse/backend/internal/ingest"
	"github.com/anonto42/trendpulse/backend/internal/retention"
	"github.com/anonto42/trendpulse/backend/pkg/config"
)

// Fetcher is a platform fetcher.
type Fetcher interface {
	Fetch(ctx context.Context) ingest.Result
}

// Cleaner is the retention job.
type Cleaner interface {
	Cleanup(ctx context.Context, maxAgeDays, maxRecords int) retention.Report
}

// Dependencies wires the task handlers to their implementations.
type Dependencies struct {
	YouTube      Fetcher
	Reddit       Fetcher
	Cleaner      Cleaner
	Orchestrator *Orchestrator
	Retention    config.RetentionConfig
}

// RegisterHandlers binds every task name to its implementation.
func RegisterHandlers(w *Worker, deps Dependencies) {
	w.Register(FetchYouTubeTrends, fetchHandler(deps.YouTube))
	w.Register(FetchRedditTrends, fetchHandler(deps.Reddit))

	w.Register(FetchAllTrends, func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
		return deps.Orchestrator.FetchAll(ctx), nil
	})

	w.Register(CheckMissedTasks, func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
		report := deps.Orchestrator.CheckMissed(ctx)
		if report.Error != "" {
			return report, errors.New(report.Error)
		}
		return report, nil
	})

	w.Register(CleanOldTrends, func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		params, err := DecodeCleanupParams(raw, deps.Retention)
		if err != nil {
			return nil, err
		}
		report := deps.Cleaner.Cleanup(ctx, params.MaxAgeDays, params.MaxRecordsPerPlatform)
		if report.Error != "" {
			return report, errors.New(report.Error)
		}
		return report, nil
	})
}

func fetchHandler(f Fetcher) Handler {
	return func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
		result := f.Fetch(ctx)
		if !result.OK() {
			return result, errors.New(result.Error)
		}
		return result, nil
	}
}

// DecodeCleanupParams reads task params, filling zero fields from defaults.
func DecodeCleanupParams(raw json.RawMessage, defaults config.RetentionConfig) (CleanupParams, error) {
	params := CleanupParams{}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &params); err != nil {
			return params, fmt.Errorf("decode cleanup params: %w", err)
		}
	}
	if params.MaxAgeDays == 0 {
		params.MaxAgeDays = defaults.MaxAgeDays
	}
	if params.MaxRecordsPerPlatform == 0 {
		params.MaxRecordsPerPlatform = defaults.MaxRecordsPerPlatform
	}
	return params, nil
}
