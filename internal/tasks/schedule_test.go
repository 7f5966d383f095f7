package tasks

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/anonto42/trendpulse/backend/internal/ingest"
	"github.com/anonto42/trendpulse/backend/internal/retention"
	"github.com/anonto42/trendpulse/backend/pkg/config"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSchedule(t *testing.T) {
	entries := DefaultSchedule(config.RetentionConfig{MaxAgeDays: 7, MaxRecordsPerPlatform: 1000})
	require.Len(t, entries, 5)

	known := map[string]bool{
		FetchAllTrends: true, FetchYouTubeTrends: true, FetchRedditTrends: true,
		CleanOldTrends: true, CheckMissedTasks: true,
	}
	names := make(map[string]bool)
	for _, e := range entries {
		_, err := cron.ParseStandard(e.Spec)
		assert.NoError(t, err, e.Name)
		assert.True(t, known[e.Task], e.Task)
		assert.False(t, names[e.Name], "duplicate entry %s", e.Name)
		assert.NotContains(t, e.Name, "twitter")
		names[e.Name] = true
	}

	byName := make(map[string]ScheduleEntry)
	for _, e := range entries {
		byName[e.Name] = e
	}
	assert.Equal(t, "30 */2 * * *", byName["update-reddit-every-2-hours"].Spec)
	assert.Equal(t, CleanupParams{MaxAgeDays: 7, MaxRecordsPerPlatform: 1000}, byName["clean-old-trends-daily"].Params)

	daily, err := cron.ParseStandard("CRON_TZ=UTC " + byName["clean-old-trends-daily"].Spec)
	require.NoError(t, err)
	from := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 6, 2, 3, 0, 0, 0, time.UTC), daily.Next(from))
}

func TestNewSchedulerRejectsBadSpec(t *testing.T) {
	_, err := NewScheduler(context.Background(), NewMemoryQueue(1), []ScheduleEntry{{Name: "bad", Spec: "every now and then", Task: FetchAllTrends}})
	assert.Error(t, err)

	s, err := NewScheduler(context.Background(), NewMemoryQueue(1), DefaultSchedule(config.RetentionConfig{MaxAgeDays: 1, MaxRecordsPerPlatform: 1}))
	require.NoError(t, err)
	s.Start()
	s.Stop()
}

func TestSchedulerFireEnqueuesWithParams(t *testing.T) {
	q := NewMemoryQueue(2)
	s, err := NewScheduler(context.Background(), q, nil)
	require.NoError(t, err)

	s.fire(context.Background(), ScheduleEntry{Name: "clean", Task: CleanOldTrends, Params: CleanupParams{MaxAgeDays: 2, MaxRecordsPerPlatform: 9}})

	task, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	require.NotNil(t, task)
	params, err := DecodeCleanupParams(task.Params, config.RetentionConfig{})
	require.NoError(t, err)
	assert.Equal(t, CleanupParams{MaxAgeDays: 2, MaxRecordsPerPlatform: 9}, params)
}

type fakeFetcher struct {
	result ingest.Result
	calls  int
}

func (f *fakeFetcher) Fetch(context.Context) ingest.Result {
	f.calls++
	return f.result
}

type fakeCleaner struct {
	gotAge, gotRecords int
	report             retention.Report
}

func (c *fakeCleaner) Cleanup(_ context.Context, maxAgeDays, maxRecords int) retention.Report {
	c.gotAge, c.gotRecords = maxAgeDays, maxRecords
	return c.report
}

func TestRegisterHandlers(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(8)
	w := NewWorker(q, 1, time.Minute)

	youtube := &fakeFetcher{result: ingest.Result{Error: "YouTube API key not configured"}}
	reddit := &fakeFetcher{result: ingest.Result{Count: 4}}
	cleaner := &fakeCleaner{report: retention.Report{Removed: 1}}
	RegisterHandlers(w, Dependencies{
		YouTube:      youtube,
		Reddit:       reddit,
		Cleaner:      cleaner,
		Orchestrator: NewOrchestrator(q, nil, time.Hour),
		Retention:    config.RetentionConfig{MaxAgeDays: 7, MaxRecordsPerPlatform: 1000},
	})

	run := func(name string, params interface{}) TaskResult {
		task, err := NewTask(name, params)
		require.NoError(t, err)
		return w.Execute(ctx, task)
	}

	yt := run(FetchYouTubeTrends, nil)
	assert.Equal(t, StateFailure, yt.State)
	assert.JSONEq(t, `{"error":"YouTube API key not configured"}`, string(yt.Result))

	rd := run(FetchRedditTrends, nil)
	assert.Equal(t, StateSuccess, rd.State)
	assert.JSONEq(t, `{"status":"success","count":4}`, string(rd.Result))

	cl := run(CleanOldTrends, map[string]int{"max_age_days": 30})
	assert.Equal(t, StateSuccess, cl.State)
	assert.Equal(t, 30, cleaner.gotAge)
	assert.Equal(t, 1000, cleaner.gotRecords)

	all := run(FetchAllTrends, nil)
	assert.Equal(t, StateSuccess, all.State)
	var report FetchAllReport
	require.NoError(t, json.Unmarshal(all.Result, &report))
	assert.Len(t, report.Updates, 3)
}

func TestDecodeCleanupParams(t *testing.T) {
	defaults := config.RetentionConfig{MaxAgeDays: 7, MaxRecordsPerPlatform: 1000}

	p, err := DecodeCleanupParams(nil, defaults)
	require.NoError(t, err)
	assert.Equal(t, CleanupParams{MaxAgeDays: 7, MaxRecordsPerPlatform: 1000}, p)

	_, err = DecodeCleanupParams(json.RawMessage(`{"max_age_days": "x"}`), defaults)
	assert.Error(t, err)
}
