package app

import (
	"context"
	"testing"
	"time"

	"github.com/anonto42/trendpulse/backend/internal/models"
	"github.com/anonto42/trendpulse/backend/internal/tasks"
	"github.com/anonto42/trendpulse/backend/internal/testutil"
	"github.com/anonto42/trendpulse/backend/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Reddit:             config.RedditConfig{UserAgent: "trendpulse-test/1.0", Subreddits: []string{"technology"}, PostLimit: 5},
		YouTube:            config.YouTubeConfig{Region: "BR", MaxResults: 10, TagLimit: 3},
		Retention:          config.RetentionConfig{MaxAgeDays: 7, MaxRecordsPerPlatform: 2},
		Worker:             config.WorkerConfig{Concurrency: 1, TaskTimeLimit: time.Minute},
		WatchdogStaleAfter: time.Hour,
	}
}

func TestNewBrokerWithoutAddress(t *testing.T) {
	broker := NewBroker(context.Background(), config.ValkeyConfig{})
	_, ok := broker.(*tasks.MemoryQueue)
	assert.True(t, ok)
}

func TestWorkerRunsRegisteredTasks(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	now := time.Now().UTC()
	for i, id := range []string{"a", "b", "c"} {
		testutil.SeedTrend(t, db, models.PlatformYouTube, id, now.Add(time.Duration(-i)*time.Minute))
	}

	a := Assemble(testConfig(), db, tasks.NewMemoryQueue(8))
	w := a.Worker()

	cleanup, err := tasks.NewTask(tasks.CleanOldTrends, nil)
	require.NoError(t, err)
	result := w.Execute(ctx, cleanup)
	assert.Equal(t, tasks.StateSuccess, result.State, result.Error)

	count, err := a.Trends.CountTrends(ctx, models.PlatformYouTube)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	fetch, err := tasks.NewTask(tasks.FetchYouTubeTrends, nil)
	require.NoError(t, err)
	result = w.Execute(ctx, fetch)
	assert.Equal(t, tasks.StateFailure, result.State)
	assert.JSONEq(t, `{"error":"YouTube API key not configured"}`, string(result.Result))
}

func TestRunPendingDrainsInProcessQueue(t *testing.T) {
	ctx := context.Background()
	a := Assemble(testConfig(), testutil.NewDB(t), tasks.NewMemoryQueue(8))
	require.True(t, a.InProcess())

	report := a.Orchestrator.CheckMissed(ctx)
	require.True(t, report.Triggered)

	results, err := a.RunPending(ctx)
	require.NoError(t, err)

	states := make(map[string]string)
	for _, r := range results {
		states[r.Name] = r.State
	}
	assert.Equal(t, map[string]string{
		tasks.FetchAllTrends:     tasks.StateSuccess,
		tasks.FetchYouTubeTrends: tasks.StateFailure,
		tasks.FetchRedditTrends:  tasks.StateFailure,
	}, states)
	assert.Equal(t, 0, a.Broker.(*tasks.MemoryQueue).Len())

	stored, err := a.Broker.Result(ctx, report.TaskID)
	require.NoError(t, err)
	assert.Equal(t, tasks.StateSuccess, stored.State)
}

type remoteBroker struct {
	*tasks.MemoryQueue
}

func TestRunPendingLeavesRemoteBrokerAlone(t *testing.T) {
	ctx := context.Background()
	broker := remoteBroker{tasks.NewMemoryQueue(4)}
	a := Assemble(testConfig(), testutil.NewDB(t), broker)
	require.False(t, a.InProcess())

	_, err := tasks.Submit(ctx, broker, tasks.FetchAllTrends, nil)
	require.NoError(t, err)

	results, err := a.RunPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 1, broker.Len())
}
