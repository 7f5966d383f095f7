package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anonto42/trendpulse/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestInsertAndFindTrend(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgresTrendRepository(newTestDB(t))

	category := "tecnologia"
	trend := &models.Trend{
		Platform:   models.PlatformYouTube,
		ExternalID: "abc",
		Title:      "New phone",
		Category:   &category,
		Views:      100,
		Tags:       []models.Tag{{Name: "phone"}, {Name: "tech"}},
		Aggregated: []models.AggregatedContent{{
			Platform: models.PlatformYouTube,
			Title:    "New phone",
			Content:  datatypes.JSON(`{"id":"abc"}`),
		}},
	}
	require.NoError(t, repo.InsertTrend(ctx, trend))
	require.NotZero(t, trend.ID)

	found, err := repo.FindTrend(ctx, models.PlatformYouTube, "abc")
	require.NoError(t, err)
	assert.Equal(t, trend.ID, found.ID)
	assert.Equal(t, int64(100), found.Views)

	_, err = repo.FindTrend(ctx, models.PlatformReddit, "abc")
	assert.ErrorIs(t, err, ErrTrendNotFound)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Trends)
	assert.Equal(t, int64(2), stats.Tags)
	assert.Equal(t, int64(1), stats.Aggregated)
	assert.Equal(t, int64(1), stats.ByPlatform[models.PlatformYouTube])
}

func TestInsertTag(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewPostgresTrendRepository(db)

	trend := seedTrend(t, db, models.PlatformReddit, "technology_1", time.Now().UTC(), "technology")
	require.NoError(t, repo.InsertTag(ctx, trend.ID, "golang"))

	got, err := repo.GetTrendByID(ctx, trend.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"technology", "golang"}, got.TagNames())

	// Tags must belong to a stored trend.
	assert.Error(t, repo.InsertTag(ctx, 9999, "orphan"))
}

func TestInsertTrendRejectsDuplicateKey(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgresTrendRepository(newTestDB(t))

	require.NoError(t, repo.InsertTrend(ctx, &models.Trend{Platform: models.PlatformYouTube, ExternalID: "dup", Title: "a"}))
	err := repo.InsertTrend(ctx, &models.Trend{Platform: models.PlatformYouTube, ExternalID: "dup", Title: "b"})
	assert.Error(t, err)

	// Same external id on another platform is a different trend.
	require.NoError(t, repo.InsertTrend(ctx, &models.Trend{Platform: models.PlatformReddit, ExternalID: "dup", Title: "c"}))

	count, err := repo.CountTrends(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestUpdateTrendMetrics(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewPostgresTrendRepository(db)

	old := time.Now().UTC().Add(-time.Hour)
	trend := seedTrend(t, db, models.PlatformYouTube, "v1", old)

	require.NoError(t, repo.UpdateTrendMetrics(ctx, trend.ID, 10, 5, 2))

	got, err := repo.GetTrendByID(ctx, trend.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Views)
	assert.Equal(t, int64(5), got.Likes)
	assert.Equal(t, int64(2), got.Comments)
	assert.True(t, got.UpdatedAt.After(old))

	assert.ErrorIs(t, repo.UpdateTrendMetrics(ctx, 9999, 1, 1, 1), ErrTrendNotFound)
}

func TestTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgresTrendRepository(newTestDB(t))
	boom := errors.New("boom")

	err := repo.Transaction(ctx, func(tx TrendRepository) error {
		if err := tx.InsertTrend(ctx, &models.Trend{Platform: models.PlatformReddit, ExternalID: "r1", Title: "x"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	count, err := repo.CountTrends(ctx, models.PlatformReddit)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestNestedTransactionKeepsOuterWork(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgresTrendRepository(newTestDB(t))

	err := repo.Transaction(ctx, func(tx TrendRepository) error {
		require.NoError(t, tx.InsertTrend(ctx, &models.Trend{Platform: models.PlatformReddit, ExternalID: "ok", Title: "x"}))

		inner := tx.Transaction(ctx, func(inner TrendRepository) error {
			if err := inner.InsertTrend(ctx, &models.Trend{Platform: models.PlatformReddit, ExternalID: "bad", Title: "y"}); err != nil {
				return err
			}
			return errors.New("discard")
		})
		assert.Error(t, inner)
		return nil
	})
	require.NoError(t, err)

	_, err = repo.FindTrend(ctx, models.PlatformReddit, "ok")
	assert.NoError(t, err)
	_, err = repo.FindTrend(ctx, models.PlatformReddit, "bad")
	assert.ErrorIs(t, err, ErrTrendNotFound)
}

func TestRetentionQueries(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewPostgresTrendRepository(db)
	now := time.Now().UTC()

	a := seedTrend(t, db, models.PlatformYouTube, "a", now.Add(-1*time.Hour), "x")
	b := seedTrend(t, db, models.PlatformYouTube, "b", now.Add(-2*time.Hour))
	c := seedTrend(t, db, models.PlatformYouTube, "c", now.Add(-40*24*time.Hour), "y", "z")
	d := seedTrend(t, db, models.PlatformReddit, "d", now.Add(-50*24*time.Hour))

	recent, err := repo.ListTrendIDsByRecency(ctx, models.PlatformYouTube, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint{a.ID, b.ID}, recent)

	rest, err := repo.ListTrendIDsExcept(ctx, models.PlatformYouTube, recent)
	require.NoError(t, err)
	assert.Equal(t, []uint{c.ID}, rest)

	old, err := repo.ListTrendIDsOlderThan(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, map[string][]uint{
		models.PlatformYouTube: {c.ID},
		models.PlatformReddit:  {d.ID},
	}, old)

	ids := []uint{c.ID, d.ID}
	require.NoError(t, repo.DeleteTagsForTrends(ctx, ids))
	require.NoError(t, repo.DeleteAggregatedContentForTrends(ctx, ids))
	require.NoError(t, repo.DeleteTrends(ctx, ids))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Trends)
	assert.Equal(t, int64(1), stats.Tags)

	platforms, err := repo.DistinctPlatforms(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{models.PlatformYouTube}, platforms)

	latest, err := repo.LatestTrend(ctx)
	require.NoError(t, err)
	assert.Equal(t, a.ID, latest.ID)
}

func TestListTrendsFiltersAndPaginates(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewPostgresTrendRepository(db)
	now := time.Now().UTC()

	for i, id := range []string{"1", "2", "3"} {
		seedTrend(t, db, models.PlatformYouTube, id, now.Add(-time.Duration(i)*time.Minute), "tag"+id)
	}
	seedTrend(t, db, models.PlatformReddit, "r", now)

	trends, total, err := repo.ListTrends(ctx, models.TrendQuery{Platform: models.PlatformYouTube, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, trends, 2)
	assert.Equal(t, "1", trends[0].ExternalID)
	assert.Equal(t, []string{"tag1"}, trends[0].TagNames())

	trends, _, err = repo.ListTrends(ctx, models.TrendQuery{Platform: models.PlatformYouTube, Limit: 2, Skip: 2})
	require.NoError(t, err)
	require.Len(t, trends, 1)
	assert.Equal(t, "3", trends[0].ExternalID)

	byPlatform, err := repo.CountByPlatform(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.NameCount{{Name: models.PlatformYouTube, Count: 3}, {Name: models.PlatformReddit, Count: 1}}, byPlatform)

	_, err = repo.GetTrendByID(ctx, 12345)
	assert.ErrorIs(t, err, ErrTrendNotFound)
}
