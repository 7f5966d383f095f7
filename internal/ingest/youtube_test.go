package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/anonto42/trendpulse/backend/internal/models"
	"github.com/anonto42/trendpulse/backend/internal/repositories"
	"github.com/anonto42/trendpulse/backend/internal/testutil"
	"github.com/anonto42/trendpulse/backend/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
	"gorm.io/gorm"
)

func videoJSON(id, title, description, publishedAt string, tags []string, views int) string {
	tagJSON, _ := json.Marshal(tags)
	return fmt.Sprintf(`{
		"id": %q,
		"snippet": {
			"title": %q, "description": %q, "channelTitle": "Canal", "publishedAt": %q,
			"tags": %s,
			"thumbnails": {"default": {"url": "https://i.ytimg.com/vi/%s/default.jpg"}}
		},
		"statistics": {"viewCount": "%d", "likeCount": "10", "commentCount": "3"}
	}`, id, title, description, publishedAt, tagJSON, id, views)
}

type youtubeStub struct {
	calls int32
	views int32
}

func (s *youtubeStub) handler(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&s.calls, 1)
	views := int(atomic.LoadInt32(&s.views))
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"items": [%s, %s, %s]}`,
		videoJSON("v1", "Novo smartphone lançado", "review", "2024-05-01T12:00:00Z", []string{"phone", "tech", "phone", "review", "extra"}, views),
		videoJSON("v2", "Broken", "bad date", "yesterday", nil, views),
		videoJSON("v3", "Receita de bolo", "Faça em casa #bolo #receita #bolo #doce #cozinha", "2024-05-02T08:30:00Z", nil, views),
	)
}

func newYouTubeFetcher(t *testing.T, db *gorm.DB, stub *youtubeStub, apiKey string) *YouTubeFetcher {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(stub.handler))
	t.Cleanup(srv.Close)

	cfg := config.YouTubeConfig{APIKey: apiKey, Region: "BR", MaxResults: 10, TagLimit: 3}
	return NewYouTubeFetcher(cfg, repositories.NewPostgresTrendRepository(db),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
}

func TestYouTubeFetcher_InsertsAndSkipsBadItems(t *testing.T) {
	db := testutil.NewDB(t)
	stub := &youtubeStub{views: 100}
	fetcher := newYouTubeFetcher(t, db, stub, "key")

	result := fetcher.Fetch(context.Background())
	require.True(t, result.OK(), result.Error)
	assert.Equal(t, 2, result.Count)

	var v1 models.Trend
	require.NoError(t, db.Preload("Tags").Preload("Aggregated").Where("external_id = ?", "v1").First(&v1).Error)
	assert.Equal(t, models.PlatformYouTube, v1.Platform)
	assert.Equal(t, "tecnologia", *v1.Category)
	assert.Equal(t, "https://www.youtube.com/watch?v=v1", v1.URL)
	assert.Equal(t, "https://i.ytimg.com/vi/v1/default.jpg", v1.Thumbnail)
	assert.Equal(t, "Canal", v1.Author)
	assert.Equal(t, int64(100), v1.Views)
	assert.Equal(t, int64(100), v1.Volume)
	assert.Equal(t, []string{"phone", "tech", "review"}, v1.TagNames())
	require.Len(t, v1.Aggregated, 1)
	require.NotNil(t, v1.PublishedAt)
	assert.Equal(t, 2024, v1.PublishedAt.Year())

	var v3 models.Trend
	require.NoError(t, db.Preload("Tags").Where("external_id = ?", "v3").First(&v3).Error)
	assert.Equal(t, []string{"bolo", "receita", "doce"}, v3.TagNames())
	assert.Equal(t, "outros", *v3.Category)

	var count int64
	db.Model(&models.Trend{}).Where("external_id = ?", "v2").Count(&count)
	assert.Zero(t, count)
}

func TestYouTubeFetcher_IsIdempotent(t *testing.T) {
	db := testutil.NewDB(t)
	stub := &youtubeStub{views: 100}
	fetcher := newYouTubeFetcher(t, db, stub, "key")
	ctx := context.Background()

	require.Equal(t, 2, fetcher.Fetch(ctx).Count)

	atomic.StoreInt32(&stub.views, 250)
	second := fetcher.Fetch(ctx)
	require.True(t, second.OK(), second.Error)
	assert.Equal(t, 0, second.Count)

	var trends []models.Trend
	require.NoError(t, db.Where("platform = ?", models.PlatformYouTube).Find(&trends).Error)
	require.Len(t, trends, 2)
	for _, tr := range trends {
		assert.Equal(t, int64(250), tr.Views)
	}

	var tags int64
	db.Model(&models.Tag{}).Count(&tags)
	assert.Equal(t, int64(6), tags)
}

func TestYouTubeFetcher_MissingKey(t *testing.T) {
	db := testutil.NewDB(t)
	stub := &youtubeStub{}
	fetcher := newYouTubeFetcher(t, db, stub, "")

	result := fetcher.Fetch(context.Background())
	assert.False(t, result.OK())
	assert.Equal(t, "YouTube API key not configured", result.Error)
	assert.Zero(t, atomic.LoadInt32(&stub.calls))

	var count int64
	db.Model(&models.Trend{}).Count(&count)
	assert.Zero(t, count)
}

func TestYouTubeFetcher_RequestFailure(t *testing.T) {
	db := testutil.NewDB(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": {"code": 403, "message": "quota exceeded"}}`))
	}))
	t.Cleanup(srv.Close)

	fetcher := NewYouTubeFetcher(config.YouTubeConfig{APIKey: "key", Region: "BR", MaxResults: 10},
		repositories.NewPostgresTrendRepository(db),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)

	result := fetcher.Fetch(context.Background())
	assert.False(t, result.OK())
	assert.Contains(t, result.Error, "quota exceeded")

	out, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, fmt.Sprintf(`{"error": %q}`, result.Error), string(out))
}

func TestYouTubeAdapter_ToDraft(t *testing.T) {
	adapter := YouTubeAdapter{TagLimit: 3}

	_, err := adapter.ToDraft(&youtube.Video{Id: "x"})
	assert.Error(t, err)

	draft, err := adapter.ToDraft(&youtube.Video{
		Id: "x",
		Snippet: &youtube.VideoSnippet{
			Title:       "Final do campeonato de futebol",
			PublishedAt: "2024-01-01T00:00:00Z",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "esportes", *draft.Trend.Category)
	assert.Zero(t, draft.Trend.Views)
	assert.Empty(t, draft.Trend.Thumbnail)
	assert.Empty(t, draft.Tags)
}

func TestResultJSON(t *testing.T) {
	out, err := json.Marshal(success(4))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status": "success", "count": 4}`, string(out))
}

func TestYouTubeAdapter_ClampsOversizedCounters(t *testing.T) {
	adapter := YouTubeAdapter{TagLimit: 3}

	draft, err := adapter.ToDraft(&youtube.Video{
		Id: "big",
		Snippet: &youtube.VideoSnippet{
			Title:       "Viral",
			PublishedAt: "2024-01-01T00:00:00Z",
		},
		Statistics: &youtube.VideoStatistics{
			ViewCount:    math.MaxUint64,
			LikeCount:    uint64(math.MaxInt64) + 1,
			CommentCount: 42,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), draft.Trend.Views)
	assert.Equal(t, int64(math.MaxInt64), draft.Trend.Volume)
	assert.Equal(t, int64(math.MaxInt64), draft.Trend.Likes)
	assert.Equal(t, int64(42), draft.Trend.Comments)
	assert.Equal(t, int64(math.MaxInt64), draft.Aggregated.Views)
}
