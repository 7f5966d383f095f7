package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/anonto42/trendpulse/backend/internal/classifier"
	"github.com/anonto42/trendpulse/backend/internal/clients"
	"github.com/anonto42/trendpulse/backend/internal/models"
	"github.com/anonto42/trendpulse/backend/internal/repositories"
	"github.com/anonto42/trendpulse/backend/pkg/config"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
	"gorm.io/datatypes"
)

const youtubeWatchURL = "https://www.youtube.com/watch?v="

// YouTubeAdapter maps trending-chart videos to drafts.
type YouTubeAdapter struct {
	TagLimit int
}

// ToDraft converts one video. It fails when the id or snippet is missing or
// publishedAt is not RFC 3339.
func (a YouTubeAdapter) ToDraft(v *youtube.Video) (*Draft, error) {
	if v == nil || v.Id == "" {
		return nil, errors.New("video without id")
	}
	if v.Snippet == nil {
		return nil, fmt.Errorf("video %s has no snippet", v.Id)
	}
	publishedAt, err := time.Parse(time.RFC3339, v.Snippet.PublishedAt)
	if err != nil {
		return nil, fmt.Errorf("video %s: invalid publishedAt %q: %w", v.Id, v.Snippet.PublishedAt, err)
	}
	publishedAt = publishedAt.UTC()

	var views, likes, comments int64
	if s := v.Statistics; s != nil {
		views, likes, comments = clampCount(s.ViewCount), clampCount(s.LikeCount), clampCount(s.CommentCount)
	}

	thumbnail := ""
	if th := v.Snippet.Thumbnails; th != nil && th.Default != nil {
		thumbnail = th.Default.Url
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("video %s: encode payload: %w", v.Id, err)
	}
	summary, err := json.Marshal(map[string]interface{}{
		"id":         v.Id,
		"statistics": v.Statistics,
	})
	if err != nil {
		return nil, fmt.Errorf("video %s: encode statistics: %w", v.Id, err)
	}

	snippet := v.Snippet
	return &Draft{
		Trend: models.Trend{
			Platform:    models.PlatformYouTube,
			ExternalID:  v.Id,
			Title:       snippet.Title,
			Description: snippet.Description,
			Category:    strPtr(classifier.Classify(snippet.Title + " " + snippet.Description)),
			Author:      snippet.ChannelTitle,
			URL:         youtubeWatchURL + v.Id,
			Thumbnail:   thumbnail,
			Content:     datatypes.JSON(raw),
			Views:       views,
			Likes:       likes,
			Comments:    comments,
			Volume:      views,
			PublishedAt: &publishedAt,
		},
		Tags: a.tags(snippet),
		Aggregated: &models.AggregatedContent{
			Platform: models.PlatformYouTube,
			Title:    snippet.Title,
			Content:  datatypes.JSON(summary),
			Author:   snippet.ChannelTitle,
			Likes:    likes,
			Comments: comments,
			Views:    views,
		},
	}, nil
}

// clampCount converts an API counter, saturating at math.MaxInt64.
func clampCount(n uint64) int64 {
	if n > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(n)
}

// tags prefers the uploader's tags and falls back to description hashtags.
func (a YouTubeAdapter) tags(s *youtube.VideoSnippet) []string {
	tags := dedupe(s.Tags)
	if len(tags) == 0 {
		tags = classifier.ExtractHashtags(s.Description)
	}
	if a.TagLimit > 0 && len(tags) > a.TagLimit {
		tags = tags[:a.TagLimit]
	}
	return tags
}

// YouTubeFetcher ingests the regional trending chart.
type YouTubeFetcher struct {
	cfg     config.YouTubeConfig
	repo    repositories.TrendRepository
	options []option.ClientOption
}

// NewYouTubeFetcher creates a fetcher. Client options are passed through to
// the YouTube service on every fetch.
func NewYouTubeFetcher(cfg config.YouTubeConfig, repo repositories.TrendRepository, opts ...option.ClientOption) *YouTubeFetcher {
	return &YouTubeFetcher{cfg: cfg, repo: repo, options: opts}
}

// Fetch requests one page of trending videos and upserts each video in its own
// transaction. Item-level failures are logged and skipped; request and storage
// failures end the fetch with an error result.
func (f *YouTubeFetcher) Fetch(ctx context.Context) Result {
	if !f.cfg.Configured() {
		slog.Error("[YouTubeFetcher] API key not configured")
		return failure("YouTube API key not configured")
	}

	client, err := clients.NewYouTubeClient(ctx, f.cfg.APIKey, f.options...)
	if err != nil {
		return failure(err.Error())
	}

	videos, err := client.TrendingVideos(ctx, f.cfg.Region, f.cfg.MaxResults)
	if err != nil {
		slog.Error("[YouTubeFetcher] Failed to fetch trending videos", slog.String("error", err.Error()))
		return failure(err.Error())
	}

	adapter := YouTubeAdapter{TagLimit: f.cfg.TagLimit}
	inserted := 0
	for _, v := range videos {
		draft, err := adapter.ToDraft(v)
		if err != nil {
			slog.Warn("[YouTubeFetcher] Skipping video", slog.String("error", err.Error()))
			continue
		}

		var created bool
		err = f.repo.Transaction(ctx, func(tx repositories.TrendRepository) error {
			var err error
			created, err = upsert(ctx, tx, draft)
			return err
		})
		if err != nil {
			slog.Error("[YouTubeFetcher] Failed to store video",
				slog.String("video_id", v.Id),
				slog.String("error", err.Error()))
			return failure(err.Error())
		}
		if created {
			inserted++
		}
	}

	slog.Info("[YouTubeFetcher] Fetch completed",
		slog.Int("received", len(videos)),
		slog.Int("inserted", inserted))
	return success(inserted)
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok || v == "" {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
