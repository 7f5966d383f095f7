package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anonto42/trendpulse/backend/internal/classifier"
	"github.com/anonto42/trendpulse/backend/internal/clients"
	"github.com/anonto42/trendpulse/backend/internal/models"
	"github.com/anonto42/trendpulse/backend/internal/repositories"
	"github.com/anonto42/trendpulse/backend/pkg/config"
	"golang.org/x/oauth2"
	"gorm.io/datatypes"
)

const (
	redditBaseURL    = "https://www.reddit.com"
	noDescription    = "no description available"
	defaultViewScale = 5
)

// RedditAdapter maps hot-listing posts to drafts.
type RedditAdapter struct {
	ViewsPerScore int64
}

// ExternalID namespaces a post id by the subreddit it was listed in.
func ExternalID(subreddit, postID string) string {
	return subreddit + "_" + postID
}

// ToDraft converts one post listed under subreddit.
func (a RedditAdapter) ToDraft(subreddit string, p *clients.RedditPost) (*Draft, error) {
	if p == nil || p.ID == "" {
		return nil, errors.New("post without id")
	}

	views := a.views(p)
	score := nonNegative(p.Score)
	comments := nonNegative(p.NumComments)
	author := ""
	if p.Author != "" {
		author = "u/" + p.Author
	}

	url := p.URL
	if p.Permalink != "" {
		url = redditBaseURL + p.Permalink
	}

	tags := []string{strings.ToLower(p.Subreddit)}
	if p.Subreddit == "" {
		tags[0] = strings.ToLower(subreddit)
	}
	if p.LinkFlairText != nil && strings.TrimSpace(*p.LinkFlairText) != "" {
		tags = append(tags, strings.ToLower(strings.TrimSpace(*p.LinkFlairText)))
	}

	summary, err := json.Marshal(map[string]interface{}{
		"id":           p.ID,
		"subreddit":    p.Subreddit,
		"score":        p.Score,
		"num_comments": p.NumComments,
	})
	if err != nil {
		return nil, fmt.Errorf("post %s: encode summary: %w", p.ID, err)
	}

	raw := p.Raw
	if len(raw) == 0 {
		if raw, err = json.Marshal(p); err != nil {
			return nil, fmt.Errorf("post %s: encode payload: %w", p.ID, err)
		}
	}

	draft := &Draft{
		Trend: models.Trend{
			Platform:    models.PlatformReddit,
			ExternalID:  ExternalID(subreddit, p.ID),
			Title:       p.Title,
			Description: RedditDescription(p),
			Category:    strPtr(classifier.Classify(p.Title + " " + p.Subreddit)),
			Author:      author,
			URL:         url,
			Thumbnail:   RedditThumbnail(p),
			Content:     datatypes.JSON(raw),
			Views:       views,
			Likes:       score,
			Comments:    comments,
			Volume:      score,
		},
		Tags: tags,
		Aggregated: &models.AggregatedContent{
			Platform: models.PlatformReddit,
			Title:    p.Title,
			Content:  datatypes.JSON(summary),
			Author:   author,
			Likes:    score,
			Comments: comments,
			Views:    views,
		},
	}
	if p.CreatedUTC > 0 {
		published := p.CreatedAt()
		draft.Trend.PublishedAt = &published
	}
	return draft, nil
}

// views uses the reported view count when present, otherwise score times ViewsPerScore.
func (a RedditAdapter) views(p *clients.RedditPost) int64 {
	if p.ViewCount != nil && *p.ViewCount > 0 {
		return *p.ViewCount
	}
	scale := a.ViewsPerScore
	if scale <= 0 {
		scale = defaultViewScale
	}
	return nonNegative(p.Score * scale)
}

// RedditDescription returns the self text, or a summary of the post's link,
// media and preview URLs. It never returns an empty string.
func RedditDescription(p *clients.RedditPost) string {
	if p.Selftext != "" {
		return p.Selftext
	}

	var parts []string
	if p.URL != "" {
		parts = append(parts, "Link: "+p.URL)
	}
	if p.PostHint == "image" && p.URL != "" {
		parts = append(parts, "Image: "+p.URL)
	}
	if p.IsVideo && p.Media != nil && p.Media.RedditVideo != nil && p.Media.RedditVideo.FallbackURL != "" {
		parts = append(parts, "Video: "+p.Media.RedditVideo.FallbackURL)
	}
	if gallery := galleryURLs(p); len(gallery) > 0 {
		parts = append(parts, "Image gallery:")
		parts = append(parts, gallery...)
	}
	if preview := previewURL(p); preview != "" {
		parts = append(parts, "Preview: "+preview)
	}

	if len(parts) == 0 {
		return noDescription
	}
	return strings.Join(parts, "\n")
}

// RedditThumbnail picks the explicit thumbnail when it is a URL, then the
// image itself for image posts, then the first preview image.
func RedditThumbnail(p *clients.RedditPost) string {
	if strings.HasPrefix(p.Thumbnail, "http") {
		return p.Thumbnail
	}
	if p.PostHint == "image" && p.URL != "" {
		return p.URL
	}
	return previewURL(p)
}

func galleryURLs(p *clients.RedditPost) []string {
	if !p.IsGallery || p.GalleryData == nil {
		return nil
	}
	var urls []string
	for _, item := range p.GalleryData.Items {
		if meta, ok := p.MediaMetadata[item.MediaID]; ok && meta.S.U != "" {
			urls = append(urls, meta.S.U)
		}
	}
	return urls
}

func previewURL(p *clients.RedditPost) string {
	if p.Preview == nil || len(p.Preview.Images) == 0 {
		return ""
	}
	return p.Preview.Images[0].Source.URL
}

// RedditFetcher ingests the hot listing of a fixed set of subreddits.
type RedditFetcher struct {
	cfg    config.RedditConfig
	repo   repositories.TrendRepository
	client *clients.RedditClient
}

func NewRedditFetcher(cfg config.RedditConfig, repo repositories.TrendRepository, client *clients.RedditClient) *RedditFetcher {
	return &RedditFetcher{cfg: cfg, repo: repo, client: client}
}

// Fetch authenticates once and then processes each subreddit in its own
// transaction, so one failing subreddit neither aborts nor rolls back the others.
func (f *RedditFetcher) Fetch(ctx context.Context) Result {
	if !f.cfg.Configured() {
		slog.Error("[RedditFetcher] Credentials not configured")
		return failure("Reddit credentials not configured")
	}

	token, err := f.client.Authenticate(ctx, clients.RedditCredentials{
		ClientID:     f.cfg.ClientID,
		ClientSecret: f.cfg.Secret,
		Username:     f.cfg.Username,
		Password:     f.cfg.Password,
	})
	if err != nil {
		slog.Error("[RedditFetcher] Authentication failed", slog.String("error", err.Error()))
		return failure(err.Error())
	}

	adapter := RedditAdapter{ViewsPerScore: f.cfg.ViewsPerScore}
	inserted := 0
	for _, subreddit := range f.cfg.Subreddits {
		count, err := f.fetchSubreddit(ctx, token, adapter, subreddit)
		if err != nil {
			slog.Error("[RedditFetcher] Subreddit failed",
				slog.String("subreddit", subreddit),
				slog.String("error", err.Error()))
			continue
		}
		inserted += count
	}

	slog.Info("[RedditFetcher] Fetch completed", slog.Int("inserted", inserted))
	return success(inserted)
}

func (f *RedditFetcher) fetchSubreddit(ctx context.Context, token *oauth2.Token, adapter RedditAdapter, subreddit string) (int, error) {
	posts, err := f.client.HotPosts(ctx, token, subreddit, f.cfg.PostLimit)
	if err != nil {
		return 0, err
	}

	inserted := 0
	err = f.repo.Transaction(ctx, func(tx repositories.TrendRepository) error {
		for i := range posts {
			post := &posts[i]
			draft, err := adapter.ToDraft(subreddit, post)
			if err != nil {
				slog.Warn("[RedditFetcher] Skipping post",
					slog.String("subreddit", subreddit),
					slog.String("error", err.Error()))
				continue
			}

			var created bool
			err = tx.Transaction(ctx, func(item repositories.TrendRepository) error {
				var err error
				created, err = upsert(ctx, item, draft)
				return err
			})
			if err != nil {
				slog.Warn("[RedditFetcher] Failed to store post",
					slog.String("external_id", draft.Trend.ExternalID),
					slog.String("error", err.Error()))
				continue
			}
			if created {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.Info("[RedditFetcher] Subreddit processed",
		slog.String("subreddit", subreddit),
		slog.Int("posts", len(posts)),
		slog.Int("inserted", inserted))
	return inserted, nil
}
