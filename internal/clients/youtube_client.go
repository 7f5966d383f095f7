package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// YouTubeClient reads the most-popular chart of the YouTube Data API v3.
type YouTubeClient struct {
	service *youtube.Service
}

// NewYouTubeClient creates a client authenticated with an API key. Extra options
// (endpoint, HTTP client) are applied after the key.
func NewYouTubeClient(ctx context.Context, apiKey string, opts ...option.ClientOption) (*YouTubeClient, error) {
	if apiKey == "" {
		return nil, errors.New("YouTube API key not configured")
	}

	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("[YouTubeClient] failed to create service: %w", err)
	}
	return &YouTubeClient{service: service}, nil
}

// TrendingVideos returns up to maxResults videos of the regional trending chart,
// with snippet and statistics parts.
func (c *YouTubeClient) TrendingVideos(ctx context.Context, region string, maxResults int64) ([]*youtube.Video, error) {
	resp, err := c.service.Videos.
		List([]string{"snippet", "statistics"}).
		Chart("mostPopular").
		RegionCode(region).
		MaxResults(maxResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, handleYouTubeError(err)
	}
	return resp.Items, nil
}

func handleYouTubeError(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("YouTube API request failed: %w", err)
	}

	switch apiErr.Code {
	case http.StatusBadRequest:
		return fmt.Errorf("YouTube API rejected the request: %s", apiErr.Message)
	case http.StatusUnauthorized:
		return fmt.Errorf("YouTube API authentication failed: %s", apiErr.Message)
	case http.StatusForbidden:
		return fmt.Errorf("YouTube API access denied or quota exceeded: %s", apiErr.Message)
	case http.StatusTooManyRequests:
		return fmt.Errorf("YouTube API rate limit exceeded: %s", apiErr.Message)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("YouTube API server error (status %d): %s", apiErr.Code, apiErr.Message)
	default:
		return fmt.Errorf("YouTube API error (status %d): %s", apiErr.Code, apiErr.Message)
	}
}
