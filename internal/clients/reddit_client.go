package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
)

const (
	RedditAuthURL = "https://www.reddit.com/api/v1/access_token"
	RedditAPIURL  = "https://oauth.reddit.com"
)

// RedditCredentials is the password-grant credential set for a script app.
type RedditCredentials struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
}

// RedditPost is the subset of a Reddit link listing child the pipeline reads.
// Raw keeps the complete child object.
type RedditPost struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Title         string   `json:"title"`
	Selftext      string   `json:"selftext"`
	URL           string   `json:"url"`
	Permalink     string   `json:"permalink"`
	Author        string   `json:"author"`
	Subreddit     string   `json:"subreddit"`
	Score         int64    `json:"score"`
	NumComments   int64    `json:"num_comments"`
	ViewCount     *int64   `json:"view_count"`
	CreatedUTC    float64  `json:"created_utc"`
	Thumbnail     string   `json:"thumbnail"`
	PostHint      string   `json:"post_hint"`
	LinkFlairText *string  `json:"link_flair_text"`
	IsGallery     bool     `json:"is_gallery"`
	IsVideo       bool     `json:"is_video"`
	Media         *struct {
		RedditVideo *struct {
			FallbackURL string `json:"fallback_url"`
		} `json:"reddit_video"`
	} `json:"media"`
	GalleryData *struct {
		Items []struct {
			MediaID string `json:"media_id"`
		} `json:"items"`
	} `json:"gallery_data"`
	MediaMetadata map[string]struct {
		S struct {
			U string `json:"u"`
		} `json:"s"`
	} `json:"media_metadata"`
	Preview *struct {
		Images []struct {
			Source struct {
				URL string `json:"url"`
			} `json:"source"`
		} `json:"images"`
	} `json:"preview"`

	Raw json.RawMessage `json:"-"`
}

// CreatedAt converts created_utc to a UTC time.
func (p *RedditPost) CreatedAt() time.Time {
	sec := int64(p.CreatedUTC)
	return time.Unix(sec, 0).UTC()
}

type listingResponse struct {
	Data *struct {
		Children []struct {
			Kind string          `json:"kind"`
			Data json.RawMessage `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// RedditOption configures the RedditClient.
type RedditOption func(*RedditClient)

// WithRedditHTTPClient sets the HTTP client used for both token and API calls.
func WithRedditHTTPClient(httpClient *http.Client) RedditOption {
	return func(c *RedditClient) {
		c.httpClient = httpClient
	}
}

// WithRedditBaseURLs overrides the token and API endpoints (useful for testing).
func WithRedditBaseURLs(authURL, apiURL string) RedditOption {
	return func(c *RedditClient) {
		c.authURL = authURL
		c.apiURL = apiURL
	}
}

// RedditClient talks to the Reddit OAuth API with a password-grant token.
type RedditClient struct {
	httpClient *http.Client
	authURL    string
	apiURL     string
	userAgent  string
}

func NewRedditClient(userAgent string, opts ...RedditOption) *RedditClient {
	c := &RedditClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		authURL:    RedditAuthURL,
		apiURL:     RedditAPIURL,
		userAgent:  userAgent,
	}
	for _, opt := range opts {
		opt(c)
	}

	// Reddit rejects requests without a descriptive User-Agent, token exchange included.
	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *c.httpClient
	wrapped.Transport = &userAgentTransport{base: base, userAgent: c.userAgent}
	c.httpClient = &wrapped
	return c
}

// Authenticate exchanges the credentials for a bearer token.
func (c *RedditClient) Authenticate(ctx context.Context, creds RedditCredentials) (*oauth2.Token, error) {
	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.authURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := conf.PasswordCredentialsToken(ctx, creds.Username, creds.Password)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return nil, fmt.Errorf("[RedditClient] authentication failed: %w", c.handleAPIError(retrieveErr.Response.StatusCode))
		}
		return nil, fmt.Errorf("[RedditClient] authentication failed: %w", err)
	}
	return token, nil
}

// HotPosts returns up to limit posts of a subreddit's hot listing.
func (c *RedditClient) HotPosts(ctx context.Context, token *oauth2.Token, subreddit string, limit int) ([]RedditPost, error) {
	parsedURL, err := url.Parse(fmt.Sprintf("%s/r/%s/hot", c.apiURL, url.PathEscape(subreddit)))
	if err != nil {
		return nil, fmt.Errorf("[RedditClient] Failed to parse URL: %w", err)
	}
	queryParams := parsedURL.Query()
	queryParams.Set("limit", fmt.Sprintf("%d", limit))
	parsedURL.RawQuery = queryParams.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsedURL.String(), nil)
	if err != nil {
		return nil, err
	}
	token.SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleAPIError(resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return decodeListing(body)
}

func decodeListing(body []byte) ([]RedditPost, error) {
	var listing listingResponse
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("failed to parse listing: %w", err)
	}
	if listing.Data == nil {
		return nil, errors.New("listing response has no data")
	}

	posts := make([]RedditPost, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		var post RedditPost
		if err := json.Unmarshal(child.Data, &post); err != nil {
			return nil, fmt.Errorf("failed to parse post: %w", err)
		}
		post.Raw = child.Data
		posts = append(posts, post)
	}
	return posts, nil
}

func (c *RedditClient) handleAPIError(statusCode int) error {
	switch statusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("Reddit API authentication failed - check client id and secret")
	case http.StatusForbidden:
		return fmt.Errorf("Reddit API access denied - subreddit may be private or banned")
	case http.StatusNotFound:
		return fmt.Errorf("Reddit API resource not found")
	case http.StatusTooManyRequests:
		return fmt.Errorf("Reddit API rate limit exceeded - please try again later")
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("Reddit API server error (status %d)", statusCode)
	default:
		return fmt.Errorf("Reddit API error (status %d)", statusCode)
	}
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(req)
}
