package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	PostgresConn   string

	Valkey    ValkeyConfig
	YouTube   YouTubeConfig
	Reddit    RedditConfig
	Retention RetentionConfig
	Worker    WorkerConfig

	// WatchdogStaleAfter is the age of the newest trend past which a refresh is forced.
	WatchdogStaleAfter time.Duration
}

// ValkeyConfig addresses the task broker. An empty Address selects the in-process queue.
type ValkeyConfig struct {
	Address           string
	FallbackAddresses []string
	Password          string
	TLS               bool
}

// Addresses returns the primary address followed by the fallbacks.
func (v ValkeyConfig) Addresses() []string {
	if v.Address == "" {
		return nil
	}
	return append([]string{v.Address}, v.FallbackAddresses...)
}

type YouTubeConfig struct {
	APIKey     string
	Region     string
	MaxResults int64
	TagLimit   int
}

func (y YouTubeConfig) Configured() bool {
	return y.APIKey != ""
}

type RedditConfig struct {
	ClientID   string
	Secret     string
	Username   string
	Password   string
	UserAgent  string
	Subreddits []string
	PostLimit  int
	// ViewsPerScore estimates views from score when Reddit reports no view count.
	ViewsPerScore int64
}

// Configured reports whether the full password-grant credential set is present.
func (r RedditConfig) Configured() bool {
	return r.ClientID != "" && r.Secret != "" && r.Username != "" && r.Password != ""
}

type RetentionConfig struct {
	MaxAgeDays            int
	MaxRecordsPerPlatform int
}

type WorkerConfig struct {
	Concurrency   int64
	TaskTimeLimit time.Duration
}

func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", nil),
		PostgresConn:   getEnv("POSTGRES_CONN_STR", ""),
		Valkey: ValkeyConfig{
			Address:           getEnv("VALKEY_ADDRESS", ""),
			FallbackAddresses: getEnvList("VALKEY_FALLBACK_ADDRESSES", nil),
			Password:          getEnv("VALKEY_PASSWORD", ""),
			TLS:               getEnv("VALKEY_TLS", "false") == "true",
		},
		YouTube: YouTubeConfig{
			APIKey:     getEnv("YOUTUBE_API_KEY", ""),
			Region:     getEnv("YOUTUBE_REGION", "BR"),
			MaxResults: int64(getEnvInt("YOUTUBE_MAX_RESULTS", 10)),
			TagLimit:   getEnvInt("YOUTUBE_TAG_LIMIT", 3),
		},
		Reddit: RedditConfig{
			ClientID:      getEnv("REDDIT_CLIENT_ID", ""),
			Secret:        getEnv("REDDIT_SECRET", ""),
			Username:      getEnv("REDDIT_USERNAME", ""),
			Password:      getEnv("REDDIT_PASSWORD", ""),
			UserAgent:     getEnv("REDDIT_USER_AGENT", "trendpulse/1.0"),
			Subreddits:    getEnvList("REDDIT_SUBREDDITS", []string{"popular", "brasil", "technology", "programming", "science"}),
			PostLimit:     getEnvInt("REDDIT_POST_LIMIT", 5),
			ViewsPerScore: int64(getEnvInt("REDDIT_VIEWS_PER_SCORE", 5)),
		},
		Retention: RetentionConfig{
			MaxAgeDays:            getEnvInt("RETENTION_MAX_AGE_DAYS", 7),
			MaxRecordsPerPlatform: getEnvInt("RETENTION_MAX_RECORDS", 1000),
		},
		Worker: WorkerConfig{
			Concurrency:   int64(getEnvInt("WORKER_CONCURRENCY", 2)),
			TaskTimeLimit: getEnvDuration("TASK_TIME_LIMIT", 30*time.Minute),
		},
		WatchdogStaleAfter: getEnvDuration("WATCHDOG_STALE_AFTER", 3*time.Hour),
	}
}

// IsDevelopment reports whether the server runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
