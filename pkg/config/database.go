package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/anonto42/trendpulse/backend/internal/models"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB holds the database connection
type DB struct {
	Postgres *gorm.DB
}

// LoadEnv loads an optional .env file into the process environment.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		slog.Info("[Config] No .env file found, assuming environment variables are set")
	}
}

// InitDB initializes the PostgreSQL connection and migrates the trend schema
func InitDB(connStr string) (*DB, error) {
	if connStr == "" {
		return nil, fmt.Errorf("POSTGRES_CONN_STR environment variable not set")
	}

	postgresDB, err := initPostgres(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := Migrate(postgresDB); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &DB{Postgres: postgresDB}, nil
}

// GormConfig is shared by the server, the CLI and tests so timestamps are always UTC.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}
}

// Migrate creates or updates the trends, tags and aggregated_content tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.Trend{}, &models.Tag{}, &models.AggregatedContent{})
}

// initPostgres initializes the PostgreSQL database connection using GORM
func initPostgres(connStr string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(connStr), GormConfig())
	if err != nil {
		return nil, err
	}

	// Ping the database to verify connection
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err = sqlDB.Ping(); err != nil {
		return nil, err
	}

	slog.Info("[Config] Successfully connected to PostgreSQL")
	return db, nil
}

// CloseDB closes the database connection
func (db *DB) CloseDB() {
	if db.Postgres == nil {
		return
	}
	sqlDB, err := db.Postgres.DB()
	if err != nil {
		slog.Error("[Config] Error getting SQL DB from GORM", slog.String("error", err.Error()))
		return
	}
	if err := sqlDB.Close(); err != nil {
		slog.Error("[Config] Error closing PostgreSQL connection", slog.String("error", err.Error()))
		return
	}
	slog.Info("[Config] PostgreSQL connection closed")
}
