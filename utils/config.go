package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds all configuration for the application
type Config struct {
	App      AppConfig
	Reddit   RedditConfig
	Tracker  TrackerConfig
	Database DatabaseConfig
	Server   ServerConfig
}

// AppConfig holds application-level configuration
type AppConfig struct {
	Name    string
	Version string
}

// RedditConfig holds Reddit API configuration
type RedditConfig struct {
	ClientID             string
	ClientSecret         string
	UserAgent            string
	MaxRequestsPerMinute int // value is per minute, multiply by 10 for 10-minute rate
}

// TrackerConfig holds ingestion pipeline configuration
type TrackerConfig struct {
	WindowSize      int // size of the tracked top-N window
	PollingInterval int // seconds between ticks
	CacheTTL        int // seconds a cached query response stays warm
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int
}

// LoadConfig loads configuration from .env file
func LoadConfig(envPath string, log *logrus.Logger) (*Config, error) {
	if envPath == "" {
		envPath = ".env"
	}

	if err := godotenv.Load(envPath); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	config := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "frontwatch"),
			Version: getEnv("APP_VERSION", "1.0.0"),
		},
		Reddit: RedditConfig{
			ClientID:             getEnv("REDDIT_CLIENT_ID", ""),
			ClientSecret:         getEnv("REDDIT_CLIENT_SECRET", ""),
			UserAgent:            getEnv("REDDIT_USER_AGENT", ""),
			MaxRequestsPerMinute: getEnvAsInt("REDDIT_MAX_REQUESTS_PER_MINUTE", 100),
		},
		Tracker: TrackerConfig{
			WindowSize:      getEnvAsInt("TRACKER_WINDOW_SIZE", 100),
			PollingInterval: getEnvAsInt("TRACKER_POLLING_INTERVAL", 60),
			CacheTTL:        getEnvAsInt("TRACKER_CACHE_TTL", 60),
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "./frontwatch.db"),
		},
		Server: ServerConfig{
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
	}

	// validation
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	log.WithField("file", envPath).Info("Config loaded successfully")
	return config, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	// Check Reddit API credentials
	if config.Reddit.ClientID == "" {
		return fmt.Errorf("REDDIT_CLIENT_ID environment variable is required")
	}
	if config.Reddit.ClientSecret == "" {
		return fmt.Errorf("REDDIT_CLIENT_SECRET environment variable is required")
	}

	// User-Agent required per API documentation;  it has strict requirements.  see example.env
	if config.Reddit.UserAgent == "" {
		return fmt.Errorf("REDDIT_USER_AGENT environment variable is required")
	}
	if config.Tracker.WindowSize < 1 || config.Tracker.WindowSize > 100 {
		return fmt.Errorf("TRACKER_WINDOW_SIZE must be between 1 and 100")
	}
	if config.Tracker.PollingInterval < 1 {
		return fmt.Errorf("TRACKER_POLLING_INTERVAL must be positive")
	}
	if config.Tracker.CacheTTL < 1 {
		return fmt.Errorf("TRACKER_CACHE_TTL must be positive")
	}

	// if we are storing the db in a nested directory, create the directory
	dbDir := filepath.Dir(config.Database.Path)
	if dbDir != "." && dbDir != "" {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	return nil
}
