package utils

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testEnvPath = "./test.env"

func cleanup() {
	os.Remove(testEnvPath)
}

// TestMain handles test setup and cleanup for all tests in this package
func TestMain(m *testing.M) {
	exitCode := m.Run()

	cleanup()

	os.Exit(exitCode)
}

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_ENV_VAR", "test-value")
	defer os.Unsetenv("TEST_ENV_VAR")

	value := getEnv("TEST_ENV_VAR", "default-value")
	assert.Equal(t, "test-value", value)

	value = getEnv("NON_EXISTENT_VAR", "default-value")
	assert.Equal(t, "default-value", value)
}

func TestGetEnvAsInt(t *testing.T) {
	os.Setenv("TEST_INT_VAR", "42")
	defer os.Unsetenv("TEST_INT_VAR")

	value := getEnvAsInt("TEST_INT_VAR", 10)
	assert.Equal(t, 42, value)

	os.Setenv("TEST_INVALID_INT_VAR", "not-an-int")
	defer os.Unsetenv("TEST_INVALID_INT_VAR")

	value = getEnvAsInt("TEST_INVALID_INT_VAR", 10)
	assert.Equal(t, 10, value)

	value = getEnvAsInt("NON_EXISTENT_VAR", 10)
	assert.Equal(t, 10, value)
}

func TestValidateConfig(t *testing.T) {
	valid := &Config{
		Reddit: RedditConfig{
			ClientID:     "id",
			ClientSecret: "secret",
			UserAgent:    "agent",
		},
		Tracker: TrackerConfig{
			WindowSize:      100,
			PollingInterval: 60,
			CacheTTL:        60,
		},
		Database: DatabaseConfig{
			Path: "./test.db",
		},
	}
	assert.NoError(t, validateConfig(valid))

	tests := []struct {
		name     string
		mutate   func(*Config)
		errField string
	}{
		{
			name:     "Missing client id",
			mutate:   func(c *Config) { c.Reddit.ClientID = "" },
			errField: "REDDIT_CLIENT_ID",
		},
		{
			name:     "Missing client secret",
			mutate:   func(c *Config) { c.Reddit.ClientSecret = "" },
			errField: "REDDIT_CLIENT_SECRET",
		},
		{
			name:     "Missing user agent",
			mutate:   func(c *Config) { c.Reddit.UserAgent = "" },
			errField: "REDDIT_USER_AGENT",
		},
		{
			name:     "Zero window size",
			mutate:   func(c *Config) { c.Tracker.WindowSize = 0 },
			errField: "TRACKER_WINDOW_SIZE",
		},
		{
			name:     "Oversized window",
			mutate:   func(c *Config) { c.Tracker.WindowSize = 500 },
			errField: "TRACKER_WINDOW_SIZE",
		},
		{
			name:     "Negative polling interval",
			mutate:   func(c *Config) { c.Tracker.PollingInterval = -1 },
			errField: "TRACKER_POLLING_INTERVAL",
		},
		{
			name:     "Zero cache TTL",
			mutate:   func(c *Config) { c.Tracker.CacheTTL = 0 },
			errField: "TRACKER_CACHE_TTL",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			config := *valid
			tc.mutate(&config)

			err := validateConfig(&config)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tc.errField)
		})
	}
}
