package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the ranking sync engine.
// Only this package reads environment variables.
type Config struct {
	Env string // development, staging, production

	Ranking RankingConfig
	Server  ServerConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// RankingConfig holds the ranking service endpoints and sync tuning.
type RankingConfig struct {
	// Endpoints
	SocketURL  string // wss:// push channel
	APIBaseURL string // https:// REST fallback

	// Identity
	Token  string // bearer token for both channels
	UserID string // the authenticated user's id

	// Sync tuning
	DefaultPeriod   string
	ConnectTimeout  time.Duration // bound on a single dial attempt
	FallbackAfter   time.Duration // start polling if connect has not settled
	FetchTimeout    time.Duration // bound on a single REST call
	PollInterval    time.Duration // keep-alive poll cadence
	PollRatePerSec  float64       // REST rate limit
	ReconnectDelay  time.Duration // fixed delay between reconnect attempts
	ReconnectBudget int           // attempts per outage
	RolloverRefresh bool          // re-sync at period boundaries
}

// ServerConfig holds the read-side HTTP server configuration.
type ServerConfig struct {
	Port    string
	Enabled bool
}

// Load reads configuration from environment variables, loading a .env file
// first if one is found.
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		Ranking: RankingConfig{
			SocketURL:  getEnv("RANKING_SOCKET_URL", ""),
			APIBaseURL: getEnv("RANKING_API_URL", ""),
			Token:      getEnv("RANKING_TOKEN", ""),
			UserID:     getEnv("RANKING_USER_ID", ""),

			DefaultPeriod:   getEnv("RANKING_DEFAULT_PERIOD", "daily"),
			ConnectTimeout:  getEnvAsDuration("RANKING_CONNECT_TIMEOUT", "10s"),
			FallbackAfter:   getEnvAsDuration("RANKING_FALLBACK_AFTER", "2s"),
			FetchTimeout:    getEnvAsDuration("RANKING_FETCH_TIMEOUT", "10s"),
			PollInterval:    getEnvAsDuration("RANKING_POLL_INTERVAL", "30s"),
			PollRatePerSec:  getEnvAsFloat("RANKING_POLL_RATE", 2.0),
			ReconnectDelay:  getEnvAsDuration("RANKING_RECONNECT_DELAY", "5s"),
			ReconnectBudget: getEnvAsInt("RANKING_RECONNECT_BUDGET", 5),
			RolloverRefresh: getEnvAsBool("RANKING_ROLLOVER_REFRESH", true),
		},

		Server: ServerConfig{
			Port:    getEnv("PORT", "8086"),
			Enabled: getEnvAsBool("SERVER_ENABLED", true),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks required configuration values.
func (c *Config) validate() error {
	if c.Ranking.SocketURL == "" {
		return fmt.Errorf("RANKING_SOCKET_URL is required")
	}

	if c.Ranking.APIBaseURL == "" {
		return fmt.Errorf("RANKING_API_URL is required")
	}

	if c.Ranking.UserID == "" {
		return fmt.Errorf("RANKING_USER_ID is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	return nil
}

// loadEnvFile tries to load .env from the usual locations.
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
