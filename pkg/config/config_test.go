package config

import (
	"os"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("RANKING_SOCKET_URL", "wss://rank.example.com/ws")
	t.Setenv("RANKING_API_URL", "https://rank.example.com/api")
	t.Setenv("RANKING_USER_ID", "user-1")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Env != "development" {
		t.Errorf("Expected Env to be development, got %s", cfg.Env)
	}

	if cfg.Ranking.DefaultPeriod != "daily" {
		t.Errorf("Expected default period daily, got %s", cfg.Ranking.DefaultPeriod)
	}

	if cfg.Ranking.PollInterval != 30*time.Second {
		t.Errorf("Expected PollInterval 30s, got %s", cfg.Ranking.PollInterval)
	}

	if cfg.Ranking.ReconnectBudget != 5 {
		t.Errorf("Expected ReconnectBudget 5, got %d", cfg.Ranking.ReconnectBudget)
	}

	if !cfg.Server.Enabled {
		t.Error("Expected server enabled by default")
	}
}

func TestLoadWithCustomValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENV", "production")
	t.Setenv("RANKING_POLL_INTERVAL", "5s")
	t.Setenv("RANKING_RECONNECT_BUDGET", "3")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SERVER_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Env != "production" {
		t.Errorf("Expected Env to be production, got %s", cfg.Env)
	}

	if cfg.Ranking.PollInterval != 5*time.Second {
		t.Errorf("Expected PollInterval 5s, got %s", cfg.Ranking.PollInterval)
	}

	if cfg.Ranking.ReconnectBudget != 3 {
		t.Errorf("Expected ReconnectBudget 3, got %d", cfg.Ranking.ReconnectBudget)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("Expected LogLevel debug, got %s", cfg.LogLevel)
	}

	if cfg.Server.Enabled {
		t.Error("Expected server disabled")
	}
}

func TestLoadMissingSocketURL(t *testing.T) {
	os.Unsetenv("RANKING_SOCKET_URL")
	t.Setenv("RANKING_API_URL", "https://rank.example.com/api")
	t.Setenv("RANKING_USER_ID", "user-1")

	if _, err := Load(); err == nil {
		t.Error("Expected error when RANKING_SOCKET_URL is missing, got nil")
	}
}

func TestLoadRejectsUnknownEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENV", "sandbox")

	if _, err := Load(); err == nil {
		t.Error("Expected error for unknown ENV, got nil")
	}
}

func TestGetEnvAsDurationFallback(t *testing.T) {
	t.Setenv("RANKSYNC_TEST_DURATION", "not-a-duration")

	if got := getEnvAsDuration("RANKSYNC_TEST_DURATION", "7s"); got != 7*time.Second {
		t.Errorf("Expected fallback 7s, got %s", got)
	}
}
