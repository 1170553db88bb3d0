package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/almatymeetups/join_request_bot/internal/logging"
)

type Config struct {
	BotToken      string
	AdminChatID   int64
	TargetGroupID int64
	DatabaseURL   string
	Timeout       time.Duration
	SweepInterval time.Duration
	HealthAddr    string
	LogLevel      string
	LogFormat     string
}

func Load() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		logging.Logger.Info().Msg("config.Load: no .env file found - using env variables")
	}

	cfg := &Config{
		BotToken:    os.Getenv("BOT_TOKEN"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		HealthAddr:  os.Getenv("HEALTH_ADDR"),
		LogLevel:    os.Getenv("LOG_LEVEL"),
		LogFormat:   os.Getenv("LOG_FORMAT"),
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("config.Load: BOT_TOKEN is required")
	}

	cfg.AdminChatID, err = parseID("ADMIN_CHAT_ID")
	if err != nil {
		return nil, err
	}

	cfg.TargetGroupID, err = parseID("TARGET_GROUP_ID")
	if err != nil {
		return nil, err
	}

	cfg.Timeout, err = parseDuration("REQUEST_TIMEOUT", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	cfg.SweepInterval, err = parseDuration("SWEEP_INTERVAL", deriveSweepInterval(cfg.Timeout))
	if err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "sqlite://bot_database.db"
	}

	if cfg.HealthAddr == "" {
		cfg.HealthAddr = ":10000"
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = "console"
	}

	return cfg, nil
}

func parseID(name string) (int64, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, fmt.Errorf("config.Load: %s is required", name)
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config.Load: %s must be a chat id: %w", name, err)
	}

	return id, nil
}

func parseDuration(name string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config.Load: %s must be a duration like 24h or 5m: %w", name, err)
	}

	if d <= 0 {
		return 0, fmt.Errorf("config.Load: %s must be positive", name)
	}

	return d, nil
}

// deriveSweepInterval picks a sweep cadence from the request timeout so a
// request never stays pending much past its deadline.
func deriveSweepInterval(timeout time.Duration) time.Duration {
	interval := timeout / 96
	if interval < time.Minute {
		interval = time.Minute
	}
	if interval > 15*time.Minute {
		interval = 15 * time.Minute
	}

	return interval
}
