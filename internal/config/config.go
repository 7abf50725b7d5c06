package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config keeps runtime settings for the scheduler.
type Config struct {
	DatabaseURL      string
	HorizonDays      int
	MaterializeAt    string
	MaterializeEvery time.Duration
	Workers          int
	MaxPerTemplate   int
	RunTimeout       time.Duration

	TelegramToken  string
	OperatorChatID int64
}

// TelegramEnabled reports whether operator notifications are configured.
func (c Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.OperatorChatID != 0
}

// Load reads configuration from environment variables with sane defaults.
// Variables from a .env file in the working directory are loaded first
// without overriding the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from the given lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key string) string { return strings.TrimSpace(getenv(key)) }

	cfg := Config{
		DatabaseURL:    get("DATABASE_URL"),
		MaterializeAt:  get("MATERIALIZE_AT"),
		TelegramToken:  get("TELEGRAM_TOKEN"),
		HorizonDays:    30,
		Workers:        4,
		MaxPerTemplate: 3660,
		RunTimeout:     10 * time.Minute,
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "crm_tasks.db"
	}
	if cfg.MaterializeAt == "" {
		cfg.MaterializeAt = "02:00"
	}

	var err error
	if cfg.HorizonDays, err = parsePositiveInt(get("HORIZON_DAYS"), cfg.HorizonDays); err != nil {
		return cfg, fmt.Errorf("HORIZON_DAYS: %w", err)
	}
	if cfg.Workers, err = parsePositiveInt(get("WORKERS"), cfg.Workers); err != nil {
		return cfg, fmt.Errorf("WORKERS: %w", err)
	}
	if cfg.MaxPerTemplate, err = parsePositiveInt(get("MAX_PER_TEMPLATE"), cfg.MaxPerTemplate); err != nil {
		return cfg, fmt.Errorf("MAX_PER_TEMPLATE: %w", err)
	}
	if cfg.MaterializeEvery, err = parseDuration(get("MATERIALIZE_EVERY"), 0); err != nil {
		return cfg, fmt.Errorf("MATERIALIZE_EVERY: %w", err)
	}
	if cfg.RunTimeout, err = parseDuration(get("RUN_TIMEOUT"), cfg.RunTimeout); err != nil {
		return cfg, fmt.Errorf("RUN_TIMEOUT: %w", err)
	}

	if raw := get("TELEGRAM_OPERATOR_CHAT_ID"); raw != "" {
		cfg.OperatorChatID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("TELEGRAM_OPERATOR_CHAT_ID: invalid chat id %q", raw)
		}
	}

	return cfg, nil
}

func parsePositiveInt(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("expected a positive integer, got %q", raw)
	}
	return n, nil
}

func parseDuration(raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("expected a positive duration, got %q", raw)
	}
	return d, nil
}
