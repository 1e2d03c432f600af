package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config keeps runtime settings for the tracker.
type Config struct {
	TelegramToken string
	DatabaseURL   string
	Timezone      *time.Location
	ReminderTime  string
	SeedFile      string
	UndoWindow    time.Duration
}

// Load reads configuration from environment variables with sane defaults.
// A local .env file is applied first if present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		TelegramToken: strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		ReminderTime:  strings.TrimSpace(os.Getenv("REMINDER_TIME")),
		SeedFile:      strings.TrimSpace(os.Getenv("SEED_FILE")),
		UndoWindow:    parseUndoWindow(strings.TrimSpace(os.Getenv("UNDO_WINDOW_MINUTES"))),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "chore_tracker.db"
	}
	if cfg.ReminderTime == "" {
		cfg.ReminderTime = "09:00"
	}
	if cfg.UndoWindow == 0 {
		cfg.UndoWindow = 5 * time.Minute
	}

	loc, err := loadTimezone(strings.TrimSpace(os.Getenv("TIMEZONE")))
	if err != nil {
		return cfg, err
	}
	cfg.Timezone = loc

	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	return cfg, nil
}

// loadTimezone resolves the target zone for all day-boundary math. Due dates
// are computed in this zone regardless of the host machine's local time.
func loadTimezone(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

func parseUndoWindow(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		return 0
	}
	return time.Duration(minutes) * time.Minute
}
