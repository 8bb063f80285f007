package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken    string
	DatabaseDriver   string // "postgres" or "sqlite"
	DatabaseURL      string
	AdminTelegramID  int64
	LogLevel         string
	Environment      string
	Location         *time.Location
	ScanSpec         string          // cron spec for the schedule scanner tick
	LookaheadWindows []time.Duration // ascending

	FirebaseCredentialsPath string
	FirebaseProjectID       string
	SubmissionsCollection   string
	ArticlesCollection      string
	SiteBaseURL             string

	HTTPAddr            string // empty disables the health endpoint
	ReportFanOutToAdmin bool
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	cfg.DatabaseDriver = strings.ToLower(getenv("DATABASE_DRIVER", "postgres"))
	if cfg.DatabaseDriver != "postgres" && cfg.DatabaseDriver != "sqlite" {
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID")
	if adminIDStr == "" {
		return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is not set")
	}
	cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
	}

	cfg.LogLevel = strings.ToLower(getenv("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(getenv("ENVIRONMENT", "development"))

	cfg.Location, err = time.LoadLocation(getenv("TIMEZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	cfg.ScanSpec = getenv("SCAN_SPEC", "@every 1m")

	cfg.LookaheadWindows, err = ParseWindows(getenv("LOOKAHEAD_WINDOWS", "5,10,20,30"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOOKAHEAD_WINDOWS: %w", err)
	}

	cfg.FirebaseCredentialsPath = getenv("FIREBASE_CREDENTIALS_PATH", "serviceAccountKey.json")
	cfg.FirebaseProjectID = os.Getenv("FIREBASE_PROJECT_ID")
	cfg.SubmissionsCollection = getenv("SUBMISSIONS_COLLECTION", "applications")
	cfg.ArticlesCollection = getenv("ARTICLES_COLLECTION", "news")
	cfg.SiteBaseURL = strings.TrimRight(getenv("SITE_BASE_URL", "https://bgpk-liceum.site"), "/")

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")

	cfg.ReportFanOutToAdmin, err = strconv.ParseBool(getenv("REPORT_FANOUT_TO_ADMIN", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid REPORT_FANOUT_TO_ADMIN: %w", err)
	}

	return cfg, nil
}

// ParseWindows parses a comma separated list of minutes. The result must be
// strictly ascending so the nearest window is always tried first.
func ParseWindows(v string) ([]time.Duration, error) {
	parts := strings.Split(v, ",")
	windows := make([]time.Duration, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		m, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("window %q: %w", p, err)
		}
		if m <= 0 {
			return nil, fmt.Errorf("window %q must be positive", p)
		}
		w := time.Duration(m) * time.Minute
		if len(windows) > 0 && w <= windows[len(windows)-1] {
			return nil, fmt.Errorf("windows must be ascending, got %s after %s", w, windows[len(windows)-1])
		}
		windows = append(windows, w)
	}
	if len(windows) == 0 {
		return nil, fmt.Errorf("at least one window is required")
	}
	return windows, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
