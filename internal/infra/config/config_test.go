package config

import (
	"testing"
	"time"
)

func TestParseWindows(t *testing.T) {
	tests := []struct {
		in      string
		want    []time.Duration
		wantErr bool
	}{
		{"5,10,20,30", []time.Duration{5 * time.Minute, 10 * time.Minute, 20 * time.Minute, 30 * time.Minute}, false},
		{" 15 , 45 ", []time.Duration{15 * time.Minute, 45 * time.Minute}, false},
		{"10,5", nil, true},
		{"5,5", nil, true},
		{"0,5", nil, true},
		{"five", nil, true},
		{"", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseWindows(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseWindows(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseWindows(%q) = %v, want %v", tt.in, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("ParseWindows(%q) = %v, want %v", tt.in, got, tt.want)
				}
			}
		})
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("DATABASE_URL", "postgres://localhost/school")
	t.Setenv("ADMIN_TELEGRAM_ID", "42")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	for _, k := range []string{"DATABASE_DRIVER", "LOG_LEVEL", "TIMEZONE", "SCAN_SPEC", "LOOKAHEAD_WINDOWS",
		"SUBMISSIONS_COLLECTION", "ARTICLES_COLLECTION", "SITE_BASE_URL", "HTTP_ADDR", "REPORT_FANOUT_TO_ADMIN"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AdminTelegramID != 42 || cfg.DatabaseDriver != "postgres" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.ScanSpec != "@every 1m" || len(cfg.LookaheadWindows) != 4 {
		t.Errorf("scan settings = %q %v", cfg.ScanSpec, cfg.LookaheadWindows)
	}
	if cfg.SubmissionsCollection != "applications" || cfg.ArticlesCollection != "news" {
		t.Errorf("collections = %q %q", cfg.SubmissionsCollection, cfg.ArticlesCollection)
	}
	if !cfg.ReportFanOutToAdmin || cfg.HTTPAddr != "" {
		t.Errorf("report = %v, http = %q", cfg.ReportFanOutToAdmin, cfg.HTTPAddr)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_DRIVER", "SQLite")
	t.Setenv("TIMEZONE", "Europe/Berlin")
	t.Setenv("LOOKAHEAD_WINDOWS", "15")
	t.Setenv("SITE_BASE_URL", "https://school.example/")
	t.Setenv("REPORT_FANOUT_TO_ADMIN", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseDriver != "sqlite" || cfg.Location.String() != "Europe/Berlin" {
		t.Errorf("driver = %q, location = %v", cfg.DatabaseDriver, cfg.Location)
	}
	if len(cfg.LookaheadWindows) != 1 || cfg.SiteBaseURL != "https://school.example" || cfg.ReportFanOutToAdmin {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"missing token", "TELEGRAM_TOKEN", ""},
		{"missing database", "DATABASE_URL", ""},
		{"bad admin id", "ADMIN_TELEGRAM_ID", "admin"},
		{"unknown driver", "DATABASE_DRIVER", "mysql"},
		{"bad timezone", "TIMEZONE", "Mars/Olympus"},
		{"bad windows", "LOOKAHEAD_WINDOWS", "30,20"},
		{"bad report flag", "REPORT_FANOUT_TO_ADMIN", "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Fatalf("Load with %s=%q: expected error", tt.key, tt.val)
			}
		})
	}
}
