package app

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.MaxDownloadMB != 100 {
		t.Errorf("MaxDownloadMB = %d, want 100", cfg.MaxDownloadMB)
	}
	if cfg.DefaultDownloadMB != 10 {
		t.Errorf("DefaultDownloadMB = %d, want 10", cfg.DefaultDownloadMB)
	}
	if cfg.ChunkSizeBytes != 1<<20 {
		t.Errorf("ChunkSizeBytes = %d, want 1MiB", cfg.ChunkSizeBytes)
	}
	if cfg.RateExcludeSuccess {
		t.Error("RateExcludeSuccess default should be false")
	}
	if cfg.RateWindow() != 10*time.Minute {
		t.Errorf("RateWindow() = %s, want 10m", cfg.RateWindow())
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("MAX_DOWNLOAD_MB", "50")
	t.Setenv("RATE_WINDOW_MS", "60000")
	t.Setenv("RATE_MAX_REQUESTS", "3")
	t.Setenv("RATE_EXCLUDE_SUCCESS", "true")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.example, http://b.example ,")

	cfg := LoadConfig()

	if cfg.HTTPAddr != ":9999" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.MaxDownloadMB != 50 {
		t.Errorf("MaxDownloadMB = %d, want 50", cfg.MaxDownloadMB)
	}
	if cfg.RateWindow() != time.Minute {
		t.Errorf("RateWindow() = %s, want 1m", cfg.RateWindow())
	}
	if cfg.RateMaxRequests != 3 {
		t.Errorf("RateMaxRequests = %d, want 3", cfg.RateMaxRequests)
	}
	if !cfg.RateExcludeSuccess {
		t.Error("RateExcludeSuccess not parsed")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want lowercased debug", cfg.LogLevel)
	}
	want := []string{"http://a.example", "http://b.example"}
	if len(cfg.CORSAllowedOrigins) != len(want) {
		t.Fatalf("CORSAllowedOrigins = %v, want %v", cfg.CORSAllowedOrigins, want)
	}
	for i := range want {
		if cfg.CORSAllowedOrigins[i] != want[i] {
			t.Errorf("origin %d = %q, want %q", i, cfg.CORSAllowedOrigins[i], want[i])
		}
	}
}

func TestLoadConfig_BadValuesFallBack(t *testing.T) {
	t.Setenv("MAX_DOWNLOAD_MB", "not-a-number")
	t.Setenv("RATE_WINDOW_MS", "-5")
	t.Setenv("GLOBAL_RATE_RPS", "0")
	t.Setenv("RATE_EXCLUDE_SUCCESS", "maybe")

	cfg := LoadConfig()

	if cfg.MaxDownloadMB != 100 {
		t.Errorf("MaxDownloadMB = %d, want fallback 100", cfg.MaxDownloadMB)
	}
	if cfg.RateWindowMs != 10*60*1000 {
		t.Errorf("RateWindowMs = %d, want fallback", cfg.RateWindowMs)
	}
	if cfg.GlobalRateRPS != 100 {
		t.Errorf("GlobalRateRPS = %v, want fallback 100", cfg.GlobalRateRPS)
	}
	if cfg.RateExcludeSuccess {
		t.Error("RateExcludeSuccess should fall back to false")
	}
}
