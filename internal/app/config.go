package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr           string
	LogLevel           string
	LogFormat          string
	CORSAllowedOrigins []string

	MaxDownloadMB     int64 // upper bound for /download size, in MiB
	DefaultDownloadMB int64 // size used when the query omits it
	ChunkSizeBytes    int
	MaxDurationMs     int64 // upper bound for /download-progressive
	MinDurationMs     int64

	RateWindowMs       int64
	RateMaxRequests    int
	RateExcludeSuccess bool // refund successful requests from the window count

	GlobalRateRPS   float64 // process-wide token bucket in front of everything
	GlobalRateBurst int
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
		MaxDownloadMB:      getEnvInt64("MAX_DOWNLOAD_MB", 100),
		DefaultDownloadMB:  getEnvInt64("DEFAULT_DOWNLOAD_MB", 10),
		ChunkSizeBytes:     int(getEnvInt64("CHUNK_SIZE_BYTES", 1<<20)),
		MaxDurationMs:      getEnvInt64("MAX_DURATION_MS", 30_000),
		MinDurationMs:      getEnvInt64("MIN_DURATION_MS", 100),
		RateWindowMs:       getEnvInt64("RATE_WINDOW_MS", 10*60*1000),
		RateMaxRequests:    int(getEnvInt64("RATE_MAX_REQUESTS", 200)),
		RateExcludeSuccess: getEnvBool("RATE_EXCLUDE_SUCCESS", false),
		GlobalRateRPS:      getEnvFloat("GLOBAL_RATE_RPS", 100),
		GlobalRateBurst:    int(getEnvInt64("GLOBAL_RATE_BURST", 200)),
	}
}

// RateWindow returns the per-client admission window as a duration.
func (c Config) RateWindow() time.Duration {
	return time.Duration(c.RateWindowMs) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	if parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch value {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return fallback
	}
}

func splitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
