package infra

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv   string
	Port     string
	LogLevel string

	GeminiAPIKey            string
	GeminiBaseURL           string
	GeminiTextModel         string
	GeminiImageModel        string
	GeminiTimeout           time.Duration
	GeminiRequestsPerMinute int
	RetryMax                int
	RetryBaseDelay          time.Duration

	ProgressInterval time.Duration
	ProgressCeiling  int

	FFmpegPath           string
	MediaSourceAllowlist []string
	MaxUploadBytes       int64

	DefaultLocale string
	GeoIPDBPath   string

	CORSAllowedOrigins []string
	RateLimitPerMin    int
	ExportPath         string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		Port:     getEnv("PORT", "8080"),
		LogLevel: os.Getenv("LOG_LEVEL"),

		GeminiAPIKey:            strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiBaseURL:           getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiTextModel:         getEnv("GEMINI_TEXT_MODEL", "gemini-2.5-flash"),
		GeminiImageModel:        getEnv("GEMINI_IMAGE_MODEL", "imagen-3.0-generate-002"),
		GeminiTimeout:           time.Second * time.Duration(getEnvInt("GEMINI_TIMEOUT_SECONDS", 60)),
		GeminiRequestsPerMinute: getEnvInt("GEMINI_REQUESTS_PER_MINUTE", 0),
		RetryMax:                getEnvInt("RETRY_MAX", 5),
		RetryBaseDelay:          getEnvDuration("RETRY_BASE_DELAY_MS", time.Millisecond, time.Second),

		ProgressInterval: getEnvDuration("PROGRESS_INTERVAL_MS", time.Millisecond, 400*time.Millisecond),
		ProgressCeiling:  getEnvInt("PROGRESS_CEILING", 95),

		FFmpegPath:           getEnv("FFMPEG_PATH", "ffmpeg"),
		MediaSourceAllowlist: splitList(os.Getenv("MEDIA_SOURCE_HOST_ALLOWLIST"), true),
		MaxUploadBytes:       int64(getEnvInt("MAX_UPLOAD_MB", 64)) << 20,

		DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),
		GeoIPDBPath:   os.Getenv("GEOIP_DB_PATH"),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*"), false),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		ExportPath:         getEnv("EXPORT_PATH", "./exports"),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if cfg.RetryMax < 0 {
		return nil, fmt.Errorf("RETRY_MAX must not be negative, got %d", cfg.RetryMax)
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvDuration reads an integer count of unit.
func getEnvDuration(key string, unit, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return time.Duration(i) * unit
		}
	}
	return fallback
}

// splitList splits a comma separated value, trimming blanks. Hosts are
// lower-cased, deduplicated and sorted.
func splitList(raw string, hosts bool) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if hosts {
			part = strings.ToLower(part)
		}
		if part == "" {
			continue
		}
		if _, dup := seen[part]; dup {
			continue
		}
		seen[part] = struct{}{}
		out = append(out, part)
	}
	if hosts {
		sort.Strings(out)
	}
	return out
}
