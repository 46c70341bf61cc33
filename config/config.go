package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Fetch     FetchConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance used for rendering.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int // default: 10

	// DefaultProxy is the default proxy URL for all requests.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Stealth injects anti-bot-detection JS before each navigation.
	Stealth bool // default: true
}

// FetchConfig controls the fetch orchestrator.
type FetchConfig struct {
	// DefaultTimeout is the per-attempt timeout applied when the request
	// does not specify one.
	DefaultTimeout time.Duration // default: 30s

	// MaxTimeout is the maximum allowed timeout from the client.
	MaxTimeout time.Duration // default: 120s

	// MaxRetries is the default HTTP retry budget for transport failures
	// and 403 responses.
	MaxRetries int // default: 2

	// MinContentLength is the sufficiency threshold: HTTP bodies shorter
	// than this (in characters) escalate to browser rendering.
	MinContentLength int // default: 50

	// RetryInitialBackoff is the first wait between HTTP retries.
	RetryInitialBackoff time.Duration // default: 200ms

	// RetryMaxBackoff caps the exponential retry backoff.
	RetryMaxBackoff time.Duration // default: 2s
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// CacheConfig controls the fetch response cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached responses.
	MaxEntries int // default: 1000
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("SCRAPESOME_HOST", "0.0.0.0"),
			Port: envIntOr("SCRAPESOME_PORT", 8080),
			Mode: envOr("SCRAPESOME_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("SCRAPESOME_HEADLESS", true),
			MaxPages:     envIntOr("SCRAPESOME_MAX_PAGES", 10),
			DefaultProxy: os.Getenv("SCRAPESOME_PROXY"),
			NoSandbox:    envBoolOr("SCRAPESOME_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("SCRAPESOME_BROWSER_BIN"),
			Stealth:      envBoolOr("SCRAPESOME_STEALTH", true),
		},
		Fetch: FetchConfig{
			DefaultTimeout:      envDurationOr("SCRAPESOME_DEFAULT_TIMEOUT", 30*time.Second),
			MaxTimeout:          envDurationOr("SCRAPESOME_MAX_TIMEOUT", 120*time.Second),
			MaxRetries:          envIntOr("SCRAPESOME_MAX_RETRIES", 2),
			MinContentLength:    envIntOr("SCRAPESOME_MIN_CONTENT_LENGTH", 50),
			RetryInitialBackoff: envDurationOr("SCRAPESOME_RETRY_BACKOFF", 200*time.Millisecond),
			RetryMaxBackoff:     envDurationOr("SCRAPESOME_RETRY_MAX_BACKOFF", 2*time.Second),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("SCRAPESOME_AUTH_ENABLED", false),
			APIKeys: envSliceOr("SCRAPESOME_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("SCRAPESOME_RATE_RPS", 5.0),
			Burst:             envIntOr("SCRAPESOME_RATE_BURST", 10),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("SCRAPESOME_CACHE_MAX_ENTRIES", 1000),
		},
		Log: LogConfig{
			Level:  envOr("SCRAPESOME_LOG_LEVEL", "info"),
			Format: envOr("SCRAPESOME_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
