// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port         int
	BaseURL      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Config token
	EncryptionKey string
	// EncryptionKeyIsFallback is set when no key was configured and the
	// public development key is in use.
	EncryptionKeyIsFallback bool

	// Stream endpoint
	AllowedOrigins []string
	WarningURL     string
	AddonTimeout   time.Duration

	// Inbound rate limit
	RateLimitRPS   float64
	RateLimitBurst int

	// TrustProxy honours X-Forwarded-* headers from a reverse proxy for
	// client addresses and the public origin. Leave unset when the server
	// is reachable directly.
	TrustProxy bool

	// Guards operational endpoints such as /metrics
	APIPassword string

	// Outbound proxy settings
	GlobalProxies   []string
	TransportRoutes []TransportRoute
	UTLSDomains     []string

	// Receiver config storage (used by the configuration CLI)
	StorePath string
	RedisURL  string

	// Logging
	LogLevel string
	LogJSON  bool

	// Tracing
	OTLPEndpoint string
}

// TransportRoute defines URL-specific proxy routing.
type TransportRoute struct {
	URLPattern string
	Proxy      string
	DisableSSL bool
	Direct     bool // If true, bypass global proxy and connect directly
}

// DefaultAllowedOrigins are the Stremio clients allowed to call the stream endpoint.
var DefaultAllowedOrigins = []string{
	"https://app.strem.io",
	"https://web.strem.io",
	"https://web.stremio.com",
	"https://staging.strem.io",
}

// DefaultWarningURL is the Stremio interstitial shown before leaving to an external link.
const DefaultWarningURL = "https://www.stremio.com/warning"

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	port := getEnvInt("PORT", 7000)
	cfg := &Config{
		Port:           port,
		BaseURL:        getEnvString("BASE_URL", fmt.Sprintf("http://localhost:%d", port)),
		ReadTimeout:    getEnvDuration("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:   getEnvDuration("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:    getEnvDuration("IDLE_TIMEOUT", 60*time.Second),
		EncryptionKey:  os.Getenv("PRIVATE_ENCRYPTION_KEY"),
		AllowedOrigins: getEnvStringSlice("ALLOWED_ORIGINS", DefaultAllowedOrigins),
		WarningURL:     getEnvString("WARNING_URL", DefaultWarningURL),
		AddonTimeout:   getEnvDuration("ADDON_TIMEOUT", 10*time.Second),
		TrustProxy:     getEnvBool("TRUST_PROXY", false),
		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 50),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 100),
		APIPassword:    os.Getenv("API_PASSWORD"),
		GlobalProxies:  getEnvStringSlice("GLOBAL_PROXIES", nil),
		UTLSDomains:    getEnvStringSlice("UTLS_DOMAINS", nil),
		StorePath:      getEnvString("STORE_PATH", "syncribullet.db"),
		RedisURL:       os.Getenv("REDIS_URL"),
		LogLevel:       getEnvString("LOG_LEVEL", "info"),
		LogJSON:        getEnvBool("LOG_JSON", false),
		OTLPEndpoint:   strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
	}

	cfg.TransportRoutes = parseTransportRoutes(os.Getenv("TRANSPORT_ROUTES"))

	if cfg.EncryptionKey == "" {
		cfg.EncryptionKeyIsFallback = true
	}

	return cfg
}

// IsAllowedOrigin reports whether origin may call the stream endpoint.
// An empty origin is never allowed.
func (c *Config) IsAllowedOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// parseTransportRoutes parses the TRANSPORT_ROUTES env var.
// Format: {URL=pattern, PROXY=url, DISABLE_SSL=true}, {URL=pattern2}
func parseTransportRoutes(s string) []TransportRoute {
	if s == "" {
		return nil
	}

	var routes []TransportRoute
	s = strings.TrimSpace(s)

	parts := strings.Split(s, "}, {")
	for _, part := range parts {
		part = strings.Trim(part, "{} ")
		if part == "" {
			continue
		}

		route := TransportRoute{}
		for _, field := range strings.Split(part, ", ") {
			key, value, ok := strings.Cut(field, "=")
			if !ok {
				continue
			}
			key = strings.TrimSpace(key)
			value = strings.TrimSpace(value)

			switch strings.ToUpper(key) {
			case "URL":
				route.URLPattern = value
			case "PROXY":
				route.Proxy = value
			case "DISABLE_SSL":
				route.DisableSSL = cast.ToBool(value)
			case "DIRECT":
				route.Direct = cast.ToBool(value)
			}
		}
		if route.URLPattern != "" {
			routes = append(routes, route)
		}
	}

	return routes
}

func getEnvString(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if i, err := cast.ToIntE(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if f, err := cast.ToFloat64E(val); err == nil && f > 0 {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if b, err := cast.ToBoolE(strings.ToLower(val)); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvDuration accepts a plain number of seconds or a Go duration string.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if secs, err := cast.ToIntE(val); err == nil {
			return time.Duration(secs) * time.Second
		}
		if d, err := cast.ToDurationE(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvStringSlice(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		parts := strings.Split(val, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return defaultVal
}
