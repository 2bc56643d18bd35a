package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; only DATABASE_URL is required.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Database
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// Outbound delivery
	DeliveryTimeout time.Duration
	// ProxyURL routes webhook traffic through an explicit forward proxy.
	// Empty means the process-wide proxy environment variables apply.
	ProxyURL *url.URL
	// InsecureSkipVerify disables TLS certificate validation on the
	// delivery client. Test environments with self-signed webhook
	// endpoints only; never enable in production.
	InsecureSkipVerify bool

	// Dispatch worker pool size (workers are shared across all targets)
	DispatchWorkers int

	// Rate limiting: maximum deliveries per second per target host
	RateLimitPerHost int

	// Background worker poll interval
	SchedulerInterval time.Duration
}

func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	proxyURL, err := getURL("PROXY_URL")
	if err != nil {
		return nil, err
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL: dbURL,
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),

		DeliveryTimeout:    getDuration("DELIVERY_TIMEOUT", 15*time.Second),
		ProxyURL:           proxyURL,
		InsecureSkipVerify: getBool("INSECURE_SKIP_VERIFY", false),

		DispatchWorkers: getInt("DISPATCH_WORKERS", 10),

		RateLimitPerHost: getInt("RATE_LIMIT_PER_HOST", 50),

		SchedulerInterval: getDuration("SCHEDULER_INTERVAL", 5*time.Second),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

// getURL parses an optional URL-valued variable. Unlike the other getters a
// malformed value is an error, not a silent fallback: routing webhook
// traffic anywhere but the operator's chosen proxy would be surprising.
func getURL(key string) (*url.URL, error) {
	v := os.Getenv(key)
	if v == "" {
		return nil, nil
	}
	u, err := url.Parse(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s: must be an absolute URL", key)
	}
	return u, nil
}
