// Package config provides configuration management for the Papertrail server.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the server.
type Config struct {
	// Server configuration
	Port string
	Env  string

	// Database configuration
	DatabaseURL string

	// CORS configuration
	CORSOrigin string

	// WiFi driver configuration
	WiFiInterface string

	// Compiled-in hotspot identity, used when no persisted override exists
	HotspotSSID     string
	HotspotPassword string

	// Onboarding: until complete, driving mode still hunts for the hotspot
	OnboardingComplete bool

	// Timing knobs (spec defaults; shrink via env for tests and tuning)
	ConnectTimeout   time.Duration // single profile activation
	AttemptTimeout   time.Duration // whole hotspot attempt
	SettleDelay      time.Duration // post-activation settle before verify
	VerifyRetryDelay time.Duration // extra wait before the verify retry
	DebounceDelay    time.Duration // pre-attempt debounce
	GracePeriod      time.Duration // connected-state loss grace
	MonitorInterval  time.Duration // connection monitor period
	PollInterval     time.Duration // hotspot poll period
	ScanSettle       time.Duration // wait after rescan before listing
}

// Load loads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		// Server
		Port: getEnv("PORT", "4000"),
		Env:  getEnv("ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", "file:./papertrail.db"),

		// CORS
		CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost:3000"),

		// WiFi
		WiFiInterface:      getEnv("WIFI_INTERFACE", "wlan0"),
		HotspotSSID:        getEnv("HOTSPOT_SSID", "Papertrail"),
		HotspotPassword:    getEnv("HOTSPOT_PASSWORD", "papertrail"),
		OnboardingComplete: getEnvBool("ONBOARDING_COMPLETE", false),

		// Timings (milliseconds in the environment)
		// The activation timeout must exceed the hotspot attempt timeout:
		// the attempt's own timer, with its fallback recovery, has to fire
		// before the driver call gives up on its own.
		ConnectTimeout:   getEnvDuration("WIFI_CONNECT_TIMEOUT", 90000),
		AttemptTimeout:   getEnvDuration("HOTSPOT_ATTEMPT_TIMEOUT", 60000),
		SettleDelay:      getEnvDuration("HOTSPOT_SETTLE_DELAY", 2000),
		VerifyRetryDelay: getEnvDuration("HOTSPOT_VERIFY_RETRY_DELAY", 3000),
		DebounceDelay:    getEnvDuration("HOTSPOT_DEBOUNCE_DELAY", 5000),
		GracePeriod:      getEnvDuration("WIFI_GRACE_PERIOD", 5000),
		MonitorInterval:  getEnvDuration("WIFI_MONITOR_INTERVAL", 5000),
		PollInterval:     getEnvDuration("WIFI_POLL_INTERVAL", 10000),
		ScanSettle:       getEnvDuration("WIFI_SCAN_SETTLE", 2000),
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration from a millisecond-valued environment
// variable or a default value in milliseconds.
func getEnvDuration(key string, defaultMs int) time.Duration {
	ms := defaultMs
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			ms = intVal
		}
	}
	return time.Duration(ms) * time.Millisecond
}
