// Package config loads runtime configuration from environment variables,
// with an optional .env file for local development.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable the server reads from the environment.
// Server address and filesystem paths come from command-line flags instead;
// the environment carries credentials and sync tuning.
type Config struct {
	// Inbound webhook Basic auth. When both are empty the webhook
	// endpoint rejects every request.
	WebhookUsername string
	WebhookPassword string

	// Partner API credentials and routing.
	PartnerUsername  string
	PartnerPassword  string
	PartnerSandbox   bool
	PartnerProductID string

	SyncInterval        time.Duration
	FetchTimeout        time.Duration
	DefaultSlotDuration time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; a missing file is not an error.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded environment from .env file")
	}

	return Config{
		WebhookUsername:  os.Getenv("WEBHOOK_USERNAME"),
		WebhookPassword:  os.Getenv("WEBHOOK_PASSWORD"),
		PartnerUsername:  os.Getenv("PARTNER_API_USERNAME"),
		PartnerPassword:  os.Getenv("PARTNER_API_PASSWORD"),
		PartnerSandbox:   envBool("PARTNER_API_SANDBOX", true),
		PartnerProductID: os.Getenv("PARTNER_PRODUCT_ID"),

		SyncInterval:        time.Duration(envInt("SYNC_INTERVAL_MIN", 15)) * time.Minute,
		FetchTimeout:        time.Duration(envInt("FEED_FETCH_TIMEOUT_SEC", 30)) * time.Second,
		DefaultSlotDuration: time.Duration(envInt("DEFAULT_SLOT_DURATION_MIN", 90)) * time.Minute,
	}
}

// envInt returns the integer value of key, or fallback when the variable is
// unset or not a valid integer. A malformed value is logged rather than fatal
// so that a typo in one tunable does not take the server down.
func envInt(key string, fallback int) int {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		slog.Warn("invalid integer in environment, using default",
			"key", key, "value", s, "default", fallback)
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		slog.Warn("invalid boolean in environment, using default",
			"key", key, "value", s, "default", fallback)
		return fallback
	}
	return b
}
